package caps

import (
	"fmt"

	"discburn-agent/internal/burn"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/session"
	"discburn-agent/internal/track"
)

// StagePlan is one stage of a materialized chain: the chosen plug-in, the
// types it converts between, and the transport it exchanges its input over.
type StagePlan struct {
	Plugin *plugin.Declaration
	Input  track.Type
	Output track.Type

	// IO tells how the stage receives its input from its predecessor:
	// IOAcceptPipe marks a streaming boundary, otherwise a scoped
	// intermediate file is required.
	IO plugin.IOFlags

	// Blanking marks a stage that erases the destination medium before the
	// rest of the chain writes it.
	Blanking bool
}

// Chain is an ordered stage list in pipeline order, input first.
type Chain struct {
	Stages []StagePlan
}

// WellFormed verifies stage adjacency: each stage's output must be
// compatible with its successor's input.
func (c *Chain) WellFormed() bool {
	for i := 0; i+1 < len(c.Stages); i++ {
		if c.Stages[i].Blanking || c.Stages[i+1].Blanking {
			continue
		}
		if !track.Compatible(c.Stages[i].Output, c.Stages[i+1].Input) {
			return false
		}
	}
	return true
}

// findChain mirrors findLink but materializes the accepted path: at every
// accepted link the highest-priority active plug-in is selected. The
// returned stages are in pipeline order.
func (r *Registry) findChain(caps *Caps, q query) ([]StagePlan, bool) {
	for _, link := range caps.Links {
		if link.Source == nil {
			continue
		}
		if !link.Active(q.mode) {
			continue
		}

		if q.check&session.UseFlags != 0 &&
			caps.Type.HasMedium() &&
			!linkCheckRecordFlags(link, q.mode, q.sessionFlags, q.media) {
			continue
		}

		if link.Source.Type.HasData() {
			if q.check&session.UseFlags != 0 &&
				!linkCheckDataFlags(link, q.mode, q.sessionFlags, q.media) {
				continue
			}
		} else if !linkCheckMediaRestrictions(link, q.mode, q.media) {
			continue
		}

		if link.Source.IO&plugin.IOAcceptFile != 0 &&
			track.Compatible(q.input, link.Source.Type) {
			best := link.Best(q.mode)
			if best == nil {
				continue
			}
			return []StagePlan{{
				Plugin: best,
				Input:  q.input,
				Output: caps.Type,
				IO:     plugin.IOAcceptFile,
			}}, true
		}

		if link.Source.Type.HasMedium() {
			continue
		}
		if link.Source.IO&q.io == plugin.IONone {
			continue
		}

		sub, ok := r.findChain(link.Source, q)
		if !ok {
			continue
		}
		best := link.Best(q.mode)
		if best == nil {
			continue
		}

		io := plugin.IOAcceptFile
		if link.Source.IO&q.io&plugin.IOAcceptPipe != 0 {
			io = plugin.IOAcceptPipe
		}

		return append(sub, StagePlan{
			Plugin: best,
			Input:  link.Source.Type,
			Output: caps.Type,
			IO:     io,
		}), true
	}

	return nil, false
}

// MaterializeChain turns a supported session into an executable chain. For
// a same-drive copy the chain covers the extraction phase up to the
// intermediate type; the recording phase is planned again once the blank
// disc is inserted.
func (r *Registry) MaterializeChain(sess *session.Session) (*Chain, error) {
	if sess.SameSrcDest() {
		intermediate, res := r.sameSrcDestIntermediate(sess)
		if res != burn.Ok {
			return nil, fmt.Errorf("same-drive copy: %w", burn.ErrNotSupported)
		}
		sub := session.New(session.Config{
			Input:       sess.Input(),
			DestFile:    "copy-intermediate",
			DestFormat:  intermediate.ImageFormat(),
			SourceDrive: sess.SourceDrive(),
			Flags:       sess.Flags() &^ track.FlagDAO,
			Check:       sess.Check(),
		})
		return r.materialize(sub, intermediate)
	}

	output, ok := sess.OutputType()
	if !ok {
		return nil, burn.ErrNotSupported
	}
	return r.materialize(sess, output)
}

func (r *Registry) materialize(sess *session.Session, output track.Type) (*Chain, error) {
	check := sess.Check()
	sessionFlags := track.FlagNone
	if check&session.UseFlags != 0 {
		sessionFlags = sess.Flags()
	}
	io := sessionIO(sess)
	input := sess.Input()

	build := func(out track.Type, media track.Media) ([]StagePlan, bool) {
		caps := r.findStartCaps(out)
		if caps == nil {
			return nil, false
		}
		return r.findChain(caps, query{
			sessionFlags: sessionFlags,
			check:        check,
			mode:         activeMode(check),
			media:        media,
			input:        input,
			io:           io,
		})
	}

	media := track.MediaFile
	if output.HasMedium() {
		media = output.Media()
	}

	if stages, ok := build(output, media); ok {
		return &Chain{Stages: stages}, nil
	}

	if !output.HasMedium() {
		return nil, burn.ErrNotSupported
	}
	if r.CanBlank(sess) != burn.Ok {
		return nil, burn.ErrNotSupported
	}

	blankedMedia := track.Blanked(output.Media())
	stages, ok := build(output.WithMedia(blankedMedia), blankedMedia)
	if !ok {
		return nil, burn.ErrNotSupported
	}

	blanker, ok := r.bestBlanker(check, output.Media(), sessionFlags)
	if !ok {
		return nil, burn.ErrNotSupported
	}

	chain := &Chain{Stages: make([]StagePlan, 0, len(stages)+1)}
	chain.Stages = append(chain.Stages, StagePlan{
		Plugin:   blanker,
		Input:    track.NewDisc(output.Media()),
		Output:   track.NewDisc(blankedMedia),
		Blanking: true,
	})
	chain.Stages = append(chain.Stages, stages...)
	return chain, nil
}

// MaterializeBlankChain builds the single-stage chain erasing the medium in
// the destination drive.
func (r *Registry) MaterializeBlankChain(sess *session.Session) (*Chain, error) {
	media := sess.DestMedia()
	if media == track.MediaNone || media == track.MediaFile {
		return nil, burn.ErrNoMedium
	}
	if r.canBlankMedia(sess.Check(), media, sess.Flags()) != burn.Ok {
		return nil, burn.ErrNotSupported
	}
	blanker, ok := r.bestBlanker(sess.Check(), media, sess.Flags())
	if !ok {
		return nil, burn.ErrNotSupported
	}
	return &Chain{Stages: []StagePlan{{
		Plugin:   blanker,
		Input:    track.NewDisc(media),
		Output:   track.NewDisc(track.Blanked(media)),
		Blanking: true,
	}}}, nil
}

// bestBlanker picks the highest-priority active plug-in able to blank the
// medium under the session flags.
func (r *Registry) bestBlanker(check session.CheckFlags, media track.Media, flags track.BurnFlag) (*plugin.Declaration, bool) {
	mode := activeMode(check)
	var best *plugin.Declaration
	for _, caps := range r.capsList {
		if !caps.Type.HasMedium() {
			continue
		}
		if media&caps.Type.Media() != media {
			continue
		}
		for _, link := range caps.Links {
			if link.Source != nil {
				continue
			}
			for _, p := range link.Plugins {
				if !p.IsActive(mode) || !p.CheckBlankFlags(media, flags) {
					continue
				}
				if best == nil || p.Priority > best.Priority ||
					(p.Priority == best.Priority && p.Name < best.Name) {
					best = p
				}
			}
		}
	}
	return best, best != nil
}
