package caps

import (
	"discburn-agent/internal/burn"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/session"
	"discburn-agent/internal/track"
)

// query carries the immutable parameters of one traversal. Results are
// merged into caller-local accumulators, never into shared state, so
// repeated calls are order independent.
type query struct {
	sessionFlags track.BurnFlag
	check        session.CheckFlags
	mode         plugin.ActiveMode
	media        track.Media
	input        track.Type
	io           plugin.IOFlags
}

// linkCheckRecordFlags reports whether at least one active plug-in of the
// link can honor the recording flags requested by the session.
func linkCheckRecordFlags(l *Link, mode plugin.ActiveMode, sessionFlags track.BurnFlag, media track.Media) bool {
	asked := sessionFlags & track.RecordMask
	if asked == track.FlagNone {
		return true
	}
	for _, p := range l.Plugins {
		if !p.IsActive(mode) {
			continue
		}
		if p.CheckRecordFlags(media, sessionFlags) {
			return true
		}
	}
	return false
}

// linkCheckDataFlags reports whether at least one active plug-in of the link
// can honor the requested Append/Merge flags.
func linkCheckDataFlags(l *Link, mode plugin.ActiveMode, sessionFlags track.BurnFlag, media track.Media) bool {
	asked := sessionFlags & track.ImageMask
	if asked == track.FlagNone {
		return true
	}
	for _, p := range l.Plugins {
		if !p.IsActive(mode) {
			continue
		}
		if p.CheckImageFlags(media, sessionFlags) {
			return true
		}
	}
	return false
}

// linkCheckMediaRestrictions reports whether at least one active plug-in of
// the link accepts the medium.
func linkCheckMediaRestrictions(l *Link, mode plugin.ActiveMode, media track.Media) bool {
	for _, p := range l.Plugins {
		if !p.IsActive(mode) {
			continue
		}
		if p.CheckMediaRestrictions(media) {
			return true
		}
	}
	return false
}

// findLink walks the graph from caps back toward the query input, depth
// first. A link is followed only if it still has an active plug-in, its
// plug-ins accept the relevant flags for the stage it represents, and its
// source type either is the input (perfect fit, file transport) or leads to
// it through further links with compatible transport. Disc nodes are never
// crossed: a medium can only be the terminal input.
func (r *Registry) findLink(caps *Caps, q query) bool {
	for _, link := range caps.Links {
		if link.Source == nil {
			// blanking link, not a transformation
			continue
		}

		if !link.Active(q.mode) {
			continue
		}

		// this link records onto a medium; one of its plug-ins must accept
		// the session's recording flags
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

		// perfect fit: the source type holds the input and can be fed from
		// a file. Pipe-only chains must keep going instead.
		if link.Source.IO&plugin.IOAcceptFile != 0 &&
			track.Compatible(q.input, link.Source.Type) {
			return true
		}

		if link.Source.Type.HasMedium() {
			continue
		}

		if link.Source.IO&q.io == plugin.IONone {
			continue
		}

		if r.findLink(link.Source, q) {
			if q.check&session.SignalPluginErrors != 0 {
				if p := link.NeedsDownload(); p != nil && r.NeedDownload != nil {
					r.NeedDownload(p.Name)
				}
			}
			return true
		}
	}

	return false
}

// tryOutput locates the start node for the requested output and searches a
// path to the input.
func (r *Registry) tryOutput(sessionFlags track.BurnFlag, check session.CheckFlags, output, input track.Type, io plugin.IOFlags) bool {
	caps := r.findStartCaps(output)
	if caps == nil {
		r.logger.Debug("no caps for output", "output", output.String())
		return false
	}

	media := track.MediaFile
	if output.HasMedium() {
		media = output.Media()
	}

	return r.findLink(caps, query{
		sessionFlags: sessionFlags,
		check:        check,
		mode:         activeMode(check),
		media:        media,
		input:        input,
		io:           io,
	})
}

// tryOutputWithBlanking first tries the output as-is. When that fails and
// the output is a disc, the planner pretends the medium was blanked first
// and retries: this covers closed media no plug-in can append to, and the
// BlankBeforeWrite flag.
func (r *Registry) tryOutputWithBlanking(sess *session.Session, output, input track.Type, io plugin.IOFlags) bool {
	check := sess.Check()
	sessionFlags := track.FlagNone
	if check&session.UseFlags != 0 {
		sessionFlags = sess.Flags()
	}

	if r.tryOutput(sessionFlags, check, output, input, io) {
		return true
	}

	if !output.HasMedium() {
		return false
	}

	r.logger.Debug("direct support failed, trying with initial blanking", "output", output.String())

	// retry against a synthesized blank medium whenever blanking is
	// feasible, whether the user asked for it or the planner would have to
	// mandate it
	if r.CanBlank(sess) != burn.Ok {
		return false
	}

	media := track.Blanked(output.Media())
	blanked := output.WithMedia(media)

	caps := r.findStartCaps(blanked)
	if caps == nil {
		return false
	}

	return r.findLink(caps, query{
		sessionFlags: sessionFlags,
		check:        check,
		mode:         activeMode(check),
		media:        media,
		input:        input,
		io:           io,
	})
}

// sessionIO resolves the transport the session insists on.
func sessionIO(sess *session.Session) plugin.IOFlags {
	if sess.NoTmpFiles() {
		return plugin.IOAcceptPipe
	}
	return plugin.IOAcceptFile
}

// canBlankMedia reports whether some blanking plug-in accepts the medium
// under the session flags, honoring the MMC restriction that a sequential
// DVD-RW cannot be fast-blanked when multisession is wanted.
func (r *Registry) canBlankMedia(check session.CheckFlags, media track.Media, flags track.BurnFlag) burn.Result {
	if media == track.MediaNone {
		return burn.NotSupported
	}

	if media.Is(track.MediaDVDRW) &&
		flags&track.FlagMulti != 0 &&
		flags&track.FlagFastBlank != 0 {
		r.logger.Debug("fast blank with multisession rejected for sequential DVD-RW")
		return burn.NotSupported
	}

	mode := activeMode(check)
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
				if !p.IsActive(mode) {
					continue
				}
				if p.CheckBlankFlags(media, flags) {
					return burn.Ok
				}
			}
		}
	}

	return burn.NotSupported
}

// blankFlagsForMedia unions supported and intersects compulsory flags
// across every admitted blanking plug-in.
func (r *Registry) blankFlagsForMedia(check session.CheckFlags, media track.Media, sessionFlags track.BurnFlag) (supported, compulsory track.BurnFlag, res burn.Result) {
	if media == track.MediaNone {
		return track.FlagNone, track.FlagNone, burn.NotSupported
	}

	mode := activeMode(check)
	supported = track.FlagNone
	compulsory = track.FlagAll
	supportedMedia := false

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
			supportedMedia = true
			for _, p := range link.Plugins {
				if !p.IsActive(mode) {
					continue
				}
				sup, comp, ok := p.BlankFlags(media, sessionFlags)
				if !ok {
					continue
				}
				supported |= sup
				compulsory &= comp
			}
		}
	}

	if !supportedMedia {
		return track.FlagNone, track.FlagNone, burn.NotSupported
	}

	// MMC: a sequential DVD-RW must be fully blanked for multisession.
	if media.Is(track.MediaDVDRW) && sessionFlags&track.FlagMulti != 0 {
		if compulsory&track.FlagFastBlank != 0 {
			r.logger.Debug("only fast blank available but multisession requires full blank")
			return track.FlagNone, track.FlagNone, burn.NotSupported
		}
		supported &^= track.FlagFastBlank
	}

	return supported, compulsory, burn.Ok
}
