// Package plugin describes what a back-end tool can do: the track types it
// consumes and produces, how it exchanges data with its neighbors, and the
// burning options it supports or requires per medium. Declarations are pure
// data; the runtime half of a back-end lives behind the task scheduler's
// stage contract.
package plugin

import (
	"strings"
	"sync"

	"discburn-agent/internal/track"
)

// IOFlags describes how a stage interoperates with its neighbors: whether
// the intermediate artifact must be a file on disk or may be streamed.
type IOFlags uint8

const (
	IONone       IOFlags = 0
	IOAcceptFile IOFlags = 1 << (iota - 1)
	IOAcceptPipe
)

func (f IOFlags) String() string {
	var parts []string
	if f&IOAcceptFile != 0 {
		parts = append(parts, "file")
	}
	if f&IOAcceptPipe != 0 {
		parts = append(parts, "pipe")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ActiveFlags qualifies the runtime availability of a plug-in.
type ActiveFlags uint8

const (
	ActiveEnabled ActiveFlags = 1 << iota
	ActiveMissingBinary
	ActiveError
)

// ActiveMode selects how strictly availability is judged.
type ActiveMode int

const (
	// ActiveStrict filters out plug-ins with any availability problem.
	ActiveStrict ActiveMode = iota
	// ActiveIgnoreErrors returns plug-ins flagged MissingBinary or Error so
	// a caller can report "could work if installed".
	ActiveIgnoreErrors
)

// LinkDecl declares one transformation edge: the plug-in turns Input into
// Output, exchanging data with neighbors per IO. A blanking link has no
// output; the plug-in erases the input medium instead of translating it.
type LinkDecl struct {
	Input    track.Type
	Output   track.Type
	IO       IOFlags
	Blanking bool
}

// FlagEntry maps a media mask to the burn flags a plug-in supports and
// requires when operating on such a medium. Entries are checked in order;
// the first whose media mask contains the medium wins.
type FlagEntry struct {
	Media      track.Media
	Supported  track.BurnFlag
	Compulsory track.BurnFlag
}

// Declaration is the capability record of one back-end tool.
type Declaration struct {
	Name     string
	Priority int

	Links []LinkDecl

	// RecordFlagTable applies to links whose output is a medium (the
	// recording stage), BlankFlagTable to blanking links, ImageFlagTable to
	// links consuming a data tree (append/merge handling).
	RecordFlagTable []FlagEntry
	ImageFlagTable  []FlagEntry
	BlankFlagTable  []FlagEntry

	// MediaRestriction, when non-zero, limits the media this plug-in will
	// touch regardless of its links.
	MediaRestriction track.Media

	// Active is set at construction and manifest-load time; later changes
	// must go through SetEnabled.
	Active ActiveFlags

	mu sync.Mutex
}

// IsActive reports availability under the given mode.
func (d *Declaration) IsActive(mode ActiveMode) bool {
	d.mu.Lock()
	active := d.Active
	d.mu.Unlock()

	if active&ActiveEnabled == 0 {
		return false
	}
	if mode == ActiveIgnoreErrors {
		return true
	}
	return active&(ActiveMissingBinary|ActiveError) == 0
}

// NeedsDownload reports whether the plug-in is blocked only by a missing
// helper binary.
func (d *Declaration) NeedsDownload() bool {
	d.mu.Lock()
	active := d.Active
	d.mu.Unlock()

	return active&ActiveEnabled != 0 &&
		active&ActiveMissingBinary != 0 &&
		active&ActiveError == 0
}

// SetEnabled flips availability at runtime. The capability graph itself is
// frozen; links simply stop or resume admitting the plug-in.
func (d *Declaration) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.Active |= ActiveEnabled
	} else {
		d.Active &^= ActiveEnabled
	}
}

func lookupFlags(table []FlagEntry, media track.Media) (track.BurnFlag, track.BurnFlag, bool) {
	for _, e := range table {
		if media&e.Media == media {
			return e.Supported, e.Compulsory, true
		}
	}
	return track.FlagNone, track.FlagNone, false
}

// RecordFlags returns the supported and compulsory flags for recording on
// media. ok is false when the plug-in has no entry for the medium.
func (d *Declaration) RecordFlags(media track.Media, session track.BurnFlag) (supported, compulsory track.BurnFlag, ok bool) {
	return lookupFlags(d.RecordFlagTable, media)
}

// CheckRecordFlags reports whether the plug-in can honor every requested
// recording flag on media.
func (d *Declaration) CheckRecordFlags(media track.Media, session track.BurnFlag) bool {
	supported, _, ok := lookupFlags(d.RecordFlagTable, media)
	if !ok {
		return false
	}
	asked := session & track.RecordMask
	return asked&supported == asked
}

// ImageFlags returns the supported and compulsory data-imaging flags
// (Append/Merge) for media.
func (d *Declaration) ImageFlags(media track.Media, session track.BurnFlag) (supported, compulsory track.BurnFlag, ok bool) {
	return lookupFlags(d.ImageFlagTable, media)
}

// CheckImageFlags reports whether the plug-in can honor the requested
// Append/Merge flags on media.
func (d *Declaration) CheckImageFlags(media track.Media, session track.BurnFlag) bool {
	asked := session & track.ImageMask
	if asked == track.FlagNone {
		return true
	}
	supported, _, ok := lookupFlags(d.ImageFlagTable, media)
	if !ok {
		return false
	}
	return asked&supported == asked
}

// BlankFlags returns the supported and compulsory blanking flags for media.
func (d *Declaration) BlankFlags(media track.Media, session track.BurnFlag) (supported, compulsory track.BurnFlag, ok bool) {
	return lookupFlags(d.BlankFlagTable, media)
}

// CheckBlankFlags reports whether the plug-in can blank media under the
// requested flags.
func (d *Declaration) CheckBlankFlags(media track.Media, session track.BurnFlag) bool {
	supported, _, ok := lookupFlags(d.BlankFlagTable, media)
	if !ok {
		return false
	}
	asked := session & (track.FlagDummy | track.FlagFastBlank | track.FlagNoGrace)
	return asked&supported == asked
}

// CheckMediaRestrictions reports whether the plug-in accepts the medium at
// all. A zero restriction mask accepts everything.
func (d *Declaration) CheckMediaRestrictions(media track.Media) bool {
	if d.MediaRestriction == track.MediaNone {
		return true
	}
	return media&d.MediaRestriction == media
}
