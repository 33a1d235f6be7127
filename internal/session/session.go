// Package session holds the immutable snapshot of one authoring request:
// what goes in, where it goes, and under which options. Planner and
// scheduler only ever read it.
package session

import (
	"discburn-agent/internal/drive"
	"discburn-agent/internal/track"
)

// CheckFlags tune how planning queries treat session flags and unavailable
// plug-ins.
type CheckFlags uint8

const (
	// UseFlags makes the planner honor the session burn flags.
	UseFlags CheckFlags = 1 << iota
	// IgnorePluginErrors admits plug-ins flagged missing or broken, to
	// report what could work if they were installed.
	IgnorePluginErrors
	// SignalPluginErrors makes the planner emit need-download events for
	// plug-ins blocked only by a missing helper.
	SignalPluginErrors
)

// DefaultCheckFlags is what callers get when they do not care.
const DefaultCheckFlags = UseFlags

// Session is an immutable-during-run description of an authoring job.
type Session struct {
	input track.Type

	// Destination: either a drive (burning) or an image file.
	destDrive   *drive.Drive
	destFile    string
	destFormat  track.ImageFormat
	sourceDrive *drive.Drive

	flags track.BurnFlag
	check CheckFlags
}

// Config collects the inputs for a session snapshot.
type Config struct {
	Input       track.Type
	DestDrive   *drive.Drive
	DestFile    string
	DestFormat  track.ImageFormat
	SourceDrive *drive.Drive
	Flags       track.BurnFlag
	Check       CheckFlags
}

// New builds a session snapshot. Zero Check means DefaultCheckFlags.
func New(cfg Config) *Session {
	check := cfg.Check
	if check == 0 {
		check = DefaultCheckFlags
	}
	return &Session{
		input:       cfg.Input,
		destDrive:   cfg.DestDrive,
		destFile:    cfg.DestFile,
		destFormat:  cfg.DestFormat,
		sourceDrive: cfg.SourceDrive,
		flags:       cfg.Flags,
		check:       check,
	}
}

func (s *Session) Input() track.Type         { return s.input }
func (s *Session) Flags() track.BurnFlag     { return s.flags }
func (s *Session) Check() CheckFlags         { return s.check }
func (s *Session) Burner() *drive.Drive      { return s.destDrive }
func (s *Session) SourceDrive() *drive.Drive { return s.sourceDrive }
func (s *Session) DestFile() string          { return s.destFile }

// IsDestFile reports whether the session outputs a disc image file rather
// than burning a medium.
func (s *Session) IsDestFile() bool { return s.destFile != "" || s.destDrive == nil }

// DestMedia is the medium loaded in the destination drive, or MediaFile for
// image output.
func (s *Session) DestMedia() track.Media {
	if s.IsDestFile() {
		return track.MediaFile
	}
	return s.destDrive.Medium
}

// OutputType resolves the session destination to a track type. ok is false
// when the destination is unusable (no medium, no format).
func (s *Session) OutputType() (track.Type, bool) {
	if s.IsDestFile() {
		if s.destFormat == track.ImageFormatNone {
			return track.Type{}, false
		}
		return track.NewImage(s.destFormat), true
	}
	media := s.destDrive.Medium
	if media == track.MediaNone {
		return track.Type{}, false
	}
	return track.NewDisc(media), true
}

// SameSrcDest reports whether source and destination are one physical drive,
// which forces copy-via-intermediate planning.
func (s *Session) SameSrcDest() bool {
	return s.sourceDrive != nil && s.destDrive != nil &&
		s.sourceDrive.Device == s.destDrive.Device
}

// NoTmpFiles reports whether the session insists on streaming between
// stages instead of intermediate files.
func (s *Session) NoTmpFiles() bool {
	return s.flags&track.FlagNoTmpFiles != 0
}

// WithFlags derives a new snapshot with different flags; the original is
// untouched.
func (s *Session) WithFlags(flags track.BurnFlag) *Session {
	dup := *s
	dup.flags = flags
	return &dup
}

// WithCheck derives a new snapshot with different check flags.
func (s *Session) WithCheck(check CheckFlags) *Session {
	dup := *s
	dup.check = check
	return &dup
}
