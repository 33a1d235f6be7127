package caps

import (
	"discburn-agent/internal/burn"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/session"
	"discburn-agent/internal/track"
)

// SessionSupported answers whether the session, as configured, can be
// carried out by some chain of plug-ins.
func (r *Registry) SessionSupported(sess *session.Session) burn.Result {
	if sess.SameSrcDest() {
		_, res := r.sameSrcDestIntermediate(sess)
		return res
	}

	output, ok := sess.OutputType()
	if !ok {
		r.logger.Debug("unsupported type of task operation")
		return burn.NotSupported
	}

	input := sess.Input()

	if sess.Check()&session.UseFlags != 0 {
		if burner := sess.Burner(); burner != nil && !burner.AcceptFlags(sess.Flags()) {
			r.logger.Debug("session flags rejected by drive", "flags", sess.Flags().String())
			return burn.NotSupported
		}
	}

	if r.tryOutputWithBlanking(sess, output, input, sessionIO(sess)) {
		return burn.Ok
	}

	r.logger.Debug("session not supported", "input", input.String(), "output", output.String())
	return burn.NotSupported
}

// InputSupported checks whether content of the given type could feed the
// session's configured destination.
func (r *Registry) InputSupported(sess *session.Session, input track.Type) burn.Result {
	output, ok := sess.OutputType()
	if !ok {
		return burn.NotSupported
	}

	if sess.Check()&session.UseFlags != 0 {
		if burner := sess.Burner(); burner != nil && !burner.AcceptFlags(sess.Flags()) {
			return burn.NotSupported
		}
	}

	if r.tryOutputWithBlanking(sess, output, input, sessionIO(sess)) {
		return burn.Ok
	}
	return burn.NotSupported
}

// OutputSupported checks whether the session's input could be turned into
// the given output type. The output is hypothetical, so no drive-level flag
// check applies.
func (r *Registry) OutputSupported(sess *session.Session, output track.Type) burn.Result {
	if r.tryOutputWithBlanking(sess, output, sess.Input(), sessionIO(sess)) {
		return burn.Ok
	}
	return burn.NotSupported
}

// CanBlank answers whether the medium in the destination drive can be
// blanked under the session flags.
func (r *Registry) CanBlank(sess *session.Session) burn.Result {
	media := sess.DestMedia()
	if media == track.MediaNone || media == track.MediaFile {
		return burn.NotSupported
	}
	return r.canBlankMedia(sess.Check(), media, sess.Flags())
}

// GetBlankFlags returns the flags that can and must be used when blanking
// the medium in the destination drive.
func (r *Registry) GetBlankFlags(sess *session.Session) (supported, compulsory track.BurnFlag, res burn.Result) {
	media := sess.DestMedia()
	if media == track.MediaNone || media == track.MediaFile {
		r.logger.Debug("blanking not possible: no media")
		return track.FlagNone, track.FlagNone, burn.NotSupported
	}
	return r.blankFlagsForMedia(sess.Check(), media, sess.Flags())
}

// RequiredMediaType determines, broadly, which media could receive the
// session input: the union of the writable families whose recording links
// can be traced back to the input.
func (r *Registry) RequiredMediaType(sess *session.Session) track.Media {
	if sess.IsDestFile() {
		return track.MediaFile
	}

	input := sess.Input()

	// BlankBeforeWrite, FastBlank and DAO only distract here: we want to
	// know what media fit the input in a broad sense. The one consequential
	// flag is Merge. Default check flags apply regardless of the session's
	// own.
	sessionFlags := sess.Flags() &^
		(track.FlagBlankBeforeWrite | track.FlagFastBlank | track.FlagDAO)

	io := sessionIO(sess)

	required := track.MediaNone
	for _, caps := range r.capsList {
		if !caps.Type.HasMedium() {
			continue
		}

		ok := r.findLink(caps, query{
			sessionFlags: sessionFlags,
			check:        session.DefaultCheckFlags,
			mode:         activeMode(session.DefaultCheckFlags),
			media:        track.MediaNone,
			input:        input,
			io:           io,
		})
		if !ok {
			continue
		}
		required |= caps.Type.Media()
	}

	return required & (track.MediaWritable | track.MediaCD | track.MediaDVD | track.MediaBD)
}

// imageFormatsDescending iterates formats in planner preference order.
var imageFormatsDescending = []track.ImageFormat{
	track.ImageFormatCdrdao,
	track.ImageFormatCue,
	track.ImageFormatClone,
	track.ImageFormatBin,
}

// PossibleOutputFormats enumerates the image formats the session input
// could be written to, as a count and a mask.
func (r *Registry) PossibleOutputFormats(sess *session.Session) (int, track.ImageFormat) {
	count := 0
	mask := track.ImageFormatNone
	for _, format := range imageFormatsDescending {
		if r.OutputSupported(sess, track.NewImage(format)) == burn.Ok {
			mask |= format
			count++
		}
	}
	return count, mask
}

// DefaultOutputFormat picks the image format an image destination should
// default to, from the session input alone.
func (r *Registry) DefaultOutputFormat(sess *session.Session) track.ImageFormat {
	if !sess.IsDestFile() {
		return track.ImageFormatNone
	}

	input := sess.Input()
	switch input.Kind() {
	case track.KindNone:
		return track.ImageFormatNone

	case track.KindImage:
		// keep whatever the input already is
		return input.ImageFormat()

	case track.KindStream:
		// audio-only streams have no image rendition; video ones get
		// whatever format works first
		if input.StreamFormat()&track.StreamVideoMask == 0 {
			return track.ImageFormatNone
		}
		return r.firstSupportedFormat(sess)

	case track.KindData:
		return r.binOrNothing(sess)

	case track.KindDisc:
		if input.Media()&track.MediaDVD != 0 {
			return r.binOrNothing(sess)
		}
		// CD sources can use the whole format gamut
		return r.firstSupportedFormat(sess)
	}

	return track.ImageFormatNone
}

func (r *Registry) binOrNothing(sess *session.Session) track.ImageFormat {
	if r.OutputSupported(sess, track.NewImage(track.ImageFormatBin)) == burn.Ok {
		return track.ImageFormatBin
	}
	return track.ImageFormatNone
}

func (r *Registry) firstSupportedFormat(sess *session.Session) track.ImageFormat {
	for _, format := range imageFormatsDescending {
		if r.OutputSupported(sess, track.NewImage(format)) == burn.Ok {
			return format
		}
	}
	return track.ImageFormatNone
}

// TmpImageTypeSameSrcDest determines the intermediate type for copying with
// a single drive serving as both source and target.
func (r *Registry) TmpImageTypeSameSrcDest(sess *session.Session) (track.Type, burn.Result) {
	return r.sameSrcDestIntermediate(sess)
}

// sameSrcDestIntermediate searches for a type that can both be extracted
// from the source medium and burnt onto some blank medium the drive
// supports. Streams are tried first (admissible onto CDs only), then image
// formats in preference order.
func (r *Registry) sameSrcDestIntermediate(sess *session.Session) (track.Type, burn.Result) {
	input := sess.Input()
	check := sess.Check()

	// DAO is pointless while picking an intermediate and can only get in
	// the way; Merge is the one flag with real consequences here.
	sessionFlags := track.FlagNone
	if check&session.UseFlags != 0 {
		sessionFlags = sess.Flags() &^ track.FlagDAO
	}

	burner := sess.Burner()

	stream := track.NewStream(track.StreamRawAudio | track.StreamMetadata)
	if r.tryOutput(sessionFlags, check, stream, input, plugin.IOAcceptFile) {
		if media, ok := r.findBurnableMedia(check, sessionFlags, stream, burner); ok {
			r.logger.Debug("stream intermediate supported", "media", media.String())
			return stream, burn.Ok
		}
	} else {
		r.logger.Debug("stream format not supported as intermediate")
	}

	for _, format := range imageFormatsDescending {
		image := track.NewImage(format)
		if !r.tryOutput(sessionFlags, check, image, input, plugin.IOAcceptFile) {
			continue
		}
		if media, ok := r.findBurnableMedia(check, sessionFlags, image, burner); ok {
			r.logger.Debug("image intermediate supported", "format", format.String(), "media", media.String())
			return image, burn.Ok
		}
	}

	return track.Type{}, burn.NotSupported
}

// findBurnableMedia looks for at least one medium the drive can write that
// accepts the intermediate type. CD-only intermediates skip non-CD media;
// ROM media are never candidates.
func (r *Registry) findBurnableMedia(check session.CheckFlags, sessionFlags track.BurnFlag, intermediate track.Type, burner *drive.Drive) (track.Media, bool) {
	cdOnly := intermediate.HasStream() ||
		(intermediate.HasImage() && intermediate.ImageFormat().CDOnly())

	for _, caps := range r.capsList {
		if !caps.Type.HasMedium() {
			continue
		}
		media := caps.Type.Media()
		if media&track.MediaROM != 0 {
			continue
		}
		if cdOnly && media&track.MediaCD == 0 {
			continue
		}
		if burner != nil && !burner.CanWriteMedia(media) {
			continue
		}

		ok := r.findLink(caps, query{
			sessionFlags: sessionFlags,
			check:        check,
			mode:         activeMode(check),
			media:        media,
			input:        intermediate,
			io:           plugin.IOAcceptFile,
		})
		if ok {
			return media, true
		}
	}

	return track.MediaNone, false
}
