package caps

import (
	"discburn-agent/internal/burn"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/session"
	"discburn-agent/internal/track"
)

// linkRecordFlags unions supported and intersects compulsory recording
// flags across the active plug-ins of a link.
func linkRecordFlags(l *Link, mode plugin.ActiveMode, media track.Media, sessionFlags track.BurnFlag) (supported, compulsory track.BurnFlag) {
	supported = track.FlagNone
	compulsory = track.FlagAll
	for _, p := range l.Plugins {
		if !p.IsActive(mode) {
			continue
		}
		sup, comp, ok := p.RecordFlags(media, sessionFlags)
		if !ok {
			continue
		}
		supported |= sup
		compulsory &= comp
	}
	return supported, compulsory
}

// linkDataFlags unions the supported data-imaging flags across the active
// plug-ins of a link.
func linkDataFlags(l *Link, mode plugin.ActiveMode, media track.Media, sessionFlags track.BurnFlag) track.BurnFlag {
	supported := track.FlagNone
	for _, p := range l.Plugins {
		if !p.IsActive(mode) {
			continue
		}
		sup, _, ok := p.ImageFlags(media, sessionFlags)
		if !ok {
			continue
		}
		supported |= sup
	}
	return supported
}

// getFlags repeats the findLink traversal while accumulating, per accepted
// link, the union of supported flags and the intersection of compulsory
// flags. Where several links offer alternative paths the OR-of-supported
// and AND-of-compulsory is taken across them. The return value is the set
// of transports some working path can use.
func (r *Registry) getFlags(caps *Caps, q query, supported, compulsory *track.BurnFlag) plugin.IOFlags {
	retval := plugin.IONone

	for _, link := range caps.Links {
		if link.Source == nil {
			continue
		}
		if !link.Active(q.mode) {
			continue
		}

		dataSupported := track.FlagNone
		recSupported := track.FlagNone
		recCompulsory := track.FlagAll

		if caps.Type.HasMedium() {
			recSupported, recCompulsory = linkRecordFlags(link, q.mode, q.media, q.sessionFlags)

			// the link must handle the requested record flags; compulsory
			// ones are not a failure here
			asked := q.sessionFlags & track.RecordMask
			if asked&recSupported != asked {
				continue
			}
		}

		if link.Source.Type.HasData() {
			dataSupported = linkDataFlags(link, q.mode, q.media, q.sessionFlags)

			asked := q.sessionFlags & track.ImageMask
			if asked&dataSupported != asked {
				continue
			}
		} else if !linkCheckMediaRestrictions(link, q.mode, q.media) {
			continue
		}

		// perfect fit
		if link.Source.IO&plugin.IOAcceptFile != 0 &&
			track.Compatible(q.input, link.Source.Type) {
			if caps.Type.HasMedium() {
				// a recorder that consumes the input directly can also be
				// fed through a pipe by whatever produced the input
				retval |= plugin.IOAcceptPipe
			} else {
				retval |= caps.IO
			}

			*compulsory &= recCompulsory
			*supported |= dataSupported | recSupported
			continue
		}

		if link.Source.IO&q.io == plugin.IONone {
			continue
		}
		if link.Source.Type.HasMedium() {
			continue
		}

		ioRet := r.getFlags(link.Source, q, supported, compulsory)
		if ioRet == plugin.IONone {
			continue
		}

		retval |= ioRet & q.io
		*compulsory &= recCompulsory
		*supported |= dataSupported | recSupported
	}

	return retval
}

// flagsForDisc computes the burn flags for recording onto the given medium.
func (r *Registry) flagsForDisc(check session.CheckFlags, sessionFlags track.BurnFlag, media track.Media, input track.Type, supported, compulsory *track.BurnFlag) burn.Result {
	output := track.NewDisc(media)

	caps := r.findStartCaps(output)
	if caps == nil {
		r.logger.Debug("no caps for medium", "media", media.String())
		return burn.NotSupported
	}

	supportedFlags := track.FlagNone
	compulsoryFlags := track.FlagAll

	ioRet := r.getFlags(caps, query{
		sessionFlags: sessionFlags,
		check:        check,
		mode:         activeMode(check),
		media:        media,
		input:        input,
		io:           plugin.IOAcceptFile | plugin.IOAcceptPipe,
	}, &supportedFlags, &compulsoryFlags)

	if ioRet == plugin.IONone {
		return burn.NotSupported
	}

	// raw write mode must only be offered for clone images, where it is
	// mandatory and excludes disc-at-once
	if supportedFlags&track.FlagRaw != 0 &&
		input.HasImage() &&
		input.ImageFormat() == track.ImageFormatClone {
		supportedFlags &^= track.FlagDAO
		compulsoryFlags &^= track.FlagDAO
		compulsoryFlags |= track.FlagRaw
	} else {
		supportedFlags &^= track.FlagRaw
	}

	// CD-TEXT can only be written disc-at-once, and disc-at-once cannot
	// leave the session open
	if supportedFlags&track.FlagDAO != 0 &&
		input.HasStream() &&
		input.StreamFormat()&track.StreamMetadata != 0 {
		compulsoryFlags |= track.FlagDAO
		supportedFlags &^= track.FlagMulti
		compulsoryFlags &^= track.FlagMulti
	}

	if ioRet&plugin.IOAcceptPipe != 0 {
		supportedFlags |= track.FlagNoTmpFiles
		if ioRet&plugin.IOAcceptFile == 0 {
			compulsoryFlags |= track.FlagNoTmpFiles
		}
	}

	*supported |= supportedFlags
	*compulsory |= compulsoryFlags

	return burn.Ok
}

// flagsForMedium computes the burn flags for the destination medium,
// folding in the blanked-retry and the blanking flags when an initial
// blanking pass could make an otherwise unusable medium work.
func (r *Registry) flagsForMedium(sess *session.Session, media track.Media, sessionFlags track.BurnFlag, input track.Type, supported, compulsory *track.BurnFlag) burn.Result {
	check := sess.Check()
	result := r.flagsForDisc(check, sessionFlags, media, input, supported, compulsory)

	canBlank := r.canBlankMedia(check, media, sessionFlags) == burn.Ok
	if !canBlank && sessionFlags&track.FlagBlankBeforeWrite != 0 {
		return burn.NotSupported
	}

	if canBlank {
		// Even a first success must be rechecked against a blank medium:
		// an appendable CD-RW, say, can either be appended (no DAO) or be
		// blanked and written DAO.
		firstSuccess := result == burn.Ok

		blanked := track.Blanked(media)
		result = r.flagsForDisc(check, sessionFlags, blanked, input, supported, compulsory)
		if result != burn.Ok {
			if !firstSuccess {
				return result
			}
			// the blanked retry failed, so blanking brings nothing
		} else {
			*supported |= track.FlagBlankBeforeWrite
			if !firstSuccess {
				*compulsory |= track.FlagBlankBeforeWrite
			}

			// once blanking is on the table, merging or appending cannot
			// be mandatory
			*compulsory &^= track.FlagMerge | track.FlagAppend

			blankSupported, blankCompulsory, res := r.blankFlagsForMedia(check, blanked, sessionFlags)
			if res == burn.Ok {
				*supported |= blankSupported
				*compulsory |= blankCompulsory
			}
		}
	} else if result != burn.Ok {
		return result
	}

	// sequential DVD-RW: give MULTI priority over FAST_BLANK, and when both
	// fast blank and blanking are requested insist on DAO since buggy
	// firmwares misreport their supported write modes
	if media.Is(track.MediaDVDRW) {
		if sessionFlags&track.FlagMulti != 0 {
			*supported &^= track.FlagFastBlank
		} else if sessionFlags&track.FlagFastBlank != 0 &&
			sessionFlags&track.FlagBlankBeforeWrite != 0 {
			if *supported&track.FlagDAO == 0 {
				return burn.NotSupported
			}
			*compulsory |= track.FlagDAO
		}
	}

	// an audio disc that is not going to be blanked first can only be
	// continued disc-at-once, and the session cannot be left open
	if media&track.MediaHasAudio != 0 &&
		*compulsory&track.FlagBlankBeforeWrite == 0 {
		if *supported&track.FlagDAO == 0 {
			return burn.NotSupported
		}
		*compulsory |= track.FlagDAO
		*supported &^= track.FlagMulti
		*compulsory &^= track.FlagMulti
	}

	if sessionFlags&track.FlagBlankBeforeWrite != 0 {
		*supported &^= track.FlagMerge | track.FlagAppend
		*compulsory &^= track.FlagMerge | track.FlagAppend
	}

	return burn.Ok
}

// imageDestFlags are the flags available when the destination is an image
// file rather than a medium; there is no disc to eject.
func imageDestFlags() (supported, compulsory track.BurnFlag) {
	return track.FlagCheckSize | track.FlagNoGrace, track.FlagNone
}

// GetBurnFlags computes the supported and compulsory flag sets for the
// session destination.
func (r *Registry) GetBurnFlags(sess *session.Session) (supported, compulsory track.BurnFlag, res burn.Result) {
	input := sess.Input()

	if sess.IsDestFile() {
		supported, compulsory = imageDestFlags()
		return supported, compulsory, burn.Ok
	}

	supportedFlags := track.FlagCheckSize | track.FlagNoGrace | track.FlagEject
	compulsoryFlags := track.FlagNone

	if sess.SameSrcDest() {
		result := r.flagsSameSrcDest(sess, &supportedFlags, &compulsoryFlags)

		// these can never work without a second drive
		supportedFlags &^= track.FlagNoTmpFiles | track.FlagMerge
		compulsoryFlags &^= track.FlagNoTmpFiles | track.FlagMerge

		if result != burn.Ok {
			r.logger.Debug("no available flags for copy")
			return track.FlagNone, track.FlagNone, result
		}
		return supportedFlags, compulsoryFlags, burn.Ok
	}

	sessionFlags := sess.Flags()

	if burner := sess.Burner(); burner != nil && !burner.AcceptFlags(sessionFlags) {
		r.logger.Debug("session flags not supported by drive")
		return track.FlagNone, track.FlagNone, burn.Err
	}

	// merging or appending while blanking first makes no sense
	if sessionFlags&(track.FlagMerge|track.FlagAppend) != 0 &&
		sessionFlags&track.FlagBlankBeforeWrite != 0 {
		return track.FlagNone, track.FlagNone, burn.NotSupported
	}

	media := sess.DestMedia()
	result := r.flagsForMedium(sess, media, sessionFlags, input, &supportedFlags, &compulsoryFlags)
	if result != burn.Ok {
		return track.FlagNone, track.FlagNone, result
	}

	if burner := sess.Burner(); burner != nil {
		burner.UpdateFlags(&supportedFlags, &compulsoryFlags)
	}

	return supportedFlags, compulsoryFlags, burn.Ok
}

// flagsSameSrcDestForType merges the recording flags over every medium the
// intermediate type could be burnt to.
func (r *Registry) flagsSameSrcDestForType(sess *session.Session, intermediate track.Type, supported, compulsory *track.BurnFlag) bool {
	// no flags matter while producing the intermediate; we only need to
	// know the extraction is possible at all
	if !r.tryOutput(track.FlagNone, 0, intermediate, sess.Input(), plugin.IOAcceptFile) {
		r.logger.Debug("intermediate format not supported", "type", intermediate.String())
		return false
	}

	sessionFlags := sess.Flags()
	check := sess.Check()

	typeSupported := false
	supportedFinal := track.FlagNone
	compulsoryFinal := track.FlagAll

	for _, caps := range r.capsList {
		if !caps.Type.HasMedium() {
			continue
		}
		media := caps.Type.Media()
		if media&track.MediaROM != 0 {
			continue
		}

		if media&track.MediaCD == 0 {
			if intermediate.HasImage() && intermediate.ImageFormat().CDOnly() {
				continue
			}
			if intermediate.HasStream() {
				continue
			}
		}

		sup := track.FlagNone
		comp := track.FlagNone
		result := r.flagsForDisc(check, sessionFlags, media, intermediate, &sup, &comp)
		if result != burn.Ok {
			continue
		}

		typeSupported = true
		supportedFinal |= sup
		compulsoryFinal &= comp
	}

	if !typeSupported {
		return false
	}

	*supported = supportedFinal
	*compulsory = compulsoryFinal
	return true
}

// flagsSameSrcDest merges flags across every admissible intermediate for a
// single-drive copy.
func (r *Registry) flagsSameSrcDest(sess *session.Session, supported, compulsory *track.BurnFlag) burn.Result {
	sessionFlags := sess.Flags()

	// a single drive can never merge nor stream source into target
	if sessionFlags&(track.FlagMerge|track.FlagNoTmpFiles) != 0 {
		return burn.NotSupported
	}

	copySupported := false
	supportedFinal := track.FlagNone
	compulsoryFinal := track.FlagAll

	stream := track.NewStream(track.StreamRawAudio | track.StreamMetadata)
	if r.flagsSameSrcDestForType(sess, stream, &supportedFinal, &compulsoryFinal) {
		copySupported = true
	}

	for _, format := range imageFormatsDescending {
		// raw write mode restricts the intermediate to clone images
		if format != track.ImageFormatClone && sessionFlags&track.FlagRaw != 0 {
			continue
		}

		sup := track.FlagNone
		comp := track.FlagNone
		if !r.flagsSameSrcDestForType(sess, track.NewImage(format), &sup, &comp) {
			continue
		}

		copySupported = true
		supportedFinal |= sup
		compulsoryFinal &= comp
	}

	if !copySupported {
		return burn.NotSupported
	}

	*supported |= supportedFinal
	*compulsory |= compulsoryFinal

	// blanking flags cannot be verified until the copy disc is actually
	// inserted, so offer them
	*supported |= track.FlagBlankBeforeWrite | track.FlagFastBlank

	if sess.Input().HasMedium() && sess.Input().Media()&track.MediaHasAudio != 0 {
		// audio discs may carry CD-TEXT which only DAO can write, so the
		// session must not be left open
		*compulsory |= track.FlagDAO
		*supported &^= track.FlagMulti
		*compulsory &^= track.FlagMulti
	}

	return burn.Ok
}
