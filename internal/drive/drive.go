// Package drive models the destination device: which media it can write,
// the write strategies its firmware supports, and the hard flag rejections
// those capabilities imply. It also persists per-drive saved settings.
package drive

import (
	"discburn-agent/internal/track"
)

// Drive describes one optical drive and its firmware capabilities.
type Drive struct {
	Name   string
	Device string

	// WritableMedia is the mask of media the drive can record.
	WritableMedia track.Media

	// Medium currently loaded, MediaNone when the tray is empty.
	Medium track.Media

	// Write strategy capabilities.
	CanTAO      bool
	CanSAO      bool
	CanRawDAO   bool
	CanBurnFree bool

	// Simulation support per strategy.
	CanDummyForSAO bool
	CanDummyForTAO bool
}

// CanWriteMedia reports whether the drive can record the given medium.
func (d *Drive) CanWriteMedia(media track.Media) bool {
	if media&track.MediaROM != 0 {
		return false
	}
	return media&d.WritableMedia == media
}

// AcceptFlags applies per-drive hard rejections: a session flag the
// firmware can never honor fails the whole plan.
func (d *Drive) AcceptFlags(flags track.BurnFlag) bool {
	if flags&track.FlagDummy != 0 && !d.CanDummyForSAO && !d.CanDummyForTAO {
		return false
	}
	if flags&track.FlagBurnProof != 0 && !d.CanBurnFree {
		return false
	}
	if flags&track.FlagRaw != 0 && !d.CanRawDAO {
		return false
	}
	return true
}

// UpdateFlags narrows supported/compulsory burn flags to what the drive and
// its loaded medium can actually do. Mirrors the firmware quirks: DVD+ media
// never simulate, DVD simulation requires SAO dummy support, TAO-incapable
// drives cannot leave sessions open on sequential media, and BurnFree is
// dropped when the drive lacks it.
func (d *Drive) UpdateFlags(supported, compulsory *track.BurnFlag) {
	media := d.Medium
	if media == track.MediaNone {
		return
	}

	if media&track.MediaDVDPlus != 0 {
		*supported &^= track.FlagDummy
	} else if media&track.MediaDVD != 0 {
		if !d.CanDummyForSAO {
			*supported &^= track.FlagDummy
		}
	} else if *supported&track.FlagDAO != 0 {
		if !d.CanDummyForSAO {
			*supported &^= track.FlagDummy
		}
	} else if !d.CanDummyForTAO {
		*supported &^= track.FlagDummy
	}

	// A closed disc cannot do TAO/SAO, but when blanking is already
	// mandated the medium will be written blank, so leave the benefit of
	// the doubt; flags are rechecked after blanking.
	if *compulsory&track.FlagBlankBeforeWrite == 0 &&
		!media.RandomWritable() &&
		!d.CanTAO {
		*supported &^= track.FlagMulti

		if d.CanSAO {
			*compulsory |= track.FlagDAO
		} else {
			*supported &^= track.FlagDAO
		}
	}

	if !d.CanBurnFree {
		*supported &^= track.FlagBurnProof
	}
}
