// Package plugins holds the built-in back-end declarations: which media and
// image formats each external tool family handles and under which flags.
// The actual tool drivers are simulated; the declarations are what the
// planner reasons over.
package plugins

import (
	"os/exec"

	"discburn-agent/internal/plugin"
	"discburn-agent/internal/track"
)

// Media masks shared across declarations.
const (
	// cdAll covers every recordable CD state.
	cdAll = track.MediaCD | track.MediaWritable | track.MediaRewritable |
		track.MediaBlank | track.MediaAppendable | track.MediaClosed |
		track.MediaHasAudio | track.MediaHasData

	// cdWritable is a CD that still accepts a session.
	cdWritable = track.MediaCD | track.MediaWritable | track.MediaRewritable |
		track.MediaBlank | track.MediaAppendable | track.MediaHasAudio |
		track.MediaHasData

	// dvdWritable covers blank and appendable DVD media, plus and minus.
	dvdWritable = track.MediaDVD | track.MediaDVDPlus | track.MediaSequential |
		track.MediaRestricted | track.MediaWritable | track.MediaRewritable |
		track.MediaBlank | track.MediaAppendable | track.MediaHasData

	// discReadable is anything a reader can pull tracks from.
	discReadable = track.MediaCD | track.MediaDVD | track.MediaDVDPlus |
		track.MediaBD | track.MediaROM | track.MediaSequential |
		track.MediaRestricted | track.MediaWritable | track.MediaRewritable |
		track.MediaReadOnly | track.MediaAppendable | track.MediaClosed |
		track.MediaBlank | track.MediaHasAudio | track.MediaHasData

	// cdReadable is any CD a ripper can pull tracks from.
	cdReadable = track.MediaCD | track.MediaROM | track.MediaWritable |
		track.MediaRewritable | track.MediaReadOnly | track.MediaBlank |
		track.MediaAppendable | track.MediaClosed | track.MediaHasAudio |
		track.MediaHasData

	// rewritableCD is what a CD blanker erases.
	rewritableCD = track.MediaCD | track.MediaRewritable | track.MediaBlank |
		track.MediaAppendable | track.MediaClosed | track.MediaHasAudio |
		track.MediaHasData

	// rewritableDVD is what a DVD formatter erases or formats; write-once
	// media are excluded.
	rewritableDVD = track.MediaDVD | track.MediaDVDPlus | track.MediaSequential |
		track.MediaRestricted | track.MediaRewritable |
		track.MediaBlank | track.MediaAppendable | track.MediaClosed |
		track.MediaUnformatted | track.MediaHasAudio | track.MediaHasData
)

var streamRaw = track.NewStream(track.StreamRawAudio | track.StreamMetadata)

// helperState probes PATH for the tool a declaration fronts and returns the
// matching active flags.
func helperState(binary string) plugin.ActiveFlags {
	if binary == "" {
		return plugin.ActiveEnabled
	}
	if _, err := exec.LookPath(binary); err != nil {
		return plugin.ActiveEnabled | plugin.ActiveMissingBinary
	}
	return plugin.ActiveEnabled
}

// Builtin returns the built-in declarations. Helper binaries are probed on
// PATH; a missing one leaves the plug-in present but flagged, so planning
// can still report what an install would enable.
func Builtin() []*plugin.Declaration {
	return []*plugin.Declaration{
		cdrburn(),
		dvdburn(),
		cdrdao(),
		isogen(),
		audiotrans(),
		discread(),
		cloneread(),
		cdrdaoread(),
		streamread(),
		cdblank(),
		dvdformat(),
	}
}

// cdrburn writes images and audio streams to CD media.
func cdrburn() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "cdrburn",
		Priority: 80,
		Active:   helperState("wodim"),
		Links: []plugin.LinkDecl{
			{Input: track.NewImage(track.ImageFormatBin), Output: track.NewDisc(cdWritable), IO: plugin.IOAcceptFile | plugin.IOAcceptPipe},
			{Input: track.NewImage(track.ImageFormatClone), Output: track.NewDisc(cdWritable), IO: plugin.IOAcceptFile},
			{Input: track.NewImage(track.ImageFormatCue), Output: track.NewDisc(cdWritable), IO: plugin.IOAcceptFile},
			{Input: streamRaw, Output: track.NewDisc(cdWritable), IO: plugin.IOAcceptFile},
		},
		RecordFlagTable: []plugin.FlagEntry{
			{
				Media: cdAll,
				Supported: track.FlagDAO | track.FlagRaw | track.FlagMulti |
					track.FlagDummy | track.FlagBurnProof | track.FlagOverburn |
					track.FlagNoGrace | track.FlagAppend,
			},
		},
	}
}

// dvdburn writes data trees and images to DVD media, building the
// filesystem on the fly when fed a tree directly.
func dvdburn() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "dvdburn",
		Priority: 80,
		Active:   helperState("growisofs"),
		Links: []plugin.LinkDecl{
			{Input: track.NewImage(track.ImageFormatBin), Output: track.NewDisc(dvdWritable), IO: plugin.IOAcceptFile | plugin.IOAcceptPipe},
			{Input: track.NewData(track.FSAny), Output: track.NewDisc(dvdWritable), IO: plugin.IOAcceptFile},
		},
		RecordFlagTable: []plugin.FlagEntry{
			{
				Media: dvdWritable,
				Supported: track.FlagDAO | track.FlagMulti | track.FlagDummy |
					track.FlagBurnProof | track.FlagOverburn | track.FlagNoGrace |
					track.FlagAppend | track.FlagMerge,
			},
		},
		ImageFlagTable: []plugin.FlagEntry{
			{
				Media:     dvdWritable,
				Supported: track.FlagAppend | track.FlagMerge,
			},
		},
	}
}

// cdrdao writes toc-described images, always disc-at-once.
func cdrdao() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "cdrdao",
		Priority: 70,
		Active:   helperState("cdrdao"),
		Links: []plugin.LinkDecl{
			{Input: track.NewImage(track.ImageFormatCdrdao), Output: track.NewDisc(cdWritable), IO: plugin.IOAcceptFile},
			{Input: track.NewImage(track.ImageFormatCue), Output: track.NewDisc(cdWritable), IO: plugin.IOAcceptFile},
		},
		MediaRestriction: cdAll,
		RecordFlagTable: []plugin.FlagEntry{
			{
				Media: cdAll,
				Supported: track.FlagDAO | track.FlagDummy | track.FlagBurnProof |
					track.FlagOverburn | track.FlagNoGrace,
				Compulsory: track.FlagDAO,
			},
		},
	}
}

// isogen builds ISO9660 filesystem images from data trees.
func isogen() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "isogen",
		Priority: 80,
		Active:   helperState("genisoimage"),
		Links: []plugin.LinkDecl{
			{Input: track.NewData(track.FSAny), Output: track.NewImage(track.ImageFormatBin), IO: plugin.IOAcceptFile | plugin.IOAcceptPipe},
		},
		ImageFlagTable: []plugin.FlagEntry{
			{
				Media:     discReadable | track.MediaFile,
				Supported: track.FlagAppend | track.FlagMerge,
			},
		},
	}
}

// audiotrans decodes compressed audio into raw samples with metadata.
func audiotrans() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "audiotrans",
		Priority: 70,
		Active:   plugin.ActiveEnabled,
		Links: []plugin.LinkDecl{
			{
				Input:  track.NewStream(track.StreamRawAudio | track.StreamMP3 | track.StreamAAC | track.StreamMetadata),
				Output: streamRaw,
				IO:     plugin.IOAcceptFile | plugin.IOAcceptPipe,
			},
		},
	}
}

// discread images a readable disc into a plain binary image.
func discread() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "discread",
		Priority: 80,
		Active:   helperState("readom"),
		Links: []plugin.LinkDecl{
			{Input: track.NewDisc(discReadable), Output: track.NewImage(track.ImageFormatBin), IO: plugin.IOAcceptFile | plugin.IOAcceptPipe},
		},
	}
}

// cloneread produces raw clone images, a CD-only format.
func cloneread() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "cloneread",
		Priority: 60,
		Active:   helperState("readom"),
		Links: []plugin.LinkDecl{
			{Input: track.NewDisc(cdReadable), Output: track.NewImage(track.ImageFormatClone), IO: plugin.IOAcceptFile},
		},
	}
}

// cdrdaoread extracts toc-described images from CDs.
func cdrdaoread() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "cdrdaoread",
		Priority: 70,
		Active:   helperState("cdrdao"),
		Links: []plugin.LinkDecl{
			{Input: track.NewDisc(cdReadable), Output: track.NewImage(track.ImageFormatCdrdao), IO: plugin.IOAcceptFile},
			{Input: track.NewDisc(cdReadable), Output: track.NewImage(track.ImageFormatCue), IO: plugin.IOAcceptFile},
		},
	}
}

// streamread rips audio tracks to raw samples, keeping CD-TEXT metadata.
func streamread() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "streamread",
		Priority: 75,
		Active:   plugin.ActiveEnabled,
		Links: []plugin.LinkDecl{
			{Input: track.NewDisc(cdReadable), Output: streamRaw, IO: plugin.IOAcceptFile | plugin.IOAcceptPipe},
		},
	}
}

// cdblank erases rewritable CDs.
func cdblank() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "cdblank",
		Priority: 80,
		Active:   helperState("wodim"),
		Links: []plugin.LinkDecl{
			{Input: track.NewDisc(rewritableCD), Blanking: true},
		},
		BlankFlagTable: []plugin.FlagEntry{
			{
				Media:     rewritableCD,
				Supported: track.FlagDummy | track.FlagFastBlank | track.FlagNoGrace,
			},
		},
	}
}

// dvdformat blanks and formats rewritable DVD media.
func dvdformat() *plugin.Declaration {
	return &plugin.Declaration{
		Name:     "dvdformat",
		Priority: 80,
		Active:   helperState("dvd+rw-format"),
		Links: []plugin.LinkDecl{
			{Input: track.NewDisc(rewritableDVD), Blanking: true},
		},
		BlankFlagTable: []plugin.FlagEntry{
			{
				Media:     rewritableDVD,
				Supported: track.FlagDummy | track.FlagFastBlank | track.FlagNoGrace,
			},
		},
	}
}
