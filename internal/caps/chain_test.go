package caps_test

import (
	"testing"

	"github.com/matryer/is"

	"discburn-agent/internal/session"
	"discburn-agent/internal/track"
)

func TestMaterializeDataToDVDChain(t *testing.T) {
	is := is.New(t)
	registry := newRegistry(t, nil)

	medium := track.MediaDVD | track.MediaSequential | track.MediaWritable | track.MediaBlank
	sess := burnSession(track.NewData(track.FSISO9660|track.FSJoliet), medium, track.FlagNone)

	chain, err := registry.MaterializeChain(sess)
	is.NoErr(err)
	is.True(len(chain.Stages) >= 2)
	is.True(chain.WellFormed())

	// input-first ordering: the head consumes the session input, the tail
	// produces the medium
	is.True(chain.Stages[0].Input.HasData())
	is.True(chain.Stages[len(chain.Stages)-1].Output.HasMedium())

	for _, stage := range chain.Stages {
		is.True(stage.Plugin != nil)
	}
}

func TestMaterializePrependsBlanking(t *testing.T) {
	is := is.New(t)
	registry := newRegistry(t, nil)

	medium := track.MediaDVD | track.MediaSequential | track.MediaRewritable |
		track.MediaClosed | track.MediaHasData
	sess := burnSession(track.NewData(track.FSISO9660), medium, track.FlagNone)

	chain, err := registry.MaterializeChain(sess)
	is.NoErr(err)
	is.True(len(chain.Stages) >= 3)
	is.True(chain.Stages[0].Blanking)
	is.Equal(chain.Stages[0].Plugin.Name, "dvdformat")
	is.True(chain.WellFormed())
}

func TestMaterializeSameSrcDestStopsAtIntermediate(t *testing.T) {
	is := is.New(t)
	registry := newRegistry(t, nil)

	d := testDrive(track.MediaCD | track.MediaHasAudio | track.MediaClosed)
	sess := session.New(session.Config{
		Input:       track.NewDisc(track.MediaCD | track.MediaHasAudio | track.MediaClosed),
		DestDrive:   d,
		SourceDrive: d,
	})

	chain, err := registry.MaterializeChain(sess)
	is.NoErr(err)
	is.True(len(chain.Stages) >= 1)
	// extraction only; the recording phase is planned again after the
	// blank disc is inserted
	last := chain.Stages[len(chain.Stages)-1]
	is.True(!last.Output.HasMedium())
}

func TestMaterializeBlankChain(t *testing.T) {
	is := is.New(t)
	registry := newRegistry(t, nil)

	medium := track.MediaCD | track.MediaRewritable | track.MediaClosed | track.MediaHasData
	sess := burnSession(track.NewNone(), medium, track.FlagNone)

	chain, err := registry.MaterializeBlankChain(sess)
	is.NoErr(err)
	is.Equal(len(chain.Stages), 1)
	is.True(chain.Stages[0].Blanking)
	is.Equal(chain.Stages[0].Plugin.Name, "cdblank")
}

func TestHigherPriorityPluginWins(t *testing.T) {
	is := is.New(t)

	// cue images are writable by both cdrburn (80) and cdrdao (70)
	registry := newRegistry(t, nil)

	medium := track.MediaCD | track.MediaWritable | track.MediaBlank
	sess := burnSession(track.NewImage(track.ImageFormatCue), medium, track.FlagNone)

	chain, err := registry.MaterializeChain(sess)
	is.NoErr(err)
	is.Equal(len(chain.Stages), 1)
	is.Equal(chain.Stages[0].Plugin.Name, "cdrburn")
}
