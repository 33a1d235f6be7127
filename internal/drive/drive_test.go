package drive

import (
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"discburn-agent/internal/track"
)

func capableDrive(medium track.Media) *Drive {
	return &Drive{
		Name:           "dr0",
		Device:         "/dev/sr0",
		WritableMedia:  track.MediaCD | track.MediaDVD | track.MediaWritable | track.MediaRewritable | track.MediaBlank,
		Medium:         medium,
		CanTAO:         true,
		CanSAO:         true,
		CanRawDAO:      true,
		CanBurnFree:    true,
		CanDummyForSAO: true,
		CanDummyForTAO: true,
	}
}

func TestAcceptFlags(t *testing.T) {
	is := is.New(t)

	d := capableDrive(track.MediaCD | track.MediaBlank)
	is.True(d.AcceptFlags(track.FlagDummy | track.FlagBurnProof | track.FlagRaw))

	limited := capableDrive(track.MediaCD | track.MediaBlank)
	limited.CanBurnFree = false
	limited.CanRawDAO = false
	limited.CanDummyForSAO = false
	limited.CanDummyForTAO = false

	is.True(!limited.AcceptFlags(track.FlagBurnProof))
	is.True(!limited.AcceptFlags(track.FlagRaw))
	is.True(!limited.AcceptFlags(track.FlagDummy))
	is.True(limited.AcceptFlags(track.FlagMulti | track.FlagEject))
}

func TestUpdateFlagsQuirks(t *testing.T) {
	is := is.New(t)

	// DVD+ media never simulate
	plus := capableDrive(track.MediaDVD | track.MediaDVDPlus | track.MediaRewritable | track.MediaBlank)
	supported := track.FlagDummy | track.FlagDAO | track.FlagMulti | track.FlagBurnProof
	compulsory := track.FlagNone
	plus.UpdateFlags(&supported, &compulsory)
	is.Equal(supported&track.FlagDummy, track.FlagNone)

	// a TAO-incapable drive cannot leave a sequential session open; with
	// SAO available DAO becomes mandatory
	seq := capableDrive(track.MediaDVD | track.MediaSequential | track.MediaWritable | track.MediaBlank)
	seq.CanTAO = false
	supported = track.FlagDAO | track.FlagMulti | track.FlagBurnProof
	compulsory = track.FlagNone
	seq.UpdateFlags(&supported, &compulsory)
	is.Equal(supported&track.FlagMulti, track.FlagNone)
	is.True(compulsory&track.FlagDAO != 0)

	// no BurnFree capability drops BurnProof
	noBF := capableDrive(track.MediaCD | track.MediaWritable | track.MediaBlank)
	noBF.CanBurnFree = false
	supported = track.FlagDAO | track.FlagBurnProof
	compulsory = track.FlagNone
	noBF.UpdateFlags(&supported, &compulsory)
	is.Equal(supported&track.FlagBurnProof, track.FlagNone)

	// a mandated blanking pass leaves the strategy checks for later
	blanking := capableDrive(track.MediaDVD | track.MediaSequential | track.MediaRewritable | track.MediaClosed)
	blanking.CanTAO = false
	supported = track.FlagDAO | track.FlagMulti
	compulsory = track.FlagBlankBeforeWrite
	blanking.UpdateFlags(&supported, &compulsory)
	is.True(supported&track.FlagMulti != 0)
}

func TestCanWriteMedia(t *testing.T) {
	is := is.New(t)

	d := capableDrive(track.MediaNone)
	is.True(d.CanWriteMedia(track.MediaCD | track.MediaWritable | track.MediaBlank))
	is.True(!d.CanWriteMedia(track.MediaBD | track.MediaWritable))
	// pressed discs are never writable
	is.True(!d.CanWriteMedia(track.MediaCD | track.MediaROM))
}

func TestStoreRoundTrip(t *testing.T) {
	is := is.New(t)

	store, err := NewStore(filepath.Join(t.TempDir(), "settings.db"))
	is.NoErr(err)
	is.NoErr(store.Open())
	defer store.Close()

	_, found, err := store.Get("/dev/sr0")
	is.NoErr(err)
	is.True(!found)

	in := Settings{
		Flags:  track.FlagEject | track.FlagBurnProof | track.FlagDAO,
		Speed:  16,
		TmpDir: "/var/tmp",
	}
	is.NoErr(store.Put("/dev/sr0", in))

	out, found, err := store.Get("/dev/sr0")
	is.NoErr(err)
	is.True(found)
	is.Equal(out.Speed, int64(16))
	is.Equal(out.TmpDir, "/var/tmp")
	// only the rememberable flags survive
	is.True(out.Flags&track.FlagEject != 0)
	is.True(out.Flags&track.FlagBurnProof != 0)
	is.Equal(out.Flags&track.FlagDAO, track.FlagNone)

	is.NoErr(store.Delete("/dev/sr0"))
	_, found, err = store.Get("/dev/sr0")
	is.NoErr(err)
	is.True(!found)
}
