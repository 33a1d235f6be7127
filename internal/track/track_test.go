package track

import (
	"testing"

	"github.com/matryer/is"
)

func TestCompatible(t *testing.T) {
	is := is.New(t)

	// a disc is compatible with a superset medium
	a := NewDisc(MediaDVD | MediaSequential | MediaWritable | MediaBlank)
	b := NewDisc(MediaDVD | MediaDVDPlus | MediaSequential | MediaWritable | MediaRewritable | MediaBlank | MediaAppendable)
	is.True(Compatible(a, b))
	is.True(!Compatible(b, a))

	// different kinds never match
	is.True(!Compatible(NewData(FSISO9660), NewImage(ImageFormatBin)))

	// data trees match on filesystem subset
	is.True(Compatible(NewData(FSISO9660|FSJoliet), NewData(FSAny)))
	is.True(!Compatible(NewData(FSISO9660|FSVideo), NewData(FSISO9660)))

	// image formats are single-selection; a format is compatible with a mask
	// covering it
	is.True(Compatible(NewImage(ImageFormatClone), NewImage(ImageFormatAny)))
	is.True(!Compatible(NewImage(ImageFormatClone), NewImage(ImageFormatBin)))
}

func TestTypeEquality(t *testing.T) {
	is := is.New(t)

	is.True(NewDisc(MediaCD | MediaBlank).Equal(NewDisc(MediaCD | MediaBlank)))
	is.True(!NewDisc(MediaCD).Equal(NewDisc(MediaCD | MediaBlank)))
	is.True(NewNone().Equal(NewNone()))
}

func TestBlanked(t *testing.T) {
	is := is.New(t)

	m := MediaDVD | MediaSequential | MediaRewritable | MediaClosed | MediaHasData
	blanked := Blanked(m)

	is.True(blanked&MediaBlank != 0)
	is.Equal(blanked&(MediaClosed|MediaAppendable|MediaUnformatted|MediaHasData|MediaHasAudio), MediaNone)
	// physical identity survives blanking
	is.True(blanked&MediaDVD != 0)
	is.True(blanked&MediaSequential != 0)
	is.True(blanked&MediaRewritable != 0)
}

func TestShouldBlank(t *testing.T) {
	is := is.New(t)

	is.True(ShouldBlank(MediaCD|MediaRewritable|MediaUnformatted, FlagNone))
	is.True(ShouldBlank(MediaCD|MediaRewritable|MediaHasData, FlagNone))
	// merging keeps the content
	is.True(!ShouldBlank(MediaCD|MediaRewritable|MediaHasData, FlagMerge))
	is.True(!ShouldBlank(MediaCD|MediaRewritable|MediaHasAudio, FlagAppend))
	is.True(!ShouldBlank(MediaCD|MediaRewritable|MediaBlank, FlagNone))
}

func TestImageFormatOrder(t *testing.T) {
	is := is.New(t)

	// planner iteration relies on cdrdao being the highest bit
	is.True(ImageFormatCdrdao > ImageFormatCue)
	is.True(ImageFormatCue > ImageFormatClone)
	is.True(ImageFormatClone > ImageFormatBin)

	is.True(ImageFormatCdrdao.CDOnly())
	is.True(ImageFormatCue.CDOnly())
	is.True(ImageFormatClone.CDOnly())
	is.True(!ImageFormatBin.CDOnly())
}

func TestMediaPredicates(t *testing.T) {
	is := is.New(t)

	dvdrw := MediaDVD | MediaSequential | MediaRewritable | MediaBlank
	is.True(dvdrw.Is(MediaDVDRW))
	is.True(!(MediaDVD | MediaWritable).Is(MediaDVDRW))

	is.True((MediaDVD | MediaDVDPlus | MediaRewritable).RandomWritable())
	is.True((MediaDVD | MediaRestricted | MediaRewritable).RandomWritable())
	is.True(!(MediaDVD | MediaSequential | MediaRewritable).RandomWritable())
}

func TestFlagStrings(t *testing.T) {
	is := is.New(t)

	is.Equal(FlagNone.String(), "none")
	is.Equal((FlagDAO | FlagMulti).String(), "dao|multi")
	is.Equal(MediaNone.String(), "none")
}
