package track

import "strings"

// BurnFlag is a bitmask of user or planner selected burning options. The set
// is ordering independent; flags combine conjunctively.
type BurnFlag uint32

const (
	FlagNone BurnFlag = 0

	FlagEject BurnFlag = 1 << (iota - 1)
	// FlagDummy runs the burn as a simulation.
	FlagDummy
	// FlagDAO selects disc-at-once; FlagRaw the raw write mode used for
	// clone images.
	FlagDAO
	FlagRaw
	FlagBurnProof
	FlagOverburn
	FlagNoGrace
	// FlagMulti leaves the session open for a later append.
	FlagMulti
	FlagAppend
	FlagMerge
	FlagBlankBeforeWrite
	FlagFastBlank
	FlagNoTmpFiles
	FlagCheckSize
)

// FlagAll is the identity for compulsory-flag intersection.
const FlagAll BurnFlag = FlagEject | FlagDummy | FlagDAO | FlagRaw |
	FlagBurnProof | FlagOverburn | FlagNoGrace | FlagMulti | FlagAppend |
	FlagMerge | FlagBlankBeforeWrite | FlagFastBlank | FlagNoTmpFiles |
	FlagCheckSize

// RecordMask covers the flags a recording stage must be able to honor.
const RecordMask = FlagDummy | FlagMulti | FlagDAO | FlagRaw | FlagAppend |
	FlagMerge | FlagOverburn | FlagBurnProof | FlagNoGrace

// ImageMask covers the flags relevant to a data imaging stage.
const ImageMask = FlagAppend | FlagMerge

func (f BurnFlag) Has(other BurnFlag) bool { return f&other != 0 }

func (f BurnFlag) String() string {
	if f == FlagNone {
		return "none"
	}
	names := []struct {
		bit  BurnFlag
		name string
	}{
		{FlagEject, "eject"},
		{FlagDummy, "dummy"},
		{FlagDAO, "dao"},
		{FlagRaw, "raw"},
		{FlagBurnProof, "burnproof"},
		{FlagOverburn, "overburn"},
		{FlagNoGrace, "nograce"},
		{FlagMulti, "multi"},
		{FlagAppend, "append"},
		{FlagMerge, "merge"},
		{FlagBlankBeforeWrite, "blank-before-write"},
		{FlagFastBlank, "fast-blank"},
		{FlagNoTmpFiles, "no-tmp-files"},
		{FlagCheckSize, "check-size"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
