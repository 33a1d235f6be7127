package track

import "strings"

// Kind discriminates the track type union.
type Kind int

const (
	KindNone Kind = iota
	KindData
	KindStream
	KindImage
	KindDisc
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindStream:
		return "stream"
	case KindImage:
		return "image"
	case KindDisc:
		return "disc"
	default:
		return "none"
	}
}

// Media is a bitmask describing an optical medium: its physical family,
// writability, state and current content.
type Media uint32

const (
	MediaNone Media = 0

	// Physical family
	MediaFile        Media = 1 << iota // pseudo-medium for image files
	MediaCD
	MediaDVD
	MediaDVDPlus
	MediaBD
	MediaRestricted // DVD-RW restricted overwrite
	MediaSequential // DVD-RW sequential recording
	MediaROM

	// Writability
	MediaWritable
	MediaRewritable
	MediaReadOnly

	// State
	MediaBlank
	MediaAppendable
	MediaClosed
	MediaUnformatted

	// Content
	MediaHasAudio
	MediaHasData
)

// MediaDVDRW identifies a sequential DVD-RW, the medium whose MMC blanking
// restrictions drive several planner rules.
const MediaDVDRW = MediaDVD | MediaSequential | MediaRewritable

// Is reports whether m carries every bit of sub.
func (m Media) Is(sub Media) bool {
	return m&sub == sub
}

// RandomWritable reports whether the medium accepts random writes, in which
// case TAO/SAO strategy restrictions do not apply.
func (m Media) RandomWritable() bool {
	return m&MediaRestricted != 0 || m&MediaDVDPlus != 0 || m&MediaBD != 0
}

func (m Media) String() string {
	if m == MediaNone {
		return "none"
	}
	names := []struct {
		bit  Media
		name string
	}{
		{MediaFile, "file"},
		{MediaCD, "cd"},
		{MediaDVD, "dvd"},
		{MediaDVDPlus, "dvd+"},
		{MediaBD, "bd"},
		{MediaRestricted, "restricted"},
		{MediaSequential, "sequential"},
		{MediaROM, "rom"},
		{MediaWritable, "writable"},
		{MediaRewritable, "rewritable"},
		{MediaReadOnly, "readonly"},
		{MediaBlank, "blank"},
		{MediaAppendable, "appendable"},
		{MediaClosed, "closed"},
		{MediaUnformatted, "unformatted"},
		{MediaHasAudio, "audio"},
		{MediaHasData, "data"},
	}
	var parts []string
	for _, n := range names {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ImageFormat is a single-selection disc image format.
type ImageFormat uint32

const (
	ImageFormatNone ImageFormat = 0
	ImageFormatBin  ImageFormat = 1 << (iota - 1)
	ImageFormatClone
	ImageFormatCue
	ImageFormatCdrdao
)

// ImageFormatAny matches every concrete format; used by plug-ins that accept
// all image kinds.
const ImageFormatAny = ImageFormatBin | ImageFormatClone | ImageFormatCue | ImageFormatCdrdao

func (f ImageFormat) String() string {
	switch f {
	case ImageFormatBin:
		return "bin"
	case ImageFormatClone:
		return "clone"
	case ImageFormatCue:
		return "cue"
	case ImageFormatCdrdao:
		return "cdrdao"
	default:
		return "none"
	}
}

// CDOnly reports whether the format can only describe CD media.
func (f ImageFormat) CDOnly() bool {
	return f == ImageFormatCdrdao || f == ImageFormatCue || f == ImageFormatClone
}

// StreamFormat is a bitmask of audio/video stream traits.
type StreamFormat uint32

const (
	StreamFormatNone StreamFormat = 0
	StreamRawAudio   StreamFormat = 1 << (iota - 1)
	StreamMP3
	StreamAAC
	StreamMetadata
	StreamUndefinedVideo
	StreamVCD
	StreamVideoDVD
)

// StreamVideoMask groups the video traits.
const StreamVideoMask = StreamUndefinedVideo | StreamVCD | StreamVideoDVD

// FSFlags describes the filesystems of a data tree.
type FSFlags uint32

const (
	FSNone    FSFlags = 0
	FSISO9660 FSFlags = 1 << (iota - 1)
	FSJoliet
	FSUDF
	FSVideo
	FSSymlinks
	FSDeepDirectory
)

// FSAny matches every data tree.
const FSAny = FSISO9660 | FSJoliet | FSUDF | FSVideo | FSSymlinks | FSDeepDirectory

// Type is a tagged union over the kinds of content a stage consumes or
// produces: nothing, a data tree, an audio/video stream, a disc image or a
// medium in a drive.
type Type struct {
	kind   Kind
	fs     FSFlags
	stream StreamFormat
	img    ImageFormat
	media  Media
}

func NewNone() Type                 { return Type{} }
func NewData(fs FSFlags) Type       { return Type{kind: KindData, fs: fs} }
func NewStream(f StreamFormat) Type { return Type{kind: KindStream, stream: f} }
func NewImage(f ImageFormat) Type   { return Type{kind: KindImage, img: f} }
func NewDisc(m Media) Type          { return Type{kind: KindDisc, media: m} }

func (t Type) Kind() Kind    { return t.kind }
func (t Type) FS() FSFlags   { return t.fs }
func (t Type) Media() Media  { return t.media }
func (t Type) HasData() bool { return t.kind == KindData }

func (t Type) HasStream() bool { return t.kind == KindStream }
func (t Type) HasImage() bool  { return t.kind == KindImage }
func (t Type) HasMedium() bool { return t.kind == KindDisc }

func (t Type) StreamFormat() StreamFormat { return t.stream }
func (t Type) ImageFormat() ImageFormat   { return t.img }

// WithMedia returns a copy of t with its medium replaced.
func (t Type) WithMedia(m Media) Type {
	t.media = m
	return t
}

// Equal is bit-exact type equality.
func (t Type) Equal(o Type) bool { return t == o }

func (t Type) String() string {
	switch t.kind {
	case KindData:
		return "data"
	case KindStream:
		return "stream"
	case KindImage:
		return "image:" + t.img.String()
	case KindDisc:
		return "disc:" + t.media.String()
	default:
		return "none"
	}
}

// Compatible reports whether a's subtype is contained in b's for the same
// kind. For discs this means every media bit of a is present in b.
func Compatible(a, b Type) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindData:
		return a.fs&b.fs == a.fs
	case KindStream:
		return a.stream&b.stream == a.stream
	case KindImage:
		return a.img&b.img == a.img
	case KindDisc:
		return a.media&b.media == a.media
	default:
		return true
	}
}

// Blanked returns the medium as it would look after a successful blanking
// pass: content and session state cleared, Blank set.
func Blanked(m Media) Media {
	m &^= MediaClosed | MediaAppendable | MediaUnformatted | MediaHasData | MediaHasAudio
	m |= MediaBlank
	return m
}

// ShouldBlank reports whether a medium needs blanking before the session can
// be written: it is unformatted, or it carries content the session does not
// intend to merge with or append to.
func ShouldBlank(m Media, flags BurnFlag) bool {
	if m&MediaUnformatted != 0 {
		return true
	}
	return m&(MediaHasAudio|MediaHasData) != 0 && flags&(FlagMerge|FlagAppend) == 0
}
