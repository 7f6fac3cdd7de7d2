package model

// Format is an image format tag. Go has no enums, so the supported set is a
// list of typed string constants.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatICO  Format = "ico"
	FormatSVG  Format = "svg"
)

// CanonicalFormat is the raster format every non-vector artifact is converted into.
const CanonicalFormat = FormatPNG

var contentTypes = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatGIF:  "image/gif",
	FormatWebP: "image/webp",
	FormatBMP:  "image/bmp",
	FormatICO:  "image/x-icon",
	FormatSVG:  "image/svg+xml",
}

// Valid reports whether f is in the supported set.
func (f Format) Valid() bool {
	_, ok := contentTypes[f]
	return ok
}

// IsVector reports whether f has no intrinsic pixel dimensions.
func (f Format) IsVector() bool {
	return f == FormatSVG
}

// ContentType returns the MIME type for f, defaulting to a generic binary type.
func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Extension returns the usual file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Artifact is a downloaded image on its way to persistence. It is never
// stored as such.
type Artifact struct {
	Data   []byte
	Format Format
	Width  *int
	Height *int
}

// ByteSize returns the payload length.
func (a Artifact) ByteSize() int64 {
	return int64(len(a.Data))
}

// Dimensions returns pointers suitable for nullable width/height columns.
func Dimensions(w, h int) (*int, *int) {
	if w <= 0 || h <= 0 {
		return nil, nil
	}
	return &w, &h
}
