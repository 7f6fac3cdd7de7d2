// Package imaging detects image formats and converts downloaded logos into
// the canonical representation stored by the service.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // registers the GIF decoder for image.DecodeConfig
	_ "image/jpeg" // registers the JPEG decoder
	_ "image/png"  // registers the PNG decoder
	"net/url"
	"path"
	"strings"

	_ "golang.org/x/image/bmp"  // registers the BMP decoder
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/fleveque/domain-logo-service/internal/model"
)

var errUnknownFormat = errors.New("unrecognized image format")

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Info is what probing learns about an image without fully decoding it.
// Width and Height are zero for vector images.
type Info struct {
	Format model.Format
	Width  int
	Height int
}

// HasDimensions reports whether pixel dimensions are known.
func (i Info) HasDimensions() bool {
	return i.Width > 0 && i.Height > 0
}

// Probe determines the format and pixel dimensions of data.
func Probe(data []byte) (Info, error) {
	format := Sniff(data)
	switch format {
	case "":
		return Info{}, errUnknownFormat
	case model.FormatSVG:
		return Info{Format: format}, nil
	case model.FormatICO:
		entries, err := parseICO(data)
		if err != nil {
			return Info{}, fmt.Errorf("probing ico: %w", err)
		}
		best := largestEntry(entries)
		return Info{Format: format, Width: best.width, Height: best.height}, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("probing %s: %w", format, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Sniff identifies the format from signature bytes. It returns "" when the
// payload matches nothing supported.
func Sniff(data []byte) model.Format {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return model.FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return model.FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return model.FormatGIF
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return model.FormatWebP
	case bytes.HasPrefix(data, []byte("BM")):
		return model.FormatBMP
	case len(data) >= 6 && data[0] == 0 && data[1] == 0 && (data[2] == 1 || data[2] == 2) && data[3] == 0:
		return model.FormatICO
	case looksLikeSVG(data):
		return model.FormatSVG
	}
	return ""
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.TrimPrefix(head, []byte("\xEF\xBB\xBF"))
	head = bytes.TrimSpace(bytes.ToLower(head))
	if !bytes.HasPrefix(head, []byte("<")) {
		return false
	}
	return bytes.Contains(head, []byte("<svg"))
}

var extensionFormats = map[string]model.Format{
	"png":  model.FormatPNG,
	"jpg":  model.FormatJPEG,
	"jpeg": model.FormatJPEG,
	"gif":  model.FormatGIF,
	"webp": model.FormatWebP,
	"bmp":  model.FormatBMP,
	"ico":  model.FormatICO,
	"svg":  model.FormatSVG,
}

// FormatFromURL infers a format from the path extension or, failing that,
// from a query parameter value such as "?format=png". It returns "" when the
// URL says nothing about the image type.
func FormatFromURL(rawURL string) model.Format {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	for _, values := range u.Query() {
		for _, v := range values {
			v = strings.ToLower(strings.TrimPrefix(v, "image/"))
			if f, ok := extensionFormats[v]; ok {
				return f
			}
			if f, ok := extensionFormats[strings.TrimPrefix(strings.ToLower(path.Ext(v)), ".")]; ok {
				return f
			}
		}
	}
	return ""
}

// guessFormat is the best-effort tag for bytes that could not be probed.
func guessFormat(data []byte, sourceURL string) model.Format {
	if f := Sniff(data); f != "" {
		return f
	}
	if f := FormatFromURL(sourceURL); f != "" {
		return f
	}
	return model.CanonicalFormat
}
