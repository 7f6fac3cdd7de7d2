package imaging

import (
	"errors"
	"fmt"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// ErrNormalizationFailed marks an artifact that was kept as downloaded
// because it could not be probed or converted.
var ErrNormalizationFailed = errors.New("image normalization failed")

// DefaultMaxDimension bounds both sides of a normalized raster image.
const DefaultMaxDimension = 512

// converter is the conversion engine. The pure-Go engine is the default; the
// libvips engine is compiled in with the "vips" build tag.
type converter interface {
	// toPNG decodes data, shrinks it to fit maxSide (never enlarging) and
	// encodes the result as PNG.
	toPNG(data []byte, maxSide int) (out []byte, width, height int, err error)
	// flatten composites a transparent PNG onto a solid background.
	flatten(data []byte, r, g, b uint8) ([]byte, error)
	name() string
}

// Normalizer turns downloaded bytes into the canonical stored representation.
type Normalizer struct {
	maxSide int
	conv    converter
}

// NewNormalizer creates a Normalizer bounding raster output to maxSide pixels.
func NewNormalizer(maxSide int) *Normalizer {
	if maxSide <= 0 {
		maxSide = DefaultMaxDimension
	}
	return &Normalizer{maxSide: maxSide, conv: newConverter()}
}

// Engine names the compiled-in conversion engine.
func (n *Normalizer) Engine() string {
	return n.conv.name()
}

// Normalize applies the storage rules: SVG is kept byte-for-byte, a PNG that
// already fits is kept, anything else is fitted and re-encoded as PNG. On
// failure the raw bytes come back tagged with the best format guess together
// with an error wrapping ErrNormalizationFailed, so the caller can still store
// them.
func (n *Normalizer) Normalize(data []byte, sourceURL string) (model.Artifact, error) {
	info, err := Probe(data)
	if err != nil {
		return model.Artifact{Data: data, Format: guessFormat(data, sourceURL)},
			fmt.Errorf("%w: %v", ErrNormalizationFailed, err)
	}

	if info.Format.IsVector() {
		return model.Artifact{Data: data, Format: info.Format}, nil
	}

	if info.Format == model.CanonicalFormat && n.fits(info.Width, info.Height) {
		w, h := model.Dimensions(info.Width, info.Height)
		return model.Artifact{Data: data, Format: info.Format, Width: w, Height: h}, nil
	}

	out, err := n.ToCanonical(data)
	if err != nil {
		w, h := model.Dimensions(info.Width, info.Height)
		return model.Artifact{Data: data, Format: info.Format, Width: w, Height: h}, err
	}
	return out, nil
}

// ToCanonical converts any supported input into a PNG that fits the
// configured bounds. ICO input is reduced to its largest frame first. It is
// also used to prepare artifacts for hosts that reject their native format.
func (n *Normalizer) ToCanonical(data []byte) (model.Artifact, error) {
	src := data
	if Sniff(data) == model.FormatICO {
		frame, err := largestIconFrame(data)
		if err != nil {
			return model.Artifact{}, fmt.Errorf("%w: %v", ErrNormalizationFailed, err)
		}
		src = frame
	}

	out, width, height, err := n.conv.toPNG(src, n.maxSide)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("%w: %v", ErrNormalizationFailed, err)
	}
	w, h := model.Dimensions(width, height)
	return model.Artifact{Data: out, Format: model.CanonicalFormat, Width: w, Height: h}, nil
}

// ApplyBackground flattens the alpha channel of a PNG onto a solid color
// given as a 6-digit hex string, with or without a leading '#'.
func (n *Normalizer) ApplyBackground(data []byte, hexColor string) ([]byte, error) {
	r, g, b, err := ParseHexColor(hexColor)
	if err != nil {
		return nil, err
	}
	out, err := n.conv.flatten(data, r, g, b)
	if err != nil {
		return nil, fmt.Errorf("applying background %s: %w", hexColor, err)
	}
	return out, nil
}

func (n *Normalizer) fits(w, h int) bool {
	return w <= n.maxSide && h <= n.maxSide
}

// fitWithin scales (w, h) down so neither side exceeds maxSide, preserving the
// aspect ratio. Smaller images are returned unchanged.
func fitWithin(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := int(float64(h)*float64(maxSide)/float64(w) + 0.5)
		return maxSide, max(nh, 1)
	}
	nw := int(float64(w)*float64(maxSide)/float64(h) + 0.5)
	return max(nw, 1), maxSide
}
