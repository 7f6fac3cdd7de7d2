//go:build vips && cgo

package imaging

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"
)

// vipsConverter converts with libvips through bimg. It also rasterizes SVG
// when libvips was built with librsvg.
type vipsConverter struct{}

func newConverter() converter { return vipsConverter{} }

func (vipsConverter) name() string { return "vips" }

func (vipsConverter) toPNG(data []byte, maxSide int) ([]byte, int, int, error) {
	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading image size: %w", err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, 0, 0, errors.New("image has no pixel dimensions")
	}

	w, h := fitWithin(size.Width, size.Height, maxSide)
	out, err := img.Process(bimg.Options{
		Width:          w,
		Height:         h,
		Force:          true,
		Type:           bimg.PNG,
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("resizing to %dx%d: %w", w, h, err)
	}
	return out, w, h, nil
}

func (vipsConverter) flatten(data []byte, r, g, b uint8) ([]byte, error) {
	return bimg.NewImage(data).Process(bimg.Options{
		Background:     bimg.Color{R: r, G: g, B: b},
		Type:           bimg.PNG,
		Interpretation: bimg.InterpretationSRGB,
	})
}
