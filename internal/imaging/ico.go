package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/bmp"
)

// iconEntry is one directory record of an ICO/CUR container.
type iconEntry struct {
	width    int
	height   int
	bitCount int
	size     uint32
	offset   uint32
}

func parseICO(data []byte) ([]iconEntry, error) {
	if len(data) < 6 {
		return nil, errors.New("ico header truncated")
	}
	if binary.LittleEndian.Uint16(data[0:2]) != 0 {
		return nil, errors.New("ico reserved field is not zero")
	}
	if typ := binary.LittleEndian.Uint16(data[2:4]); typ != 1 && typ != 2 {
		return nil, fmt.Errorf("unexpected ico type %d", typ)
	}
	count := int(binary.LittleEndian.Uint16(data[4:6]))
	if count == 0 {
		return nil, errors.New("ico has no images")
	}
	if len(data) < 6+16*count {
		return nil, errors.New("ico directory truncated")
	}

	entries := make([]iconEntry, 0, count)
	for i := 0; i < count; i++ {
		rec := data[6+16*i : 6+16*(i+1)]
		e := iconEntry{
			width:    int(rec[0]),
			height:   int(rec[1]),
			bitCount: int(binary.LittleEndian.Uint16(rec[6:8])),
			size:     binary.LittleEndian.Uint32(rec[8:12]),
			offset:   binary.LittleEndian.Uint32(rec[12:16]),
		}
		// A zero byte means 256 pixels.
		if e.width == 0 {
			e.width = 256
		}
		if e.height == 0 {
			e.height = 256
		}
		if uint64(e.offset)+uint64(e.size) > uint64(len(data)) || e.size == 0 {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, errors.New("ico has no readable images")
	}
	return entries, nil
}

// largestEntry picks the frame with the biggest pixel area, preferring the
// deeper color depth on ties.
func largestEntry(entries []iconEntry) iconEntry {
	best := entries[0]
	for _, e := range entries[1:] {
		area, bestArea := e.width*e.height, best.width*best.height
		if area > bestArea || (area == bestArea && e.bitCount > best.bitCount) {
			best = e
		}
	}
	return best
}

// largestIconFrame returns the biggest embedded frame as PNG bytes.
func largestIconFrame(data []byte) ([]byte, error) {
	entries, err := parseICO(data)
	if err != nil {
		return nil, err
	}
	best := largestEntry(entries)
	payload := data[best.offset : best.offset+best.size]

	if bytes.HasPrefix(payload, pngSignature) {
		return append([]byte(nil), payload...), nil
	}

	img, err := decodeDIB(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding %dx%d icon frame: %w", best.width, best.height, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding icon frame: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeDIB decodes the headerless bitmap stored inside an icon. Icon DIBs
// carry a doubled height (color rows followed by a 1-bit AND mask).
func decodeDIB(p []byte) (image.Image, error) {
	if len(p) < 40 {
		return nil, errors.New("dib header truncated")
	}
	hdrSize := int(binary.LittleEndian.Uint32(p[0:4]))
	width := int(int32(binary.LittleEndian.Uint32(p[4:8])))
	height := int(int32(binary.LittleEndian.Uint32(p[8:12]))) / 2
	bpp := int(binary.LittleEndian.Uint16(p[14:16]))
	compression := binary.LittleEndian.Uint32(p[16:20])

	if width <= 0 || height <= 0 || hdrSize < 40 || hdrSize > len(p) {
		return nil, fmt.Errorf("invalid dib geometry %dx%d", width, height)
	}

	if (bpp == 32 || bpp == 24) && (compression == 0 || compression == 3) {
		return decodeTrueColorDIB(p[hdrSize:], width, height, bpp)
	}
	return decodePalettedDIB(p, hdrSize, width, height, bpp)
}

func decodeTrueColorDIB(pix []byte, width, height, bpp int) (image.Image, error) {
	stride := ((width*bpp + 31) / 32) * 4
	maskStride := ((width + 31) / 32) * 4
	if len(pix) < stride*height {
		return nil, errors.New("dib pixel data truncated")
	}
	hasMask := len(pix) >= stride*height+maskStride*height
	mask := pix[min(len(pix), stride*height):]

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	alphaSeen := false
	bytesPerPixel := bpp / 8
	for row := 0; row < height; row++ {
		y := height - 1 - row // bottom-up
		line := pix[row*stride:]
		for x := 0; x < width; x++ {
			px := line[x*bytesPerPixel:]
			c := color.NRGBA{R: px[2], G: px[1], B: px[0], A: 255}
			if bpp == 32 {
				c.A = px[3]
				if c.A != 0 {
					alphaSeen = true
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	// 24-bit frames, and 32-bit frames without alpha, rely on the AND mask.
	if bpp == 24 || !alphaSeen {
		for row := 0; row < height; row++ {
			y := height - 1 - row
			for x := 0; x < width; x++ {
				c := img.NRGBAAt(x, y)
				c.A = 255
				if hasMask && mask[row*maskStride+x/8]&(0x80>>(x%8)) != 0 {
					c.A = 0
				}
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img, nil
}

// decodePalettedDIB wraps the DIB in a BMP file header and lets x/image/bmp
// do the decoding.
func decodePalettedDIB(p []byte, hdrSize, width, height, bpp int) (image.Image, error) {
	colors := int(binary.LittleEndian.Uint32(p[32:36]))
	if colors == 0 && bpp <= 8 {
		colors = 1 << bpp
	}

	dib := append([]byte(nil), p...)
	binary.LittleEndian.PutUint32(dib[8:12], uint32(height))

	file := make([]byte, 14, 14+len(dib))
	file[0], file[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(file[2:6], uint32(14+len(dib)))
	binary.LittleEndian.PutUint32(file[10:14], uint32(14+hdrSize+colors*4))
	file = append(file, dib...)

	img, err := bmp.Decode(bytes.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("decoding %d-bit dib (%dx%d): %w", bpp, width, height, err)
	}
	return img, nil
}
