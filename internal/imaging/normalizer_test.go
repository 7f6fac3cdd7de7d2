package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// createTestPNG generates a solid-color PNG image in memory.
func createTestPNG(width, height int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func createTestJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 0, G: 0, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type icoFrame struct {
	width, height int
	bitCount      int
	payload       []byte
}

// buildICO assembles an ICO container from already-encoded frame payloads.
func buildICO(frames []icoFrame) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(len(frames)))

	offset := 6 + 16*len(frames)
	for _, f := range frames {
		w, h := byte(f.width), byte(f.height)
		if f.width >= 256 {
			w = 0
		}
		if f.height >= 256 {
			h = 0
		}
		buf.Write([]byte{w, h, 0, 0})
		binary.Write(&buf, binary.LittleEndian, uint16(1))
		binary.Write(&buf, binary.LittleEndian, uint16(f.bitCount))
		binary.Write(&buf, binary.LittleEndian, uint32(len(f.payload)))
		binary.Write(&buf, binary.LittleEndian, uint32(offset))
		offset += len(f.payload)
	}
	for _, f := range frames {
		buf.Write(f.payload)
	}
	return buf.Bytes()
}

// buildDIB32 encodes a solid 32-bit icon bitmap with an empty AND mask.
func buildDIB32(width, height int, c color.NRGBA) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(40))
	binary.Write(&buf, binary.LittleEndian, int32(width))
	binary.Write(&buf, binary.LittleEndian, int32(height*2))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(32))
	buf.Write(make([]byte, 24)) // compression, image size, resolution, palette

	for i := 0; i < width*height; i++ {
		buf.Write([]byte{c.B, c.G, c.R, c.A})
	}
	maskStride := ((width + 31) / 32) * 4
	buf.Write(make([]byte, maskStride*height))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if format != "png" {
		t.Fatalf("expected png output, got %s", format)
	}
	return cfg.Width, cfg.Height
}

func TestNormalize_Raster(t *testing.T) {
	n := NewNormalizer(512)

	tests := []struct {
		name         string
		data         []byte
		wantW, wantH int
		passthrough  bool
	}{
		{
			name:  "large square png is shrunk",
			data:  createTestPNG(600, 600, color.RGBA{R: 255, A: 255}),
			wantW: 512, wantH: 512,
		},
		{
			name:  "wide jpeg keeps aspect ratio",
			data:  createTestJPEG(1024, 256),
			wantW: 512, wantH: 128,
		},
		{
			name:  "small jpeg is converted but not enlarged",
			data:  createTestJPEG(100, 50),
			wantW: 100, wantH: 50,
		},
		{
			name:  "fitting png passes through",
			data:  createTestPNG(64, 64, color.RGBA{G: 255, A: 255}),
			wantW: 64, wantH: 64,
			passthrough: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := n.Normalize(tt.data, "https://example.com/logo")
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if art.Format != model.FormatPNG {
				t.Errorf("expected png, got %s", art.Format)
			}
			if art.Width == nil || art.Height == nil {
				t.Fatal("expected dimensions")
			}
			if *art.Width != tt.wantW || *art.Height != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, *art.Width, *art.Height)
			}
			w, h := decodeSize(t, art.Data)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("encoded image is %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if tt.passthrough && !bytes.Equal(art.Data, tt.data) {
				t.Error("expected bytes to pass through unchanged")
			}
		})
	}
}

func TestNormalize_SVGPassthrough(t *testing.T) {
	svg := []byte(`<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10"/></svg>`)

	art, err := NewNormalizer(512).Normalize(svg, "https://example.com/logo.svg")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if art.Format != model.FormatSVG {
		t.Errorf("expected svg, got %s", art.Format)
	}
	if !bytes.Equal(art.Data, svg) {
		t.Error("svg bytes must be stored unchanged")
	}
	if art.Width != nil || art.Height != nil {
		t.Error("svg must not carry dimensions")
	}
}

func TestNormalize_ICOPicksLargestFrame(t *testing.T) {
	ico := buildICO([]icoFrame{
		{width: 16, height: 16, bitCount: 32, payload: createTestPNG(16, 16, color.RGBA{R: 255, A: 255})},
		{width: 48, height: 48, bitCount: 32, payload: createTestPNG(48, 48, color.RGBA{B: 255, A: 255})},
	})

	art, err := NewNormalizer(512).Normalize(ico, "https://example.com/favicon.ico")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if art.Format != model.FormatPNG {
		t.Errorf("expected png, got %s", art.Format)
	}
	w, h := decodeSize(t, art.Data)
	if w != 48 || h != 48 {
		t.Errorf("expected 48x48, got %dx%d", w, h)
	}
	if *art.Width != 48 || *art.Height != 48 {
		t.Errorf("expected recorded 48x48, got %dx%d", *art.Width, *art.Height)
	}
}

func TestNormalize_ICOWithBitmapFrame(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	ico := buildICO([]icoFrame{
		{width: 16, height: 16, bitCount: 32, payload: buildDIB32(16, 16, color.NRGBA{G: 255, A: 255})},
		{width: 32, height: 32, bitCount: 32, payload: buildDIB32(32, 32, red)},
	})

	art, err := NewNormalizer(512).Normalize(ico, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(art.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("expected 32x32, got %dx%d", b.Dx(), b.Dy())
	}
	got := color.NRGBAModel.Convert(img.At(5, 5)).(color.NRGBA)
	if got != red {
		t.Errorf("expected red pixel, got %+v", got)
	}
}

func TestNormalize_DegradesOnBadInput(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		sourceURL  string
		wantFormat model.Format
	}{
		{"unknown bytes use url extension", []byte("definitely not an image, just text"), "https://example.com/logo.jpg", model.FormatJPEG},
		{"unknown bytes without hint", []byte("garbage garbage garbage"), "https://example.com/logo", model.FormatPNG},
		{"truncated png keeps signature format", append(append([]byte(nil), pngSignature...), 1, 2, 3, 4), "", model.FormatPNG},
		{"broken ico", []byte{0, 0, 1, 0, 0, 0}, "https://example.com/favicon.ico", model.FormatICO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := NewNormalizer(512).Normalize(tt.data, tt.sourceURL)
			if !errors.Is(err, ErrNormalizationFailed) {
				t.Fatalf("expected ErrNormalizationFailed, got %v", err)
			}
			if !bytes.Equal(art.Data, tt.data) {
				t.Error("raw bytes must be preserved")
			}
			if art.Format != tt.wantFormat {
				t.Errorf("expected format %s, got %s", tt.wantFormat, art.Format)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	info, err := Probe(createTestJPEG(40, 30))
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Format != model.FormatJPEG || info.Width != 40 || info.Height != 30 {
		t.Errorf("unexpected info %+v", info)
	}

	ico := buildICO([]icoFrame{{width: 256, height: 256, bitCount: 32, payload: createTestPNG(2, 2, color.White)}})
	info, err = Probe(ico)
	if err != nil {
		t.Fatalf("Probe ico failed: %v", err)
	}
	if info.Width != 256 || info.Height != 256 {
		t.Errorf("expected zero directory bytes to mean 256, got %dx%d", info.Width, info.Height)
	}

	if _, err := Probe([]byte("nope")); err == nil {
		t.Error("expected error for unknown bytes")
	}
}

func TestFormatFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want model.Format
	}{
		{"https://example.com/logo.PNG", model.FormatPNG},
		{"https://example.com/a/b/logo.jpeg?v=3", model.FormatJPEG},
		{"https://example.com/favicon.ico", model.FormatICO},
		{"https://example.com/render?format=webp", model.FormatWebP},
		{"https://example.com/img?src=brand.svg", model.FormatSVG},
		{"https://example.com/page.html", ""},
		{"https://example.com/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := FormatFromURL(tt.url); got != tt.want {
				t.Errorf("FormatFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{600, 600, 512, 512, 512},
		{1000, 10, 512, 512, 5},
		{10, 1000, 512, 5, 512},
		{3000, 1, 512, 512, 1},
		{100, 80, 512, 100, 80},
	}

	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestApplyBackground(t *testing.T) {
	transparent := createTestPNG(4, 4, color.NRGBA{})

	out, err := NewNormalizer(512).ApplyBackground(transparent, "#00ff00")
	if err != nil {
		t.Fatalf("ApplyBackground failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	r, g, b, a := img.At(1, 1).RGBA()
	if r != 0 || g != 0xffff || b != 0 || a != 0xffff {
		t.Errorf("expected opaque green, got %d %d %d %d", r, g, b, a)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		r, g, b uint8
		wantErr bool
	}{
		{"ffffff", 255, 255, 255, false},
		{"#000000", 0, 0, 0, false},
		{"FF8800", 255, 136, 0, false},
		{"fff", 0, 0, 0, true},
		{"zzzzzz", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, g, b, err := ParseHexColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("got (%d,%d,%d), want (%d,%d,%d)", r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}
