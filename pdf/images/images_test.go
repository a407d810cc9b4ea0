package images

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/georgepadayatti/signpad/pdf/filters"
	"github.com/georgepadayatti/signpad/pdf/generic"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func createPatternImage(width, height int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: alpha})
		}
	}
	return img
}

func createTestPNG(width, height int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, createPatternImage(width, height, 255))
	return buf.Bytes()
}

func createTestJPEG(width, height int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, createPatternImage(width, height, 255), &jpeg.Options{Quality: 85})
	return buf.Bytes()
}

func createGrayImage(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	return img
}

// withPHYs inserts a pHYs chunk after IHDR.
func withPHYs(data []byte, ppm uint32) []byte {
	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	chunk = append(chunk, "pHYs"...)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	ihdrEnd := 8 + 12 + 13
	out := append([]byte(nil), data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected ImageFormat
	}{
		{"PNG", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, FormatPNG},
		{"JPEG", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}, FormatJPEG},
		{"GIF87a", []byte("GIF87a\x00\x00"), FormatGIF},
		{"GIF89a", []byte("GIF89a\x00\x00"), FormatGIF},
		{"BMP", []byte{0x42, 0x4D, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, FormatBMP},
		{"TIFF little endian", []byte("II*\x00\x08\x00\x00\x00"), FormatTIFF},
		{"TIFF big endian", []byte("MM\x00*\x00\x00\x00\x08"), FormatTIFF},
		{"WebP", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWEBP},
		{"Unknown", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, ""},
		{"Too short", []byte{0x00, 0x00}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := detectFormat(tt.data); result != tt.expected {
				t.Errorf("detectFormat() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNewPDFImageFromBytesPNG(t *testing.T) {
	img, err := NewPDFImageFromBytes(createTestPNG(100, 50))
	if err != nil {
		t.Fatalf("NewPDFImageFromBytes failed: %v", err)
	}
	if img.Width != 100 || img.Height != 50 {
		t.Errorf("Expected 100x50, got %dx%d", img.Width, img.Height)
	}
	if img.OriginalFormat != FormatPNG {
		t.Errorf("Expected PNG format, got %s", img.OriginalFormat)
	}
	if img.Filter != "FlateDecode" || img.ColorSpace != ColorSpaceRGB {
		t.Errorf("Unexpected filter/colorspace %s/%s", img.Filter, img.ColorSpace)
	}
	if img.HasAlpha() {
		t.Error("Expected opaque PNG to have no soft mask")
	}

	raw, err := filters.FlateDecodeFilter{}.Decode(img.Data, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(raw) != 100*50*3 {
		t.Errorf("Expected %d sample bytes, got %d", 100*50*3, len(raw))
	}
	// Pixel (7, 3) is R=7 G=3 B=128.
	off := (3*100 + 7) * 3
	if raw[off] != 7 || raw[off+1] != 3 || raw[off+2] != 128 {
		t.Errorf("Unexpected samples %v", raw[off:off+3])
	}
}

func TestNewPDFImageFromBytesJPEG(t *testing.T) {
	data := createTestJPEG(64, 32)
	img, err := NewPDFImageFromBytes(data)
	if err != nil {
		t.Fatalf("NewPDFImageFromBytes failed: %v", err)
	}
	if img.Filter != "DCTDecode" {
		t.Errorf("Expected DCTDecode, got %s", img.Filter)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("Expected JPEG data to be embedded unchanged")
	}
	if img.Width != 64 || img.Height != 32 {
		t.Errorf("Expected 64x32, got %dx%d", img.Width, img.Height)
	}
}

func TestNewPDFImageFromBytesOtherFormats(t *testing.T) {
	src := createPatternImage(20, 10, 255)

	var bmpBuf, tiffBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, src); err != nil {
		t.Fatalf("bmp.Encode failed: %v", err)
	}
	if err := tiff.Encode(&tiffBuf, src, nil); err != nil {
		t.Fatalf("tiff.Encode failed: %v", err)
	}

	for name, data := range map[string][]byte{"bmp": bmpBuf.Bytes(), "tiff": tiffBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			img, err := NewPDFImageFromBytes(data)
			if err != nil {
				t.Fatalf("NewPDFImageFromBytes failed: %v", err)
			}
			if img.Width != 20 || img.Height != 10 {
				t.Errorf("Expected 20x10, got %dx%d", img.Width, img.Height)
			}
		})
	}
}

func TestNewPDFImageFromImageAlpha(t *testing.T) {
	src := createPatternImage(4, 4, 255)
	// Half-transparent red: samples must stay unpremultiplied.
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 0, B: 0, A: 128})

	img, err := NewPDFImageFromImage(src)
	if err != nil {
		t.Fatalf("NewPDFImageFromImage failed: %v", err)
	}
	if !img.HasAlpha() {
		t.Fatal("Expected a soft mask")
	}

	raw, _ := filters.FlateDecodeFilter{}.Decode(img.Data, nil)
	off := (1*4 + 1) * 3
	if raw[off] != 200 {
		t.Errorf("Expected unpremultiplied red 200, got %d", raw[off])
	}
	alpha, _ := filters.FlateDecodeFilter{}.Decode(img.AlphaData, nil)
	if len(alpha) != 16 || alpha[5] != 128 || alpha[0] != 255 {
		t.Errorf("Unexpected alpha samples %v", alpha)
	}
}

func TestNewPDFImageFromGrayImage(t *testing.T) {
	img, err := NewPDFImageFromImage(createGrayImage(8, 8))
	if err != nil {
		t.Fatalf("NewPDFImageFromImage failed: %v", err)
	}
	if img.ColorSpace != ColorSpaceGray || img.Components != 1 {
		t.Errorf("Expected DeviceGray with 1 component, got %s/%d", img.ColorSpace, img.Components)
	}
	if img.HasAlpha() {
		t.Error("Gray image should have no soft mask")
	}
}

func TestPDFImageInvalid(t *testing.T) {
	if _, err := NewPDFImageFromImage(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions, got %v", err)
	}
	if _, err := NewPDFImageFromBytes([]byte("not an image at all")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	truncated := createTestPNG(10, 10)[:40]
	if _, err := NewPDFImageFromBytes(truncated); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("Expected ErrDecodeFailed, got %v", err)
	}
}

func TestToXObject(t *testing.T) {
	src := createPatternImage(3, 2, 100)
	img, err := NewPDFImageFromImage(src)
	if err != nil {
		t.Fatalf("NewPDFImageFromImage failed: %v", err)
	}

	mask := img.MaskXObject()
	if mask == nil {
		t.Fatal("Expected mask XObject")
	}
	if mask.Dictionary.GetName("ColorSpace") != "DeviceGray" {
		t.Errorf("Expected DeviceGray mask, got %s", mask.Dictionary.GetName("ColorSpace"))
	}

	ref := generic.NewReference(12, 0)
	xobj := img.ToXObject(&ref)
	d := xobj.Dictionary
	if d.GetName("Subtype") != "Image" || d.GetName("Filter") != "FlateDecode" {
		t.Errorf("Unexpected dictionary %v", d.Keys())
	}
	if w, _ := d.GetInt("Width"); w != 3 {
		t.Errorf("Expected Width 3, got %d", w)
	}
	if d.Get("SMask") != ref {
		t.Errorf("Expected SMask %s, got %v", ref, d.Get("SMask"))
	}

	opaque, _ := NewPDFImageFromBytes(createTestPNG(2, 2))
	if opaque.MaskXObject() != nil {
		t.Error("Expected no mask for opaque image")
	}
	if opaque.ToXObject(nil).Dictionary.Has("SMask") {
		t.Error("Expected no SMask entry")
	}
}

func TestImageReaderDownscale(t *testing.T) {
	tests := []struct {
		name                    string
		maxWidth, maxHeight     int
		data                    []byte
		expectWidth, expectHeight int
		expectFilter            string
	}{
		{"width limit", 50, 0, createTestPNG(200, 100), 50, 25, "FlateDecode"},
		{"height limit", 0, 20, createTestPNG(200, 100), 40, 20, "FlateDecode"},
		{"both limits", 100, 10, createTestPNG(200, 100), 20, 10, "FlateDecode"},
		{"within limits", 500, 500, createTestPNG(200, 100), 200, 100, "FlateDecode"},
		{"jpeg re-encoded when too large", 32, 0, createTestJPEG(64, 32), 32, 16, "FlateDecode"},
		{"jpeg kept when small", 100, 0, createTestJPEG(64, 32), 64, 32, "DCTDecode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ImageReader{MaxWidth: tt.maxWidth, MaxHeight: tt.maxHeight}
			img, err := r.Read(tt.data)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if img.Width != tt.expectWidth || img.Height != tt.expectHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.expectWidth, tt.expectHeight, img.Width, img.Height)
			}
			if img.Filter != tt.expectFilter {
				t.Errorf("Expected filter %s, got %s", tt.expectFilter, img.Filter)
			}
		})
	}
}

func TestGetImageDimensions(t *testing.T) {
	w, h, err := GetImageDimensions(createTestPNG(30, 40))
	if err != nil || w != 30 || h != 40 {
		t.Errorf("Expected 30x40, got %dx%d (%v)", w, h, err)
	}
	w, h, err = GetImageDimensions(createTestJPEG(16, 8))
	if err != nil || w != 16 || h != 8 {
		t.Errorf("Expected 16x8, got %dx%d (%v)", w, h, err)
	}
	if _, _, err := GetImageDimensions([]byte("nope")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDPIAndPointSize(t *testing.T) {
	// 5906 px/m is 150 dpi.
	data := withPHYs(createTestPNG(300, 150), 5906)
	img, err := NewPDFImageFromBytes(data)
	if err != nil {
		t.Fatalf("NewPDFImageFromBytes failed: %v", err)
	}
	if img.DPIx < 149.9 || img.DPIx > 150.1 {
		t.Errorf("Expected ~150 dpi, got %f", img.DPIx)
	}
	w, h := img.PointSize()
	if w < 143.9 || w > 144.1 || h < 71.9 || h > 72.1 {
		t.Errorf("Expected ~144x72 pt, got %fx%f", w, h)
	}

	plain, _ := NewPDFImageFromBytes(createTestPNG(10, 10))
	if w, h := plain.PointSize(); w != 10 || h != 10 {
		t.Errorf("Expected 10x10 pt at 72 dpi, got %fx%f", w, h)
	}

	if x, y := extractJPEGDPI(createTestJPEG(8, 8)); x != 72 || y != 72 {
		t.Errorf("Expected default 72 dpi for JFIF without density, got %f/%f", x, y)
	}
}
