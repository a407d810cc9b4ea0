// Package images converts raster images into PDF image XObjects.
package images

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/georgepadayatti/signpad/pdf/filters"
	"github.com/georgepadayatti/signpad/pdf/generic"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Common errors
var (
	ErrInvalidImage      = errors.New("invalid image data")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecodeFailed      = errors.New("image decode failed")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
)

// ColorSpace represents a PDF color space.
type ColorSpace string

const (
	ColorSpaceGray ColorSpace = "DeviceGray"
	ColorSpaceRGB  ColorSpace = "DeviceRGB"
	ColorSpaceCMYK ColorSpace = "DeviceCMYK"
)

// ImageFormat represents an image format.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "PNG"
	FormatJPEG ImageFormat = "JPEG"
	FormatGIF  ImageFormat = "GIF"
	FormatBMP  ImageFormat = "BMP"
	FormatTIFF ImageFormat = "TIFF"
	FormatWEBP ImageFormat = "WEBP"
)

// PDFImage represents an image ready for PDF embedding.
type PDFImage struct {
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Bits per component (always 8 here)
	BitsPerComponent int
	ColorSpace       ColorSpace
	// Number of color components (1 for gray, 3 for RGB, 4 for CMYK)
	Components int
	// Data is the encoded sample data.
	Data []byte
	// Filter applied to Data: "FlateDecode" or "DCTDecode".
	Filter string
	// AlphaData is the Flate-encoded soft mask, nil for opaque images.
	AlphaData      []byte
	OriginalFormat ImageFormat
	DPIx, DPIy     float64
}

// NewPDFImageFromBytes decodes PNG, JPEG, GIF, BMP, TIFF or WebP data. JPEG
// data is embedded as-is with DCTDecode.
func NewPDFImageFromBytes(data []byte) (*PDFImage, error) {
	return NewImageReader().Read(data)
}

// NewPDFImageFromImage converts a decoded image. Colour samples are stored
// unpremultiplied; an alpha channel becomes a soft mask unless every pixel
// is opaque.
func NewPDFImageFromImage(img image.Image) (*PDFImage, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}

	colorSpace, components := ColorSpaceRGB, 3
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		colorSpace, components = ColorSpaceGray, 1
	case color.CMYKModel:
		colorSpace, components = ColorSpaceCMYK, 4
	}

	pixels := make([]byte, 0, width*height*components)
	alpha := make([]byte, 0, width*height)
	opaque := true
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.At(x, y)
			switch colorSpace {
			case ColorSpaceGray:
				g := color.GrayModel.Convert(c).(color.Gray)
				pixels = append(pixels, g.Y)
				alpha = append(alpha, 0xFF)
			case ColorSpaceCMYK:
				k := color.CMYKModel.Convert(c).(color.CMYK)
				pixels = append(pixels, k.C, k.M, k.Y, k.K)
				alpha = append(alpha, 0xFF)
			default:
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				pixels = append(pixels, n.R, n.G, n.B)
				alpha = append(alpha, n.A)
				if n.A != 0xFF {
					opaque = false
				}
			}
		}
	}

	data, err := filters.FlateDecodeFilter{}.Encode(pixels, nil)
	if err != nil {
		return nil, err
	}
	pdfImg := &PDFImage{
		Width:            width,
		Height:           height,
		BitsPerComponent: 8,
		ColorSpace:       colorSpace,
		Components:       components,
		Data:             data,
		Filter:           "FlateDecode",
		DPIx:             72,
		DPIy:             72,
	}
	if !opaque {
		if pdfImg.AlphaData, err = (filters.FlateDecodeFilter{}).Encode(alpha, nil); err != nil {
			return nil, err
		}
	}
	return pdfImg, nil
}

// detectFormat detects the image format from the file header.
func detectFormat(data []byte) ImageFormat {
	if len(data) < 8 {
		return ""
	}
	switch {
	case bytes.Equal(data[0:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	case data[0] == 0x42 && data[1] == 0x4D:
		return FormatBMP
	case bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return FormatWEBP
	}
	return ""
}

// extractPNGDPI extracts DPI from the PNG pHYs chunk.
func extractPNGDPI(data []byte) (float64, float64) {
	offset := 8
	for offset+12 <= len(data) {
		chunkLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		if chunkLen < 0 || offset+12+chunkLen > len(data) {
			break
		}

		if chunkType == "pHYs" && chunkLen >= 9 {
			chunk := data[offset+8 : offset+8+chunkLen]
			ppuX := binary.BigEndian.Uint32(chunk[0:4])
			ppuY := binary.BigEndian.Uint32(chunk[4:8])
			if chunk[8] == 1 && ppuX > 0 && ppuY > 0 { // metres
				return float64(ppuX) / 39.3701, float64(ppuY) / 39.3701
			}
		}
		if chunkType == "IEND" {
			break
		}
		offset += 12 + chunkLen
	}
	return 72, 72
}

// extractJPEGDPI reads the JFIF density, defaulting to 72.
func extractJPEGDPI(data []byte) (float64, float64) {
	offset := 2
	for offset+4 < len(data) {
		if data[offset] != 0xFF {
			break
		}
		marker := data[offset+1]
		if marker == 0xD9 || marker == 0xDA { // EOI, SOS
			break
		}
		if marker >= 0xD0 && marker <= 0xD8 {
			offset += 2
			continue
		}

		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if marker == 0xE0 && length >= 14 && offset+2+length <= len(data) {
			app0 := data[offset+4 : offset+2+length]
			if bytes.HasPrefix(app0, []byte("JFIF\x00")) {
				xDensity := float64(binary.BigEndian.Uint16(app0[8:10]))
				yDensity := float64(binary.BigEndian.Uint16(app0[10:12]))
				if xDensity > 0 && yDensity > 0 {
					switch app0[7] {
					case 1:
						return xDensity, yDensity
					case 2:
						return xDensity * 2.54, yDensity * 2.54
					}
				}
			}
		}
		offset += 2 + length
	}
	return 72, 72
}

// HasAlpha returns true if the image has a soft mask.
func (img *PDFImage) HasAlpha() bool {
	return len(img.AlphaData) > 0
}

// PointSize returns the image's natural size in points at its resolution.
func (img *PDFImage) PointSize() (width, height float64) {
	dpiX, dpiY := img.DPIx, img.DPIy
	if dpiX <= 0 {
		dpiX = 72
	}
	if dpiY <= 0 {
		dpiY = 72
	}
	return float64(img.Width) * 72 / dpiX, float64(img.Height) * 72 / dpiY
}

// ToXObject returns the image XObject stream. smask, when non-nil, is the
// reference of the object built by MaskXObject.
func (img *PDFImage) ToXObject(smask *generic.Reference) *generic.StreamObject {
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Image"))
	dict.Set("Width", generic.IntegerObject(img.Width))
	dict.Set("Height", generic.IntegerObject(img.Height))
	dict.Set("ColorSpace", generic.NameObject(img.ColorSpace))
	dict.Set("BitsPerComponent", generic.IntegerObject(img.BitsPerComponent))
	if img.Filter != "" {
		dict.Set("Filter", generic.NameObject(img.Filter))
	}
	if img.Filter == "DCTDecode" && img.ColorSpace == ColorSpaceCMYK {
		// Adobe CMYK JPEGs are stored inverted.
		dict.Set("Decode", generic.NewArray(
			generic.IntegerObject(1), generic.IntegerObject(0),
			generic.IntegerObject(1), generic.IntegerObject(0),
			generic.IntegerObject(1), generic.IntegerObject(0),
			generic.IntegerObject(1), generic.IntegerObject(0),
		))
	}
	if smask != nil {
		dict.Set("SMask", *smask)
	}
	return generic.NewStream(dict, img.Data)
}

// MaskXObject returns the soft mask as a DeviceGray image XObject, or nil
// when the image is opaque.
func (img *PDFImage) MaskXObject() *generic.StreamObject {
	if !img.HasAlpha() {
		return nil
	}
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Image"))
	dict.Set("Width", generic.IntegerObject(img.Width))
	dict.Set("Height", generic.IntegerObject(img.Height))
	dict.Set("ColorSpace", generic.NameObject(ColorSpaceGray))
	dict.Set("BitsPerComponent", generic.IntegerObject(8))
	dict.Set("Filter", generic.NameObject("FlateDecode"))
	return generic.NewStream(dict, img.AlphaData)
}

// ImageReader decodes images, downscaling anything larger than its limits.
// Zero limits mean no limit.
type ImageReader struct {
	MaxWidth  int
	MaxHeight int
}

// NewImageReader creates a reader without size limits.
func NewImageReader() *ImageReader {
	return &ImageReader{}
}

// Read decodes data into a PDFImage.
func (r *ImageReader) Read(data []byte) (*PDFImage, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, fmt.Errorf("%w: unrecognised header", ErrUnsupportedFormat)
	}

	if format == FormatJPEG {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		if !r.exceeds(cfg.Width, cfg.Height) {
			return passthroughJPEG(data, cfg)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	b := img.Bounds()
	if r.exceeds(b.Dx(), b.Dy()) {
		img = r.downscale(img)
	}

	pdfImg, err := NewPDFImageFromImage(img)
	if err != nil {
		return nil, err
	}
	pdfImg.OriginalFormat = format
	if format == FormatPNG {
		pdfImg.DPIx, pdfImg.DPIy = extractPNGDPI(data)
	}
	return pdfImg, nil
}

func (r *ImageReader) exceeds(width, height int) bool {
	return (r.MaxWidth > 0 && width > r.MaxWidth) || (r.MaxHeight > 0 && height > r.MaxHeight)
}

// downscale keeps the aspect ratio and fits the image inside the limits.
func (r *ImageReader) downscale(img image.Image) image.Image {
	b := img.Bounds()
	scale := 1.0
	if r.MaxWidth > 0 {
		scale = min(scale, float64(r.MaxWidth)/float64(b.Dx()))
	}
	if r.MaxHeight > 0 {
		scale = min(scale, float64(r.MaxHeight)/float64(b.Dy()))
	}
	width := max(1, int(float64(b.Dx())*scale+0.5))
	height := max(1, int(float64(b.Dy())*scale+0.5))

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func passthroughJPEG(data []byte, cfg image.Config) (*PDFImage, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrInvalidDimensions
	}
	colorSpace, components := ColorSpaceRGB, 3
	switch cfg.ColorModel {
	case color.GrayModel:
		colorSpace, components = ColorSpaceGray, 1
	case color.CMYKModel:
		colorSpace, components = ColorSpaceCMYK, 4
	}
	dpiX, dpiY := extractJPEGDPI(data)
	return &PDFImage{
		Width:            cfg.Width,
		Height:           cfg.Height,
		BitsPerComponent: 8,
		ColorSpace:       colorSpace,
		Components:       components,
		Data:             data,
		Filter:           "DCTDecode",
		OriginalFormat:   FormatJPEG,
		DPIx:             dpiX,
		DPIy:             dpiY,
	}, nil
}

// GetImageDimensions returns the dimensions of an image without fully
// decoding it.
func GetImageDimensions(data []byte) (width, height int, err error) {
	if detectFormat(data) == "" {
		return 0, 0, ErrUnsupportedFormat
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, ErrInvalidDimensions
	}
	return cfg.Width, cfg.Height, nil
}
