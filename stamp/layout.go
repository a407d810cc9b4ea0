package stamp

import (
	"fmt"
	"strings"
)

// ImageScaleMode specifies how an image is laid out inside its placement
// box.
type ImageScaleMode int

const (
	// ImageScaleStretch stretches the image to exactly fill the box (may distort).
	ImageScaleStretch ImageScaleMode = iota
	// ImageScaleFit scales the image to fit within the box while maintaining aspect ratio.
	ImageScaleFit
	// ImageScaleFill scales the image to cover the box while maintaining aspect
	// ratio; the overflow is clipped.
	ImageScaleFill
	// ImageScaleNone uses the image's natural size, centred on the box.
	ImageScaleNone
)

// String returns a string representation of the scale mode.
func (m ImageScaleMode) String() string {
	switch m {
	case ImageScaleStretch:
		return "stretch"
	case ImageScaleFit:
		return "fit"
	case ImageScaleFill:
		return "fill"
	case ImageScaleNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseImageScaleMode parses a string to ImageScaleMode.
func ParseImageScaleMode(s string) (ImageScaleMode, error) {
	switch strings.ToLower(s) {
	case "stretch", "":
		return ImageScaleStretch, nil
	case "fit":
		return ImageScaleFit, nil
	case "fill":
		return ImageScaleFill, nil
	case "none":
		return ImageScaleNone, nil
	default:
		return ImageScaleStretch, fmt.Errorf("invalid scale mode: %s (valid: stretch, fit, fill, none)", s)
	}
}

// box is a rectangle relative to the placement box, in points.
type box struct {
	x, y, w, h float64
}

// layoutImage positions an image of natural size imgW x imgH points inside
// a boxW x boxH box, centring whatever does not fill it.
func layoutImage(mode ImageScaleMode, boxW, boxH, imgW, imgH float64) box {
	var w, h float64
	switch mode {
	case ImageScaleFit:
		scale := min(boxW/imgW, boxH/imgH)
		w, h = imgW*scale, imgH*scale
	case ImageScaleFill:
		scale := max(boxW/imgW, boxH/imgH)
		w, h = imgW*scale, imgH*scale
	case ImageScaleNone:
		w, h = imgW, imgH
	default:
		return box{w: boxW, h: boxH}
	}
	return box{x: (boxW - w) / 2, y: (boxH - h) / 2, w: w, h: h}
}
