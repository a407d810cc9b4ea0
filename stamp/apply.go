package stamp

import (
	"fmt"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/pdf/content"
	"github.com/georgepadayatti/signpad/pdf/generic"
	"github.com/georgepadayatti/signpad/pdf/images"
	"github.com/georgepadayatti/signpad/pdf/reader"
	"github.com/georgepadayatti/signpad/pdf/writer"
)

// resourcePrefix names the image XObjects added to a page.
const resourcePrefix = "Sig"

// displaySize returns the page size as a viewer shows it, with /Rotate
// applied.
func displaySize(page *reader.Page) (width, height float64) {
	if page.Rotate == 90 || page.Rotate == 270 {
		return page.Height(), page.Width()
	}
	return page.Width(), page.Height()
}

// placementMatrix maps the unit square onto p, where p is measured from the
// bottom-left of the page as displayed. The result is in the page's default
// user space: unrotated and offset by the origin of the visible box.
func placementMatrix(page *reader.Page, p geometry.PlacementRect) content.Matrix {
	pw, ph := page.Width(), page.Height()
	visible := page.VisibleBox()
	ox, oy := visible.LLX, visible.LLY

	var m content.Matrix
	switch page.Rotate {
	case 90:
		m = content.Matrix{0, p.Width, -p.Height, 0, pw - p.Y, p.X}
	case 180:
		m = content.Matrix{-p.Width, 0, 0, -p.Height, pw - p.X, ph - p.Y}
	case 270:
		m = content.Matrix{0, -p.Width, p.Height, 0, p.Y, ph - p.X}
	default:
		m = content.Matrix{p.Width, 0, 0, p.Height, p.X, p.Y}
	}
	m[4] += ox
	m[5] += oy
	return m
}

// paintContent draws XObject name into p. The image is laid out inside the
// box in box-relative unit coordinates, so rotation is handled once by the
// outer matrix.
func paintContent(name string, outer content.Matrix, layout box, boxW, boxH float64, clip bool) ([]byte, error) {
	cb := content.NewContentBuilder().SaveState().Transform(outer)
	if clip {
		cb.Rectangle(0, 0, 1, 1).Clip()
	}
	inner := content.Matrix{layout.w / boxW, 0, 0, layout.h / boxH, layout.x / boxW, layout.y / boxH}
	return cb.Transform(inner).DrawXObject(name).RestoreState().Finish()
}

// freeResourceName returns the first SigN not used by the page's XObjects.
func freeResourceName(r *reader.PdfFileReader, page *reader.Page) (string, error) {
	resources, err := r.ResourceDict(page)
	if err != nil {
		return "", err
	}
	var used *generic.DictionaryObject
	if xobj := resources.Get("XObject"); xobj != nil {
		if used, err = r.GetDict(xobj); err != nil {
			return "", err
		}
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", resourcePrefix, i)
		if used == nil || !used.Has(name) {
			return name, nil
		}
	}
}

// addImageXObject adds the image, and its soft mask when it has one.
func addImageXObject(w *writer.IncrementalPdfFileWriter, img *images.PDFImage) generic.Reference {
	var smask *generic.Reference
	if mask := img.MaskXObject(); mask != nil {
		ref := w.AddObject(mask)
		smask = &ref
	}
	return w.AddObject(img.ToXObject(smask))
}

// applyImage wraps the page's existing content in q/Q so its graphics state
// cannot leak into the signature, then paints the image on top.
func applyImage(w *writer.IncrementalPdfFileWriter, pageIndex int, name string, imgRef generic.Reference, paint []byte) error {
	qRef := w.AddObject(generic.NewStream(nil, []byte("q")))
	bigQRef := w.AddObject(generic.NewStream(nil, []byte("Q")))
	paintRef := w.AddObject(generic.NewStream(nil, paint))

	xobjects := generic.NewDictionary()
	xobjects.Set(name, imgRef)
	resources := generic.NewDictionary()
	resources.Set("XObject", xobjects)

	return w.AddStreamsToPage(pageIndex, []generic.Reference{qRef}, []generic.Reference{bigQRef, paintRef}, resources)
}
