package reader

import (
	"fmt"

	"github.com/georgepadayatti/signpad/pdf/generic"
)

// maxPageTreeDepth bounds the page tree walk.
const maxPageTreeDepth = 64

// Page is a leaf of the page tree with its inheritable attributes resolved.
type Page struct {
	Ref  generic.Reference
	Dict *generic.DictionaryObject

	MediaBox generic.Rectangle
	// CropBox defaults to MediaBox.
	CropBox generic.Rectangle
	// Rotate is normalised to 0, 90, 180 or 270.
	Rotate int
	// Resources is the inherited /Resources entry as stored: a reference,
	// a direct dictionary, or nil.
	Resources generic.PdfObject
}

// VisibleBox returns the region viewers display: the CropBox clipped to the
// MediaBox. An unset or disjoint CropBox yields the MediaBox.
func (p *Page) VisibleBox() generic.Rectangle {
	box := generic.Rectangle{
		LLX: max(p.CropBox.LLX, p.MediaBox.LLX),
		LLY: max(p.CropBox.LLY, p.MediaBox.LLY),
		URX: min(p.CropBox.URX, p.MediaBox.URX),
		URY: min(p.CropBox.URY, p.MediaBox.URY),
	}
	if box.URX <= box.LLX || box.URY <= box.LLY {
		return p.MediaBox
	}
	return box
}

// Width returns the unrotated visible width in points.
func (p *Page) Width() float64 {
	box := p.VisibleBox()
	return box.Width()
}

// Height returns the unrotated visible height in points.
func (p *Page) Height() float64 {
	box := p.VisibleBox()
	return box.Height()
}

// inherited carries the attributes a Pages node passes to its kids.
type inherited struct {
	mediaBox  generic.PdfObject
	cropBox   generic.PdfObject
	rotate    generic.PdfObject
	resources generic.PdfObject
}

func (in inherited) override(node *generic.DictionaryObject) inherited {
	if v := node.Get("MediaBox"); v != nil {
		in.mediaBox = v
	}
	if v := node.Get("CropBox"); v != nil {
		in.cropBox = v
	}
	if v := node.Get("Rotate"); v != nil {
		in.rotate = v
	}
	if v := node.Get("Resources"); v != nil {
		in.resources = v
	}
	return in
}

func (r *PdfFileReader) loadPages() error {
	pagesRef, ok := r.Root.Get("Pages").(generic.Reference)
	if !ok {
		return fmt.Errorf("%w: catalog has no /Pages reference", ErrInvalidPDF)
	}
	visited := make(map[int]bool)
	return r.walkPageTree(pagesRef, inherited{}, visited, 0)
}

func (r *PdfFileReader) walkPageTree(ref generic.Reference, in inherited, visited map[int]bool, depth int) error {
	if depth > maxPageTreeDepth {
		return fmt.Errorf("%w: page tree deeper than %d", ErrInvalidPDF, maxPageTreeDepth)
	}
	if visited[ref.ObjectNumber] {
		return fmt.Errorf("%w: page tree cycle at %s", ErrInvalidPDF, ref)
	}
	visited[ref.ObjectNumber] = true

	node, err := r.GetDict(ref)
	if err != nil {
		return fmt.Errorf("page tree node %s: %w", ref, err)
	}
	in = in.override(node)

	// Some writers omit /Type on leaves; a node without /Kids is a page.
	kids, err := r.Resolve(node.Get("Kids"))
	if err != nil {
		return err
	}
	kidArr, hasKids := kids.(generic.ArrayObject)
	if node.GetName("Type") == "Page" || !hasKids {
		page, err := r.newPage(ref, node, in)
		if err != nil {
			return err
		}
		r.Pages = append(r.Pages, page)
		return nil
	}

	for _, kid := range kidArr {
		kidRef, ok := kid.(generic.Reference)
		if !ok {
			return fmt.Errorf("%w: page tree kid is not a reference", ErrInvalidPDF)
		}
		if err := r.walkPageTree(kidRef, in, visited, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *PdfFileReader) newPage(ref generic.Reference, dict *generic.DictionaryObject, in inherited) (*Page, error) {
	page := &Page{Ref: ref, Dict: dict, Resources: in.resources}

	// US Letter is the conventional default for a missing MediaBox.
	page.MediaBox = generic.Rectangle{URX: 612, URY: 792}
	if in.mediaBox != nil {
		box, err := r.rectangle(in.mediaBox)
		if err != nil {
			return nil, fmt.Errorf("page %s MediaBox: %w", ref, err)
		}
		page.MediaBox = *box
	}
	page.CropBox = page.MediaBox
	if in.cropBox != nil {
		if box, err := r.rectangle(in.cropBox); err == nil {
			page.CropBox = *box
		}
	}
	if in.rotate != nil {
		obj, _ := r.Resolve(in.rotate)
		if n, ok := obj.(generic.IntegerObject); ok {
			page.Rotate = ((int(n)%360)+360)%360/90*90
		}
	}
	return page, nil
}

func (r *PdfFileReader) rectangle(obj generic.PdfObject) (*generic.Rectangle, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	arr, ok := resolved.(generic.ArrayObject)
	if !ok {
		return nil, fmt.Errorf("%w: rectangle is %T", ErrInvalidPDF, resolved)
	}
	values := make(generic.ArrayObject, len(arr))
	for i, item := range arr {
		if values[i], err = r.Resolve(item); err != nil {
			return nil, err
		}
	}
	return generic.NewRectangle(values)
}

// GetPageCount returns the number of pages.
func (r *PdfFileReader) GetPageCount() int {
	return len(r.Pages)
}

// GetPage returns a page by zero-based index.
func (r *PdfFileReader) GetPage(index int) (*Page, error) {
	if index < 0 || index >= len(r.Pages) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrPageIndexOutOfRange, index, len(r.Pages))
	}
	return r.Pages[index], nil
}

// ResourceDict resolves a page's inherited resources. It returns a fresh
// empty dictionary when the page has none.
func (r *PdfFileReader) ResourceDict(page *Page) (*generic.DictionaryObject, error) {
	if page.Resources == nil {
		return generic.NewDictionary(), nil
	}
	return r.GetDict(page.Resources)
}
