package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/georgepadayatti/signpad/pdf/generic"
	"github.com/georgepadayatti/signpad/pdf/reader"
	"golang.org/x/crypto/blake2b"
)

// ErrNoChanges is returned by Write when nothing was added or updated.
var ErrNoChanges = errors.New("incremental update has no changes")

// trailerKeys are the trailer entries carried into a new revision. Keys
// describing the previous section itself (/W, /Index, /Filter, /XRefStm...)
// are deliberately left behind.
var trailerKeys = []string{"Root", "Info"}

// IncrementalPdfFileWriter appends an update section to an existing PDF.
// The original bytes are never modified, so the output always starts with
// the exact input.
type IncrementalPdfFileWriter struct {
	Reader *reader.PdfFileReader

	objects     map[int]*generic.IndirectObject
	nextObjNum  int
	streamXRefs bool
}

// NewIncrementalPdfFileWriter creates a writer for r. The update uses a
// cross-reference stream when the newest section of r is one.
func NewIncrementalPdfFileWriter(r *reader.PdfFileReader) *IncrementalPdfFileWriter {
	return &IncrementalPdfFileWriter{
		Reader:      r,
		objects:     make(map[int]*generic.IndirectObject),
		nextObjNum:  r.NextObjectNumber(),
		streamXRefs: r.HasXRefStream,
	}
}

// AddObject adds a new object and returns its reference.
func (w *IncrementalPdfFileWriter) AddObject(obj generic.PdfObject) generic.Reference {
	num := w.nextObjNum
	w.nextObjNum++
	w.objects[num] = generic.NewIndirectObject(num, 0, obj)
	return generic.NewReference(num, 0)
}

// UpdateObject replaces the object at ref in the new revision.
func (w *IncrementalPdfFileWriter) UpdateObject(ref generic.Reference, obj generic.PdfObject) {
	w.objects[ref.ObjectNumber] = generic.NewIndirectObject(ref.ObjectNumber, ref.GenerationNumber, obj)
}

// GetObject returns the pending version of an object if it was updated,
// otherwise the reader's.
func (w *IncrementalPdfFileWriter) GetObject(objNum int) (generic.PdfObject, error) {
	if obj, ok := w.objects[objNum]; ok {
		return obj.Object, nil
	}
	return w.Reader.GetObject(objNum)
}

// HasChanges reports whether any object was added or updated.
func (w *IncrementalPdfFileWriter) HasChanges() bool {
	return len(w.objects) > 0
}

// StreamXRefs reports whether the update will use a cross-reference stream.
func (w *IncrementalPdfFileWriter) StreamXRefs() bool {
	return w.streamXRefs
}

// pageDict returns the page dictionary to modify: the pending copy if the
// page was already updated, otherwise a fresh clone of the original.
func (w *IncrementalPdfFileWriter) pageDict(page *reader.Page) *generic.DictionaryObject {
	if pending, ok := w.objects[page.Ref.ObjectNumber]; ok {
		if dict, ok := pending.Object.(*generic.DictionaryObject); ok {
			return dict
		}
	}
	return page.Dict.Clone().(*generic.DictionaryObject)
}

// AddStreamsToPage wraps the page's existing content between the prepend
// and appended content streams and merges resources into the page's
// resource dictionary. Inherited resources are copied onto the page so the
// merge never alters other pages.
func (w *IncrementalPdfFileWriter) AddStreamsToPage(pageIndex int, prepend, appendRefs []generic.Reference, resources *generic.DictionaryObject) error {
	page, err := w.Reader.GetPage(pageIndex)
	if err != nil {
		return err
	}
	dict := w.pageDict(page)

	existing, err := w.contentsArray(dict.Get("Contents"))
	if err != nil {
		return fmt.Errorf("page %d contents: %w", pageIndex, err)
	}
	contents := make(generic.ArrayObject, 0, len(prepend)+len(existing)+len(appendRefs))
	for _, ref := range prepend {
		contents = append(contents, ref)
	}
	contents = append(contents, existing...)
	for _, ref := range appendRefs {
		contents = append(contents, ref)
	}
	dict.Set("Contents", contents)

	if resources != nil {
		merged, err := w.mergeResources(dict, page, resources)
		if err != nil {
			return fmt.Errorf("page %d resources: %w", pageIndex, err)
		}
		dict.Set("Resources", merged)
	}

	w.UpdateObject(page.Ref, dict)
	return nil
}

func (w *IncrementalPdfFileWriter) contentsArray(contents generic.PdfObject) (generic.ArrayObject, error) {
	switch c := contents.(type) {
	case nil:
		return nil, nil
	case generic.ArrayObject:
		return c, nil
	case generic.Reference:
		// An indirect array of streams is flattened; a stream stays a ref.
		obj, err := w.GetObject(c.ObjectNumber)
		if err != nil {
			return nil, err
		}
		if arr, ok := obj.(generic.ArrayObject); ok {
			return arr, nil
		}
		return generic.ArrayObject{c}, nil
	default:
		return nil, fmt.Errorf("%w: /Contents is %T", reader.ErrInvalidPDF, contents)
	}
}

func (w *IncrementalPdfFileWriter) resolveDict(obj generic.PdfObject) (*generic.DictionaryObject, error) {
	if ref, ok := obj.(generic.Reference); ok {
		resolved, err := w.GetObject(ref.ObjectNumber)
		if err != nil {
			return nil, err
		}
		obj = resolved
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: expected dictionary, got %T", reader.ErrInvalidPDF, obj)
	}
	return dict, nil
}

func (w *IncrementalPdfFileWriter) mergeResources(dict *generic.DictionaryObject, page *reader.Page, add *generic.DictionaryObject) (*generic.DictionaryObject, error) {
	current := dict.Get("Resources")
	if current == nil {
		current = page.Resources
	}
	base := generic.NewDictionary()
	if current != nil {
		resolved, err := w.resolveDict(current)
		if err != nil {
			return nil, err
		}
		base = resolved.Clone().(*generic.DictionaryObject)
	}

	for _, category := range add.Keys() {
		addDict, ok := add.Get(category).(*generic.DictionaryObject)
		if !ok {
			base.Set(category, add.Get(category))
			continue
		}
		target := generic.NewDictionary()
		if existing := base.Get(category); existing != nil {
			resolved, err := w.resolveDict(existing)
			if err != nil {
				return nil, err
			}
			target = resolved.Clone().(*generic.DictionaryObject)
		}
		for _, name := range addDict.Keys() {
			target.Set(name, addDict.Get(name))
		}
		base.Set(category, target)
	}
	return base, nil
}

// Bytes returns the original document followed by the update section.
func (w *IncrementalPdfFileWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the original document followed by the update section.
func (w *IncrementalPdfFileWriter) Write(out io.Writer) error {
	if !w.HasChanges() {
		return ErrNoChanges
	}
	original := w.Reader.Data()

	var buf bytes.Buffer
	buf.Grow(len(original) + 4096)
	buf.Write(original)
	if len(original) > 0 && original[len(original)-1] != '\n' && original[len(original)-1] != '\r' {
		buf.WriteByte('\n')
	}

	nums := make([]int, 0, len(w.objects))
	for num := range w.objects {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	var entries []reader.XRefEntry
	if !w.streamXRefs {
		// Classic tables restate the head of the free list.
		entries = append(entries, reader.XRefEntry{Type: reader.XRefTypeFree, Generation: 65535})
	}
	for _, num := range nums {
		obj := w.objects[num]
		entries = append(entries, reader.XRefEntry{
			Type:         reader.XRefTypeStandard,
			ObjectNumber: num,
			Offset:       int64(buf.Len()),
			Generation:   obj.GenerationNumber,
		})
		if err := obj.Write(&buf); err != nil {
			return fmt.Errorf("object %d: %w", num, err)
		}
	}

	trailer := generic.NewDictionary()
	for _, key := range trailerKeys {
		if v := w.Reader.Trailer.Get(key); v != nil {
			trailer.Set(key, v)
		}
	}
	trailer.Set("ID", w.documentID(buf.Bytes()[len(original):]))
	trailer.Set("Prev", generic.IntegerObject(w.Reader.StartXRef))

	var err error
	if w.streamXRefs {
		streamNum := w.nextObjNum
		trailer.Set("Size", generic.IntegerObject(streamNum+1))
		err = writeXRefStreamSection(&buf, entries, streamNum, trailer)
	} else {
		trailer.Set("Size", generic.IntegerObject(w.nextObjNum))
		err = writeXRefTableSection(&buf, entries, trailer)
	}
	if err != nil {
		return err
	}

	_, err = out.Write(buf.Bytes())
	return err
}

// documentID keeps the permanent first identifier and derives the second
// from the update content, so identical updates produce identical files.
func (w *IncrementalPdfFileWriter) documentID(update []byte) generic.ArrayObject {
	var first []byte
	if ids := w.Reader.Trailer.GetArray("ID"); len(ids) > 0 {
		if s, ok := ids[0].(*generic.StringObject); ok && len(s.Value) > 0 {
			first = s.Value
		}
	}
	if first == nil {
		sum := blake2b.Sum256(w.Reader.Data())
		first = sum[:16]
	}

	// New only fails for sizes outside 1..64 or keys over 64 bytes.
	h, _ := blake2b.New(16, nil)
	h.Write(first)
	h.Write(update)
	return generic.NewArray(generic.NewHexString(first), generic.NewHexString(h.Sum(nil)))
}
