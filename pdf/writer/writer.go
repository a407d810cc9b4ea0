// Package writer writes PDF files: whole new documents and incremental
// updates appended to existing ones.
package writer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/georgepadayatti/signpad/pdf/filters"
	"github.com/georgepadayatti/signpad/pdf/generic"
	"github.com/georgepadayatti/signpad/pdf/reader"
	"golang.org/x/crypto/blake2b"
)

// PdfFileWriter builds a new PDF from scratch. Output is deterministic for
// the same sequence of calls.
type PdfFileWriter struct {
	Version string
	// XRefStream writes a compressed cross-reference stream instead of a
	// classic table.
	XRefStream bool

	objects    map[int]*generic.IndirectObject
	nextObjNum int
	root       *generic.DictionaryObject
	pages      *generic.DictionaryObject
	pagesRef   generic.Reference
	kids       generic.ArrayObject
}

// NewPdfFileWriter creates a writer with an empty page tree.
func NewPdfFileWriter(version string) *PdfFileWriter {
	if version == "" {
		version = "1.7"
	}
	w := &PdfFileWriter{
		Version:    version,
		objects:    make(map[int]*generic.IndirectObject),
		nextObjNum: 1,
	}

	w.pages = generic.NewDictionary()
	w.pages.Set("Type", generic.NameObject("Pages"))
	w.pagesRef = w.AddObject(w.pages)

	w.root = generic.NewDictionary()
	w.root.Set("Type", generic.NameObject("Catalog"))
	w.root.Set("Pages", w.pagesRef)
	return w
}

// AddObject adds an object and returns its reference.
func (w *PdfFileWriter) AddObject(obj generic.PdfObject) generic.Reference {
	num := w.nextObjNum
	w.nextObjNum++
	w.objects[num] = generic.NewIndirectObject(num, 0, obj)
	return generic.NewReference(num, 0)
}

// AddPage appends a page with the given MediaBox. contents may be nil; when
// set it is stored as a Flate-compressed content stream.
func (w *PdfFileWriter) AddPage(mediaBox generic.Rectangle, contents []byte) (generic.Reference, error) {
	page := generic.NewDictionary()
	page.Set("Type", generic.NameObject("Page"))
	page.Set("Parent", w.pagesRef)
	page.Set("MediaBox", generic.NewArray(
		generic.RealObject(mediaBox.LLX), generic.RealObject(mediaBox.LLY),
		generic.RealObject(mediaBox.URX), generic.RealObject(mediaBox.URY),
	))
	page.Set("Resources", generic.NewDictionary())

	if contents != nil {
		encoded, err := filters.FlateDecodeFilter{}.Encode(contents, nil)
		if err != nil {
			return generic.Reference{}, err
		}
		stream := generic.NewStream(nil, encoded)
		stream.Decoded = contents
		stream.Dictionary.Set("Filter", generic.NameObject("FlateDecode"))
		page.Set("Contents", w.AddObject(stream))
	}

	ref := w.AddObject(page)
	w.kids = append(w.kids, ref)
	return ref, nil
}

// Bytes serializes the document.
func (w *PdfFileWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the document. It can be called more than once.
func (w *PdfFileWriter) Write(out io.Writer) error {
	w.pages.Set("Kids", w.kids)
	w.pages.Set("Count", generic.IntegerObject(len(w.kids)))

	// The catalog is numbered last so AddObject calls made before Write
	// keep their numbers.
	objects := make(map[int]*generic.IndirectObject, len(w.objects)+1)
	for num, obj := range w.objects {
		objects[num] = obj
	}
	next := w.nextObjNum
	rootRef := generic.NewReference(next, 0)
	objects[next] = generic.NewIndirectObject(next, 0, w.root)
	next++

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", w.Version)
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	entries := []reader.XRefEntry{{Type: reader.XRefTypeFree, Generation: 65535}}
	for num := 1; num < next; num++ {
		entries = append(entries, reader.XRefEntry{Type: reader.XRefTypeStandard, ObjectNumber: num, Offset: int64(buf.Len())})
		if err := objects[num].Write(&buf); err != nil {
			return err
		}
	}

	trailer := generic.NewDictionary()
	trailer.Set("Root", rootRef)
	id := blake2b.Sum256(buf.Bytes())
	trailer.Set("ID", generic.NewArray(generic.NewHexString(id[:16]), generic.NewHexString(id[:16])))

	if w.XRefStream {
		trailer.Set("Size", generic.IntegerObject(next+1))
		if err := writeXRefStreamSection(&buf, entries, next, trailer); err != nil {
			return err
		}
	} else {
		trailer.Set("Size", generic.IntegerObject(next))
		if err := writeXRefTableSection(&buf, entries, trailer); err != nil {
			return err
		}
	}

	_, err := out.Write(buf.Bytes())
	return err
}

// writeXRefTableSection writes "xref ... trailer ... startxref ... %%EOF".
// entries must be sorted by object number.
func writeXRefTableSection(buf *bytes.Buffer, entries []reader.XRefEntry, trailer *generic.DictionaryObject) error {
	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].ObjectNumber == entries[j-1].ObjectNumber+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", entries[i].ObjectNumber, j-i)
		for _, e := range entries[i:j] {
			kind := 'n'
			if e.Type == reader.XRefTypeFree {
				kind = 'f'
			}
			fmt.Fprintf(buf, "%010d %05d %c\r\n", e.Offset, e.Generation, kind)
		}
		i = j
	}
	buf.WriteString("trailer\n")
	if err := trailer.Write(buf); err != nil {
		return err
	}
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}

// writeXRefStreamSection writes a cross-reference stream as object
// streamNum, adding its own entry.
func writeXRefStreamSection(buf *bytes.Buffer, entries []reader.XRefEntry, streamNum int, trailer *generic.DictionaryObject) error {
	xrefOffset := buf.Len()
	entries = append(entries, reader.XRefEntry{Type: reader.XRefTypeStandard, ObjectNumber: streamNum, Offset: int64(xrefOffset)})
	stream, err := reader.EncodeXRefStream(entries, trailer)
	if err != nil {
		return err
	}
	if err := generic.NewIndirectObject(streamNum, 0, stream).Write(buf); err != nil {
		return err
	}
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}
