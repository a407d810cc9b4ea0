// Package reader parses PDF files held in memory: cross-reference tables and
// streams, object streams, and the page tree.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/georgepadayatti/signpad/pdf/filters"
	"github.com/georgepadayatti/signpad/pdf/generic"
)

// Common errors
var (
	ErrInvalidPDF          = errors.New("invalid PDF file")
	ErrNoXRef              = errors.New("no xref found")
	ErrObjectNotFound      = errors.New("object not found")
	ErrInvalidXRef         = errors.New("invalid xref")
	ErrEncrypted           = errors.New("PDF is encrypted")
	ErrPageIndexOutOfRange = errors.New("page index out of range")
)

var headerRegex = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// maxObjectStreamDepth bounds recursion when an object stream's own entry
// points into another object stream.
const maxObjectStreamDepth = 4

// PdfFileReader reads a PDF held in memory. Objects are parsed lazily and
// cached by object number.
type PdfFileReader struct {
	data    []byte
	Version string

	// Trailer is the trailer of the newest revision.
	Trailer *generic.TrailerDictionary
	XRef    map[int]XRefEntry

	// StartXRef is the offset of the newest cross-reference section.
	StartXRef int64
	// HasXRefStream reports whether the newest section is an xref stream.
	HasXRefStream bool

	Root  *generic.DictionaryObject
	Pages []*Page

	objects    map[int]generic.PdfObject
	objStreams map[int]*objectStream
	resolving  map[int]bool
}

// NewPdfFileReaderFromBytes parses data. Encrypted documents are rejected
// with ErrEncrypted.
func NewPdfFileReaderFromBytes(data []byte) (*PdfFileReader, error) {
	r := &PdfFileReader{
		data:       data,
		XRef:       make(map[int]XRefEntry),
		objects:    make(map[int]generic.PdfObject),
		objStreams: make(map[int]*objectStream),
		resolving:  make(map[int]bool),
	}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PdfFileReader) parse() error {
	match := headerRegex.FindSubmatch(r.data[:min(1024, len(r.data))])
	if match == nil {
		return fmt.Errorf("%w: missing %%PDF header", ErrInvalidPDF)
	}
	r.Version = string(match[1])

	if err := r.loadXRef(); err != nil {
		return err
	}
	if r.Trailer.Has("Encrypt") {
		return ErrEncrypted
	}

	rootRef, ok := r.Trailer.Root()
	if !ok {
		return fmt.Errorf("%w: trailer has no /Root", ErrInvalidPDF)
	}
	root, err := r.GetDict(rootRef)
	if err != nil {
		return fmt.Errorf("%w: catalog: %v", ErrInvalidPDF, err)
	}
	r.Root = root

	return r.loadPages()
}

// loadXRef follows the chain of cross-reference sections from the last
// startxref. Newer entries shadow older ones.
func (r *PdfFileReader) loadXRef() error {
	idx := bytes.LastIndex(r.data, []byte("startxref"))
	if idx < 0 {
		return ErrNoXRef
	}
	offset, _, ok := readInt(r.data, skipSpace(r.data, idx+len("startxref")))
	if !ok {
		return fmt.Errorf("%w: missing startxref offset", ErrInvalidXRef)
	}
	r.StartXRef = offset

	visited := make(map[int64]bool)
	for first := true; ; first = false {
		if visited[offset] {
			return fmt.Errorf("%w: loop in /Prev chain", ErrInvalidXRef)
		}
		visited[offset] = true

		section, err := r.readSection(offset)
		if err != nil {
			return err
		}
		if first {
			r.Trailer = section.trailer
			r.HasXRefStream = section.stream
		}
		for _, e := range section.entries {
			if _, seen := r.XRef[e.ObjectNumber]; !seen {
				r.XRef[e.ObjectNumber] = e
			}
		}

		// Hybrid files keep extra entries in an xref stream.
		if stm, ok := section.trailer.GetInt("XRefStm"); ok && !section.stream && !visited[stm] {
			visited[stm] = true
			extra, err := r.readSection(stm)
			if err != nil {
				return err
			}
			for _, e := range extra.entries {
				if _, seen := r.XRef[e.ObjectNumber]; !seen {
					r.XRef[e.ObjectNumber] = e
				}
			}
		}

		prev, ok := section.trailer.Prev()
		if !ok {
			return nil
		}
		offset = prev
	}
}

func (r *PdfFileReader) readSection(offset int64) (*xrefSection, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: offset %d out of bounds", ErrInvalidXRef, offset)
	}
	pos := skipSpace(r.data, int(offset))
	if bytes.HasPrefix(r.data[pos:], []byte("xref")) {
		return parseXRefTable(r.data, pos)
	}

	parser := generic.NewParser(r.data)
	parser.Seek(pos)
	obj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXRef, err)
	}
	stream, ok := obj.Object.(*generic.StreamObject)
	if !ok {
		return nil, fmt.Errorf("%w: no xref table or stream at offset %d", ErrInvalidXRef, offset)
	}
	decoded, err := decodeStream(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXRef, err)
	}
	return parseXRefStream(stream, decoded)
}

// GetObject resolves an object by number. Free or missing objects resolve to
// ErrObjectNotFound.
func (r *PdfFileReader) GetObject(objNum int) (generic.PdfObject, error) {
	return r.getObject(objNum, 0)
}

func (r *PdfFileReader) getObject(objNum, depth int) (generic.PdfObject, error) {
	if obj, ok := r.objects[objNum]; ok {
		return obj, nil
	}
	entry, ok := r.XRef[objNum]
	if !ok || entry.Type == XRefTypeFree {
		return nil, fmt.Errorf("%w: object %d", ErrObjectNotFound, objNum)
	}
	if r.resolving[objNum] {
		return nil, fmt.Errorf("%w: object %d refers to itself", ErrInvalidPDF, objNum)
	}
	r.resolving[objNum] = true
	defer delete(r.resolving, objNum)

	var obj generic.PdfObject
	var err error
	switch entry.Type {
	case XRefTypeInObjStream:
		obj, err = r.objectFromStream(entry, depth)
	default:
		obj, err = r.objectAtOffset(objNum, entry.Offset)
	}
	if err != nil {
		return nil, err
	}
	r.objects[objNum] = obj
	return obj, nil
}

func (r *PdfFileReader) objectAtOffset(objNum int, offset int64) (generic.PdfObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: object %d offset %d out of bounds", ErrObjectNotFound, objNum, offset)
	}
	parser := generic.NewParser(r.data)
	parser.Seek(int(offset))
	parser.ResolveLength = r.resolveLength
	indirect, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}
	if indirect.ObjectNumber != objNum {
		return nil, fmt.Errorf("%w: xref points object %d at object %d", ErrInvalidXRef, objNum, indirect.ObjectNumber)
	}
	if stream, ok := indirect.Object.(*generic.StreamObject); ok {
		// Leave undecodable streams (e.g. images) as stored bytes.
		if decoded, err := decodeStream(stream); err == nil {
			stream.Decoded = decoded
		}
	}
	return indirect.Object, nil
}

func (r *PdfFileReader) resolveLength(ref generic.Reference) (int64, bool) {
	obj, err := r.GetObject(ref.ObjectNumber)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(generic.IntegerObject)
	return int64(n), ok
}

func (r *PdfFileReader) objectFromStream(entry XRefEntry, depth int) (generic.PdfObject, error) {
	if depth >= maxObjectStreamDepth {
		return nil, fmt.Errorf("%w: object streams nested too deeply", ErrInvalidPDF)
	}
	os, ok := r.objStreams[entry.StreamObject]
	if !ok {
		obj, err := r.getObject(entry.StreamObject, depth+1)
		if err != nil {
			return nil, err
		}
		stream, isStream := obj.(*generic.StreamObject)
		if !isStream {
			return nil, fmt.Errorf("%w: object %d is not an object stream", ErrInvalidPDF, entry.StreamObject)
		}
		if os, err = parseObjectStream(stream, stream.DecodedData()); err != nil {
			return nil, err
		}
		r.objStreams[entry.StreamObject] = os
	}
	return os.object(entry.IndexInStream)
}

// Resolve follows a reference; other objects are returned unchanged.
func (r *PdfFileReader) Resolve(obj generic.PdfObject) (generic.PdfObject, error) {
	if ref, ok := obj.(generic.Reference); ok {
		return r.GetObject(ref.ObjectNumber)
	}
	return obj, nil
}

// GetDict resolves obj and requires a dictionary. A stream's dictionary is
// not accepted.
func (r *PdfFileReader) GetDict(obj generic.PdfObject) (*generic.DictionaryObject, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	dict, ok := resolved.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: expected dictionary, got %T", ErrInvalidPDF, resolved)
	}
	return dict, nil
}

// Data returns the bytes the reader was created from.
func (r *PdfFileReader) Data() []byte {
	return r.data
}

// NextObjectNumber returns the first object number not used by any
// revision.
func (r *PdfFileReader) NextObjectNumber() int {
	next := r.Trailer.Size()
	for num := range r.XRef {
		next = max(next, num+1)
	}
	return max(next, 1)
}

// decodeStream applies the stream's filters.
func decodeStream(stream *generic.StreamObject) ([]byte, error) {
	var names []string
	switch f := stream.Dictionary.Get("Filter").(type) {
	case generic.NameObject:
		names = []string{string(f)}
	case generic.ArrayObject:
		for _, item := range f {
			if name, ok := item.(generic.NameObject); ok {
				names = append(names, string(name))
			}
		}
	}
	if len(names) == 0 {
		return stream.Data, nil
	}

	var params []*filters.Params
	switch dp := stream.Dictionary.Get("DecodeParms").(type) {
	case *generic.DictionaryObject:
		params = append(params, decodeParams(dp))
	case generic.ArrayObject:
		for _, item := range dp {
			d, _ := item.(*generic.DictionaryObject)
			params = append(params, decodeParams(d))
		}
	}
	return filters.DecodeStream(stream.Data, names, params)
}

func decodeParams(dict *generic.DictionaryObject) *filters.Params {
	if dict == nil {
		return nil
	}
	get := func(key string) int {
		v, _ := dict.GetInt(key)
		return int(v)
	}
	return &filters.Params{
		Predictor:        get("Predictor"),
		Colors:           get("Colors"),
		BitsPerComponent: get("BitsPerComponent"),
		Columns:          get("Columns"),
	}
}
