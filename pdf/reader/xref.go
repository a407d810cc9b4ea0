package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/georgepadayatti/signpad/pdf/filters"
	"github.com/georgepadayatti/signpad/pdf/generic"
)

// XRefType is the kind of a cross-reference entry.
type XRefType int

const (
	// XRefTypeFree marks a free object number.
	XRefTypeFree XRefType = iota
	// XRefTypeStandard is an object stored at a byte offset.
	XRefTypeStandard
	// XRefTypeInObjStream is an object stored inside an object stream.
	XRefTypeInObjStream
)

func (t XRefType) String() string {
	switch t {
	case XRefTypeFree:
		return "free"
	case XRefTypeStandard:
		return "standard"
	case XRefTypeInObjStream:
		return "in_obj_stream"
	default:
		return "unknown"
	}
}

// XRefEntry is one cross-reference entry. For standard entries Offset is the
// byte offset; for object stream entries StreamObject and IndexInStream
// locate the object.
type XRefEntry struct {
	Type          XRefType
	ObjectNumber  int
	Offset        int64
	Generation    int
	StreamObject  int
	IndexInStream int
}

// xrefSection is one cross-reference section and its trailer.
type xrefSection struct {
	entries []XRefEntry
	trailer *generic.TrailerDictionary
	stream  bool
}

func skipSpace(data []byte, pos int) int {
	for pos < len(data) && (data[pos] == ' ' || data[pos] == '\t' || data[pos] == '\r' || data[pos] == '\n' || data[pos] == '\f' || data[pos] == 0) {
		pos++
	}
	return pos
}

func readInt(data []byte, pos int) (int64, int, bool) {
	start := pos
	for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
		pos++
	}
	if start == pos {
		return 0, pos, false
	}
	v, err := strconv.ParseInt(string(data[start:pos]), 10, 64)
	return v, pos, err == nil
}

// parseXRefTable parses a classic "xref" table starting at pos.
func parseXRefTable(data []byte, pos int) (*xrefSection, error) {
	pos = skipSpace(data, pos+len("xref"))
	section := &xrefSection{}

	for !bytes.HasPrefix(data[pos:], []byte("trailer")) {
		start, p, ok := readInt(data, pos)
		if !ok {
			return nil, fmt.Errorf("%w: bad subsection header at offset %d", ErrInvalidXRef, pos)
		}
		pos = skipSpace(data, p)
		count, p, ok := readInt(data, pos)
		if !ok {
			return nil, fmt.Errorf("%w: bad subsection count at offset %d", ErrInvalidXRef, pos)
		}
		pos = skipSpace(data, p)

		for i := int64(0); i < count; i++ {
			// "nnnnnnnnnn ggggg n" followed by a two byte EOL; some
			// writers emit a single byte EOL, so parse by fields.
			offset, p, ok1 := readInt(data, pos)
			p = skipSpace(data, p)
			gen, p, ok2 := readInt(data, p)
			p = skipSpace(data, p)
			if !ok1 || !ok2 || p >= len(data) || (data[p] != 'n' && data[p] != 'f') {
				return nil, fmt.Errorf("%w: bad entry at offset %d", ErrInvalidXRef, pos)
			}
			entry := XRefEntry{ObjectNumber: int(start + i), Offset: offset, Generation: int(gen), Type: XRefTypeStandard}
			if data[p] == 'f' {
				entry.Type = XRefTypeFree
			}
			section.entries = append(section.entries, entry)
			pos = skipSpace(data, p+1)
		}
		if pos >= len(data) {
			return nil, fmt.Errorf("%w: missing trailer", ErrInvalidXRef)
		}
	}

	parser := generic.NewParser(data)
	parser.Seek(pos + len("trailer"))
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("%w: trailer: %v", ErrInvalidXRef, err)
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: trailer must be a dictionary", ErrInvalidXRef)
	}
	section.trailer = &generic.TrailerDictionary{DictionaryObject: dict}
	return section, nil
}

// parseXRefStream parses a cross-reference stream object.
func parseXRefStream(stream *generic.StreamObject, decoded []byte) (*xrefSection, error) {
	dict := stream.Dictionary
	if dict.GetName("Type") != "XRef" {
		return nil, fmt.Errorf("%w: object at startxref is not an xref stream", ErrInvalidXRef)
	}

	wArr := dict.GetArray("W")
	if len(wArr) != 3 {
		return nil, fmt.Errorf("%w: invalid /W", ErrInvalidXRef)
	}
	var w [3]int
	for i, v := range wArr {
		n, ok := v.(generic.IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("%w: invalid /W", ErrInvalidXRef)
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("%w: zero entry size", ErrInvalidXRef)
	}

	var index []int
	if arr := dict.GetArray("Index"); arr != nil {
		for _, v := range arr {
			if n, ok := v.(generic.IntegerObject); ok {
				index = append(index, int(n))
			}
		}
	} else {
		size, _ := dict.GetInt("Size")
		index = []int{0, int(size)}
	}
	if len(index)%2 != 0 {
		return nil, fmt.Errorf("%w: odd /Index", ErrInvalidXRef)
	}

	section := &xrefSection{trailer: &generic.TrailerDictionary{DictionaryObject: dict}, stream: true}
	pos := 0
	for i := 0; i < len(index); i += 2 {
		for j := 0; j < index[i+1] && pos+entrySize <= len(decoded); j++ {
			row := decoded[pos : pos+entrySize]
			pos += entrySize

			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row, 0, w[0])
			}
			f2 := readField(row, w[0], w[1])
			f3 := readField(row, w[0]+w[1], w[2])

			entry := XRefEntry{ObjectNumber: index[i] + j}
			switch typ {
			case 0:
				entry.Type, entry.Generation = XRefTypeFree, int(f3)
			case 1:
				entry.Type, entry.Offset, entry.Generation = XRefTypeStandard, f2, int(f3)
			case 2:
				entry.Type, entry.StreamObject, entry.IndexInStream = XRefTypeInObjStream, int(f2), int(f3)
			default:
				// Unknown types are treated as references to null.
				entry.Type = XRefTypeFree
			}
			section.entries = append(section.entries, entry)
		}
	}
	return section, nil
}

func readField(data []byte, offset, width int) int64 {
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(data[offset+i])
	}
	return v
}

// EncodeXRefStream builds a cross-reference stream covering entries, which
// must be sorted by object number. The stream's own entry must be included.
// trailer supplies the trailer keys (Root, Info, ID, Size, Prev).
func EncodeXRefStream(entries []XRefEntry, trailer *generic.DictionaryObject) (*generic.StreamObject, error) {
	maxOffset, maxGen := int64(0), 0
	for _, e := range entries {
		maxOffset = max(maxOffset, e.Offset, int64(e.StreamObject))
		maxGen = max(maxGen, e.Generation, e.IndexInStream)
	}
	w2, w3 := bytesNeeded(maxOffset), bytesNeeded(int64(maxGen))

	var buf bytes.Buffer
	var index generic.ArrayObject
	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].ObjectNumber == entries[j-1].ObjectNumber+1 {
			j++
		}
		index = append(index, generic.IntegerObject(entries[i].ObjectNumber), generic.IntegerObject(j-i))
		i = j
	}
	for _, e := range entries {
		buf.WriteByte(byte(e.Type))
		switch e.Type {
		case XRefTypeInObjStream:
			writeField(&buf, int64(e.StreamObject), w2)
			writeField(&buf, int64(e.IndexInStream), w3)
		default:
			writeField(&buf, e.Offset, w2)
			writeField(&buf, int64(e.Generation), w3)
		}
	}

	data, err := filters.FlateDecodeFilter{}.Encode(buf.Bytes(), nil)
	if err != nil {
		return nil, err
	}

	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XRef"))
	for _, key := range trailer.Keys() {
		dict.Set(key, trailer.Get(key))
	}
	dict.Set("W", generic.NewArray(generic.IntegerObject(1), generic.IntegerObject(w2), generic.IntegerObject(w3)))
	dict.Set("Index", index)
	dict.Set("Filter", generic.NameObject("FlateDecode"))

	return &generic.StreamObject{Dictionary: dict, Data: data, Decoded: buf.Bytes()}, nil
}

func bytesNeeded(n int64) int {
	width := 1
	for n > 0xFF {
		width++
		n >>= 8
	}
	return width
}

func writeField(buf *bytes.Buffer, value int64, width int) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(value))
	buf.Write(tmp[8-width:])
}

// objectStream is a decoded object stream (/Type /ObjStm).
type objectStream struct {
	data    []byte
	first   int
	offsets []int
}

func parseObjectStream(stream *generic.StreamObject, decoded []byte) (*objectStream, error) {
	n, ok1 := stream.Dictionary.GetInt("N")
	first, ok2 := stream.Dictionary.GetInt("First")
	if !ok1 || !ok2 || first < 0 || int(first) > len(decoded) {
		return nil, fmt.Errorf("%w: object stream missing /N or /First", ErrInvalidPDF)
	}

	os := &objectStream{data: decoded, first: int(first)}
	pos := 0
	header := decoded[:first]
	for i := int64(0); i < n; i++ {
		pos = skipSpace(header, pos)
		_, p, ok := readInt(header, pos)
		pos = skipSpace(header, p)
		off, p, ok2 := readInt(header, pos)
		pos = p
		if !ok || !ok2 {
			return nil, fmt.Errorf("%w: bad object stream header", ErrInvalidPDF)
		}
		os.offsets = append(os.offsets, int(off))
	}
	return os, nil
}

func (os *objectStream) object(index int) (generic.PdfObject, error) {
	if index < 0 || index >= len(os.offsets) {
		return nil, fmt.Errorf("%w: index %d outside object stream", ErrObjectNotFound, index)
	}
	start := os.first + os.offsets[index]
	if start >= len(os.data) {
		return nil, fmt.Errorf("%w: object stream offset out of bounds", ErrObjectNotFound)
	}
	parser := generic.NewParser(os.data)
	parser.Seek(start)
	return parser.ParseObjectOrReference()
}
