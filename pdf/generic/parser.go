package generic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	ErrUnexpectedEOF     = errors.New("unexpected end of data")
	ErrInvalidObject     = errors.New("invalid PDF object")
	ErrInvalidStream     = errors.New("invalid PDF stream")
	ErrInvalidDictionary = errors.New("invalid PDF dictionary")
	ErrInvalidArray      = errors.New("invalid PDF array")
	ErrInvalidString     = errors.New("invalid PDF string")
	ErrInvalidName       = errors.New("invalid PDF name")
	ErrInvalidNumber     = errors.New("invalid PDF number")
)

// maxNesting bounds array and dictionary depth so hostile input cannot
// exhaust the stack.
const maxNesting = 256

// LengthResolver resolves an indirect /Length entry of a stream.
type LengthResolver func(ref Reference) (int64, bool)

// Parser parses PDF objects from an in-memory byte slice.
type Parser struct {
	data  []byte
	pos   int
	depth int

	// ResolveLength is consulted when a stream's /Length is an indirect
	// reference. When it is nil, or the value does not fit, the parser
	// falls back to scanning for the endstream keyword.
	ResolveLength LengthResolver
}

// NewParser creates a parser positioned at the start of data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Pos returns the current offset.
func (p *Parser) Pos() int { return p.pos }

// Seek moves the parser to offset.
func (p *Parser) Seek(offset int) {
	p.pos = max(0, min(offset, len(p.data)))
}

func (p *Parser) eof() bool { return p.pos >= len(p.data) }

func (p *Parser) peek() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *Parser) next() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	b := p.data[p.pos]
	p.pos++
	return b, true
}

// SkipWhitespace skips whitespace and comments.
func (p *Parser) SkipWhitespace() {
	for !p.eof() {
		b := p.data[p.pos]
		switch {
		case isWhitespace(b):
			p.pos++
		case b == '%':
			for !p.eof() && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == 0 || b == '\f'
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// ReadToken reads a regular token (keyword or number).
func (p *Parser) ReadToken() string {
	p.SkipWhitespace()
	start := p.pos
	for !p.eof() && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// ParseObject parses a direct object. Indirect references are not
// recognised; use ParseObjectOrReference for that.
func (p *Parser) ParseObject() (PdfObject, error) {
	p.SkipWhitespace()
	b, ok := p.peek()
	if !ok {
		return nil, ErrUnexpectedEOF
	}

	switch {
	case b == '(':
		return p.parseLiteralString()
	case b == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			p.pos += 2
			return p.parseDictionary()
		}
		return p.parseHexString()
	case b == '[':
		return p.parseArray()
	case b == '/':
		return p.parseName()
	case b == '-' || b == '+' || b == '.' || (b >= '0' && b <= '9'):
		return p.parseNumber()
	}

	switch tok := p.ReadToken(); tok {
	case "true":
		return BooleanObject(true), nil
	case "false":
		return BooleanObject(false), nil
	case "null":
		return NullObject{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %q at offset %d", ErrInvalidObject, tok, p.pos)
	}
}

// ParseObjectOrReference parses an object, recognising "n g R" as a
// reference.
func (p *Parser) ParseObjectOrReference() (PdfObject, error) {
	p.SkipWhitespace()
	b, ok := p.peek()
	if !ok {
		return nil, ErrUnexpectedEOF
	}
	if b < '0' || b > '9' {
		return p.ParseObject()
	}

	start := p.pos
	first, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	objNum, isInt := first.(IntegerObject)
	if !isInt {
		return first, nil
	}

	afterFirst := p.pos
	p.SkipWhitespace()
	if b, ok := p.peek(); !ok || b < '0' || b > '9' {
		p.pos = afterFirst
		return first, nil
	}
	second, err := p.parseNumber()
	genNum, isGen := second.(IntegerObject)
	if err != nil || !isGen {
		p.pos = afterFirst
		return first, nil
	}
	p.SkipWhitespace()
	if b, ok := p.peek(); ok && b == 'R' {
		p.pos++
		return Reference{ObjectNumber: int(objNum), GenerationNumber: int(genNum)}, nil
	}

	p.pos = start
	return p.parseNumber()
}

func (p *Parser) parseLiteralString() (*StringObject, error) {
	p.pos++ // (
	var buf bytes.Buffer
	depth := 1
	for {
		b, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
		}
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return &StringObject{Value: buf.Bytes()}, nil
			}
			buf.WriteByte(b)
		case '\\':
			p.parseEscape(&buf)
		default:
			buf.WriteByte(b)
		}
	}
}

func (p *Parser) parseEscape(buf *bytes.Buffer) {
	c, ok := p.next()
	if !ok {
		return
	}
	switch c {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		if b, ok := p.peek(); ok && b == '\n' {
			p.pos++
		}
	case '\n':
	default:
		if c < '0' || c > '7' {
			buf.WriteByte(c)
			return
		}
		val := int(c - '0')
		for i := 0; i < 2; i++ {
			d, ok := p.peek()
			if !ok || d < '0' || d > '7' {
				break
			}
			p.pos++
			val = val*8 + int(d-'0')
		}
		buf.WriteByte(byte(val))
	}
}

func (p *Parser) parseHexString() (*StringObject, error) {
	p.pos++ // <
	var digits []byte
	for {
		b, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated hex string", ErrInvalidString)
		}
		if b == '>' {
			break
		}
		if !isWhitespace(b) {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	data := make([]byte, len(digits)/2)
	if _, err := hex.Decode(data, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidString, err)
	}
	return &StringObject{Value: data, IsHex: true}, nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxNesting {
		return fmt.Errorf("%w: nesting deeper than %d", ErrInvalidObject, maxNesting)
	}
	return nil
}

// parseDictionary parses a dictionary body; the opening << is consumed.
func (p *Parser) parseDictionary() (*DictionaryObject, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	dict := NewDictionary()
	for {
		p.SkipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated dictionary", ErrInvalidDictionary)
		}
		if b == '>' {
			if p.pos+1 >= len(p.data) || p.data[p.pos+1] != '>' {
				return nil, fmt.Errorf("%w: expected '>>'", ErrInvalidDictionary)
			}
			p.pos += 2
			return dict, nil
		}

		key, err := p.parseName()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid key: %v", ErrInvalidDictionary, err)
		}
		value, err := p.ParseObjectOrReference()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid value for /%s: %v", ErrInvalidDictionary, key, err)
		}
		dict.Set(string(key), value)
	}
}

func (p *Parser) parseArray() (ArrayObject, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	p.pos++ // [
	arr := ArrayObject{}
	for {
		p.SkipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidArray)
		}
		if b == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.ParseObjectOrReference()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArray, err)
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseName() (NameObject, error) {
	p.SkipWhitespace()
	if b, ok := p.next(); !ok || b != '/' {
		return "", ErrInvalidName
	}
	var buf bytes.Buffer
	for !p.eof() {
		b := p.data[p.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		p.pos++
		if b == '#' && p.pos+1 < len(p.data) {
			val, err := strconv.ParseUint(string(p.data[p.pos:p.pos+2]), 16, 8)
			if err != nil {
				return "", fmt.Errorf("%w: bad escape", ErrInvalidName)
			}
			p.pos += 2
			buf.WriteByte(byte(val))
			continue
		}
		buf.WriteByte(b)
	}
	return NameObject(buf.String()), nil
}

func (p *Parser) parseNumber() (PdfObject, error) {
	start := p.pos
	isReal := false
	for !p.eof() {
		b := p.data[p.pos]
		signed := (b == '-' || b == '+') && p.pos == start
		if b == '.' && !isReal {
			isReal = true
		} else if !signed && (b < '0' || b > '9') {
			break
		}
		p.pos++
	}
	str := string(p.data[start:p.pos])
	if isReal {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, str)
		}
		return RealObject(val), nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, str)
	}
	return IntegerObject(val), nil
}

// ParseIndirectObject parses "n g obj ... endobj", including a stream body
// when the object is a stream.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.SkipWhitespace()
	objNum, err1 := strconv.Atoi(p.ReadToken())
	genNum, err2 := strconv.Atoi(p.ReadToken())
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: bad object header at offset %d", ErrInvalidObject, p.pos)
	}
	if tok := p.ReadToken(); tok != "obj" {
		return nil, fmt.Errorf("%w: expected 'obj', got %q", ErrInvalidObject, tok)
	}

	obj, err := p.ParseObjectOrReference()
	if err != nil {
		return nil, err
	}

	if dict, ok := obj.(*DictionaryObject); ok {
		save := p.pos
		if p.ReadToken() == "stream" {
			data, err := p.readStreamData(dict)
			if err != nil {
				return nil, fmt.Errorf("object %d: %w", objNum, err)
			}
			obj = &StreamObject{Dictionary: dict, Data: data}
		} else {
			p.pos = save
		}
	}

	// Some writers omit endobj; tolerate it.
	save := p.pos
	if p.ReadToken() != "endobj" {
		p.pos = save
	}
	return NewIndirectObject(objNum, genNum, obj), nil
}

// readStreamData reads stream bytes after the stream keyword.
func (p *Parser) readStreamData(dict *DictionaryObject) ([]byte, error) {
	if b, ok := p.peek(); ok && b == '\r' {
		p.pos++
	}
	if b, ok := p.peek(); ok && b == '\n' {
		p.pos++
	}
	start := p.pos

	length := int64(-1)
	switch v := dict.Get("Length").(type) {
	case IntegerObject:
		length = int64(v)
	case Reference:
		if p.ResolveLength != nil {
			if l, ok := p.ResolveLength(v); ok {
				length = l
			}
		}
	}

	if length >= 0 && int64(start)+length <= int64(len(p.data)) {
		end := start + int(length)
		p.pos = end
		if p.ReadToken() == "endstream" {
			return p.data[start:end], nil
		}
	}

	// Length missing or wrong: scan for the keyword.
	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing endstream", ErrInvalidStream)
	}
	end := start + idx
	if end > start && p.data[end-1] == '\n' {
		end--
	}
	if end > start && p.data[end-1] == '\r' {
		end--
	}
	p.pos = start + idx + len("endstream")
	return p.data[start:end], nil
}

// ParseRectangle parses a rectangle from an array object.
func ParseRectangle(obj PdfObject) (*Rectangle, error) {
	arr, ok := obj.(ArrayObject)
	if !ok {
		return nil, fmt.Errorf("expected array for rectangle, got %T", obj)
	}
	return NewRectangle(arr)
}
