// Package content builds PDF content streams.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/georgepadayatti/signpad/pdf/generic"
)

// ErrUnbalanced is returned for streams whose q and Q do not pair up.
var ErrUnbalanced = errors.New("unbalanced graphics state")

// Operator represents a PDF content stream operator.
type Operator string

// Operators used to place images.
const (
	// Graphics state operators
	OpSaveState    Operator = "q"
	OpRestoreState Operator = "Q"
	OpSetCTM       Operator = "cm"

	// Path construction and painting
	OpRectangle Operator = "re"
	OpEndPath   Operator = "n"

	// Clipping
	OpClip Operator = "W"

	// XObject operators
	OpPaintXObject Operator = "Do"
)

// Matrix is a transformation matrix [a b c d e f].
type Matrix [6]float64

// Identity is the identity matrix.
var Identity = Matrix{1, 0, 0, 1, 0, 0}

func (m Matrix) String() string {
	var buf bytes.Buffer
	for i, v := range m {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(generic.FormatNumber(v))
	}
	return buf.String()
}

// ContentStream is a sequence of operations.
type ContentStream struct {
	Operations []Operation
}

// Operation represents a single operation in a content stream.
type Operation struct {
	Operator Operator
	Operands []interface{}
}

// NewContentStream creates a new empty content stream.
func NewContentStream() *ContentStream {
	return &ContentStream{
		Operations: make([]Operation, 0),
	}
}

// AddOperation adds an operation to the content stream.
func (cs *ContentStream) AddOperation(op Operator, operands ...interface{}) {
	cs.Operations = append(cs.Operations, Operation{
		Operator: op,
		Operands: operands,
	})
}

// Render renders the content stream on a single line, operations separated
// by one space.
func (cs *ContentStream) Render() []byte {
	var buf bytes.Buffer

	for n, op := range cs.Operations {
		if n > 0 {
			buf.WriteByte(' ')
		}
		for _, operand := range op.Operands {
			buf.WriteString(formatOperand(operand))
			buf.WriteByte(' ')
		}
		buf.WriteString(string(op.Operator))
	}

	return buf.Bytes()
}

// formatOperand formats an operand for output.
func formatOperand(v interface{}) string {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val)
	case float64:
		return generic.FormatNumber(val)
	case Matrix:
		return val.String()
	case generic.NameObject:
		return "/" + string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ContentBuilder provides a fluent interface for building content streams.
type ContentBuilder struct {
	stream *ContentStream
	depth  int
	// underflow records a Q with no open q.
	underflow bool
}

// NewContentBuilder creates a new content builder.
func NewContentBuilder() *ContentBuilder {
	return &ContentBuilder{
		stream: NewContentStream(),
	}
}

// SaveState saves the graphics state.
func (cb *ContentBuilder) SaveState() *ContentBuilder {
	cb.depth++
	cb.stream.AddOperation(OpSaveState)
	return cb
}

// RestoreState restores the graphics state.
func (cb *ContentBuilder) RestoreState() *ContentBuilder {
	if cb.depth == 0 {
		cb.underflow = true
	}
	cb.depth--
	cb.stream.AddOperation(OpRestoreState)
	return cb
}

// Transform concatenates m to the current matrix. The identity is skipped.
func (cb *ContentBuilder) Transform(m Matrix) *ContentBuilder {
	if m != Identity {
		cb.stream.AddOperation(OpSetCTM, m)
	}
	return cb
}

// Rectangle appends a rectangle to the current path.
func (cb *ContentBuilder) Rectangle(x, y, width, height float64) *ContentBuilder {
	cb.stream.AddOperation(OpRectangle, x, y, width, height)
	return cb
}

// Clip intersects the clipping path with the current path and ends the
// path without painting it.
func (cb *ContentBuilder) Clip() *ContentBuilder {
	cb.stream.AddOperation(OpClip)
	cb.stream.AddOperation(OpEndPath)
	return cb
}

// DrawXObject paints the named XObject resource.
func (cb *ContentBuilder) DrawXObject(name string) *ContentBuilder {
	cb.stream.AddOperation(OpPaintXObject, generic.NameObject(name))
	return cb
}

// Balanced reports whether every SaveState has a matching RestoreState.
func (cb *ContentBuilder) Balanced() bool {
	return cb.depth == 0 && !cb.underflow
}

// Build returns the content stream.
func (cb *ContentBuilder) Build() *ContentStream {
	return cb.stream
}

// Bytes renders the content stream.
func (cb *ContentBuilder) Bytes() []byte {
	return cb.stream.Render()
}

// Finish renders the content stream, refusing one that would leave the
// graphics state of the page changed.
func (cb *ContentBuilder) Finish() ([]byte, error) {
	if !cb.Balanced() {
		return nil, fmt.Errorf("%w: depth %d", ErrUnbalanced, cb.depth)
	}
	return cb.Bytes(), nil
}
