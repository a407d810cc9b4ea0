// Package filters implements the PDF stream filters needed to read
// cross-reference and object streams and to write compressed content.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Common errors
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrDecodeFailed      = errors.New("decode failed")
)

// Params carries the /DecodeParms entries a filter understands. Zero values
// mean "use the PDF default".
type Params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
}

func (p *Params) withDefaults() Params {
	out := Params{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1}
	if p == nil {
		return out
	}
	if p.Predictor > 0 {
		out.Predictor = p.Predictor
	}
	if p.Colors > 0 {
		out.Colors = p.Colors
	}
	if p.BitsPerComponent > 0 {
		out.BitsPerComponent = p.BitsPerComponent
	}
	if p.Columns > 0 {
		out.Columns = p.Columns
	}
	return out
}

// Filter decodes one PDF stream filter. Only Flate is ever written.
type Filter interface {
	Name() string
	Decode(data []byte, params *Params) ([]byte, error)
}

// FlateDecodeFilter implements FlateDecode (zlib) with PNG predictors.
type FlateDecodeFilter struct{}

func (FlateDecodeFilter) Name() string { return "FlateDecode" }

func (FlateDecodeFilter) Decode(data []byte, params *Params) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	p := params.withDefaults()
	if p.Predictor >= 10 {
		return decodePNGPredictor(out, p)
	}
	return out, nil
}

func (FlateDecodeFilter) Encode(data []byte, _ *Params) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// decodePNGPredictor undoes PNG row filtering; every row starts with a
// filter-type byte.
func decodePNGPredictor(data []byte, p Params) ([]byte, error) {
	bpp := max(1, (p.Colors*p.BitsPerComponent+7)/8)
	rowLen := (p.Columns*p.Colors*p.BitsPerComponent + 7) / 8
	if len(data)%(rowLen+1) != 0 {
		return nil, fmt.Errorf("%w: predictor data is not a whole number of rows", ErrDecodeFailed)
	}

	out := make([]byte, 0, len(data)/(rowLen+1)*rowLen)
	prev := make([]byte, rowLen)
	for i := 0; i < len(data); i += rowLen + 1 {
		kind, row := data[i], data[i+1:i+1+rowLen]
		cur := make([]byte, rowLen)
		for j := range row {
			var left, upLeft byte
			if j >= bpp {
				left, upLeft = cur[j-bpp], prev[j-bpp]
			}
			up := prev[j]
			switch kind {
			case 0:
				cur[j] = row[j]
			case 1:
				cur[j] = row[j] + left
			case 2:
				cur[j] = row[j] + up
			case 3:
				cur[j] = row[j] + byte((int(left)+int(up))/2)
			case 4:
				cur[j] = row[j] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("%w: unknown PNG filter type %d", ErrDecodeFailed, kind)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ASCIIHexDecodeFilter implements ASCIIHexDecode.
type ASCIIHexDecodeFilter struct{}

func (ASCIIHexDecodeFilter) Name() string { return "ASCIIHexDecode" }

func (ASCIIHexDecodeFilter) Decode(data []byte, _ *Params) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' && b != '\f' && b != 0 {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

// ASCII85DecodeFilter implements ASCII85Decode.
type ASCII85DecodeFilter struct{}

func (ASCII85DecodeFilter) Name() string { return "ASCII85Decode" }

func (ASCII85DecodeFilter) Decode(data []byte, _ *Params) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end != -1 {
		data = data[:end]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	out, err := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

// RunLengthDecodeFilter implements RunLengthDecode.
type RunLengthDecodeFilter struct{}

func (RunLengthDecodeFilter) Name() string { return "RunLengthDecode" }

func (RunLengthDecodeFilter) Decode(data []byte, _ *Params) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(data[i : i+n+1])
			i += n + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(bytes.Repeat(data[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}

// Registry holds all registered filters, keyed by full and abbreviated name.
var Registry = map[string]Filter{
	"FlateDecode":     FlateDecodeFilter{},
	"Fl":              FlateDecodeFilter{},
	"ASCIIHexDecode":  ASCIIHexDecodeFilter{},
	"AHx":             ASCIIHexDecodeFilter{},
	"ASCII85Decode":   ASCII85DecodeFilter{},
	"A85":             ASCII85DecodeFilter{},
	"RunLengthDecode": RunLengthDecodeFilter{},
	"RL":              RunLengthDecodeFilter{},
}

// GetFilter returns a filter by name.
func GetFilter(name string) (Filter, error) {
	if f, ok := Registry[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
}

// DecodeStream applies filters in order; params[i] belongs to filters[i].
func DecodeStream(data []byte, filters []string, params []*Params) ([]byte, error) {
	for i, name := range filters {
		f, err := GetFilter(name)
		if err != nil {
			return nil, err
		}
		var p *Params
		if i < len(params) {
			p = params[i]
		}
		if data, err = f.Decode(data, p); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
	}
	return data, nil
}

