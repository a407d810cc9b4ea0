package generic

import (
	"errors"
	"testing"
)

func TestParseScalars(t *testing.T) {
	tests := []struct {
		input    string
		expected PdfObject
	}{
		{"null", NullObject{}},
		{"true", BooleanObject(true)},
		{"false", BooleanObject(false)},
		{"42", IntegerObject(42)},
		{"-123", IntegerObject(-123)},
		{"+7", IntegerObject(7)},
		{"3.5", RealObject(3.5)},
		{"-.25", RealObject(-0.25)},
		{"/Type", NameObject("Type")},
		{"/A#20B", NameObject("A B")},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		if obj != tt.expected {
			t.Errorf("ParseObject(%q): expected %#v, got %#v", tt.input, tt.expected, obj)
		}
	}
}

func TestParseStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		hex      bool
	}{
		{"(Hello)", "Hello", false},
		{"(a (nested) b)", "a (nested) b", false},
		{`(line\nbreak)`, "line\nbreak", false},
		{`(\101\102)`, "AB", false},
		{`(esc\)aped)`, "esc)aped", false},
		{"<48656C6C6F>", "Hello", true},
		{"<48 65 6c>", "Hel", true},
		{"<7>", "p", true},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		s, ok := obj.(*StringObject)
		if !ok {
			t.Fatalf("Expected *StringObject for %q, got %T", tt.input, obj)
		}
		if string(s.Value) != tt.expected || s.IsHex != tt.hex {
			t.Errorf("ParseObject(%q): expected %q (hex=%v), got %q (hex=%v)", tt.input, tt.expected, tt.hex, s.Value, s.IsHex)
		}
	}
}

func TestParseDictionaryWithReferences(t *testing.T) {
	input := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Rotate 90 /Nested << /K 1 >> >>"
	obj, err := NewParser([]byte(input)).ParseObjectOrReference()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dict, ok := obj.(*DictionaryObject)
	if !ok {
		t.Fatalf("Expected dictionary, got %T", obj)
	}

	if dict.GetName("Type") != "Page" {
		t.Errorf("Expected /Type /Page, got %q", dict.GetName("Type"))
	}
	if ref, ok := dict.Get("Parent").(Reference); !ok || ref.ObjectNumber != 2 {
		t.Errorf("Expected Parent 2 0 R, got %v", dict.Get("Parent"))
	}
	if arr := dict.GetArray("MediaBox"); len(arr) != 4 {
		t.Errorf("Expected 4 MediaBox entries, got %d", len(arr))
	}
	if rot, _ := dict.GetInt("Rotate"); rot != 90 {
		t.Errorf("Expected Rotate 90, got %d", rot)
	}
	if k, _ := dict.GetDict("Nested").GetInt("K"); k != 1 {
		t.Errorf("Expected nested K 1, got %d", k)
	}
}

func TestParseArrayNumbersAreNotReferences(t *testing.T) {
	obj, err := NewParser([]byte("[1 2 3 0 R 4]")).ParseObject()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	arr := obj.(ArrayObject)
	if len(arr) != 4 {
		t.Fatalf("Expected 4 elements, got %d: %v", len(arr), arr)
	}
	if arr[0] != IntegerObject(1) || arr[3] != IntegerObject(4) {
		t.Errorf("Unexpected integers: %v", arr)
	}
	if ref, ok := arr[2].(Reference); !ok || ref.ObjectNumber != 3 {
		t.Errorf("Expected reference 3 0 R, got %v", arr[2])
	}
}

func TestParseIndirectStream(t *testing.T) {
	input := "5 0 obj\n<< /Length 11 >>\nstream\nhello world\nendstream\nendobj\n"
	obj, err := NewParser([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if obj.ObjectNumber != 5 {
		t.Errorf("Expected object 5, got %d", obj.ObjectNumber)
	}
	stream, ok := obj.Object.(*StreamObject)
	if !ok {
		t.Fatalf("Expected stream, got %T", obj.Object)
	}
	if string(stream.Data) != "hello world" {
		t.Errorf("Expected stream data %q, got %q", "hello world", stream.Data)
	}
}

func TestParseStreamIndirectLength(t *testing.T) {
	input := "5 0 obj\n<< /Length 9 0 R >>\nstream\r\nabc\r\nendstream\nendobj\n"

	p := NewParser([]byte(input))
	p.ResolveLength = func(ref Reference) (int64, bool) {
		if ref.ObjectNumber == 9 {
			return 3, true
		}
		return 0, false
	}
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if data := obj.Object.(*StreamObject).Data; string(data) != "abc" {
		t.Errorf("Expected %q, got %q", "abc", data)
	}
}

func TestParseStreamWrongLengthFallsBackToScan(t *testing.T) {
	inputs := []string{
		"1 0 obj\n<< /Length 500 >>\nstream\nxyz\nendstream\nendobj\n",
		"1 0 obj\n<< /Length 7 0 R >>\nstream\nxyz\nendstream\nendobj\n",
		"1 0 obj\n<< >>\nstream\nxyz\nendstream\nendobj\n",
	}
	for _, input := range inputs {
		obj, err := NewParser([]byte(input)).ParseIndirectObject()
		if err != nil {
			t.Fatalf("ParseIndirectObject(%q) failed: %v", input, err)
		}
		if data := obj.Object.(*StreamObject).Data; string(data) != "xyz" {
			t.Errorf("Expected %q, got %q", "xyz", data)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"", ErrUnexpectedEOF},
		{"(unterminated", ErrInvalidString},
		{"<< /A 1", ErrInvalidDictionary},
		{"[1 2", ErrInvalidArray},
		{"bogus", ErrInvalidObject},
		{"<zz>", ErrInvalidString},
	}
	for _, tt := range tests {
		_, err := NewParser([]byte(tt.input)).ParseObject()
		if !errors.Is(err, tt.err) {
			t.Errorf("ParseObject(%q): expected %v, got %v", tt.input, tt.err, err)
		}
	}
}

func TestParseMissingEndstream(t *testing.T) {
	_, err := NewParser([]byte("1 0 obj << /Length 3 >> stream\nab")).ParseIndirectObject()
	if !errors.Is(err, ErrInvalidStream) {
		t.Errorf("Expected ErrInvalidStream, got %v", err)
	}
}

func TestParseDeepNesting(t *testing.T) {
	input := make([]byte, 0, 2*maxNesting+4)
	for i := 0; i <= maxNesting; i++ {
		input = append(input, '[')
	}
	_, err := NewParser(input).ParseObject()
	if !errors.Is(err, ErrInvalidObject) && !errors.Is(err, ErrInvalidArray) {
		t.Errorf("Expected nesting error, got %v", err)
	}
}
