package codec

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	c := NewDefault()
	tests := []struct {
		typ   Scalar
		value any
	}{
		{Int32, int32(0)},
		{Int32, int32(math.MaxInt32)},
		{Int32, int32(math.MinInt32)},
		{Float32, float32(3.25)},
		{Float32, float32(-0.1)},
		{Float64, 0.1},
		{Float64, -12345.678901234},
		{Float64, 1e-9},
		{Bool, true},
		{Bool, false},
		{String, ""},
		{String, "héllo, world"},
	}

	for _, tt := range tests {
		s, err := c.Encode(tt.typ, tt.value)
		if err != nil {
			t.Errorf("Encode(%s, %v) failed: %v", tt.typ, tt.value, err)
			continue
		}
		back, err := c.Decode(tt.typ, s)
		if err != nil {
			t.Errorf("Decode(%s, %q) failed: %v", tt.typ, s, err)
			continue
		}
		if back != tt.value {
			t.Errorf("round trip of %v (%s) = %v (type: %T), encoded as %q",
				tt.value, tt.typ, back, back, s)
		}
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	c := NewDefault()
	in := time.Date(2024, 2, 29, 13, 4, 5, 123456789, time.FixedZone("X", 3600))

	s, err := c.Encode(DateTime, in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := c.Decode(DateTime, s)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !back.(time.Time).Equal(in) {
		t.Errorf("round trip = %v, expected %v", back, in)
	}
}

func TestDecodeBoolCaseInsensitive(t *testing.T) {
	c := NewDefault()
	for input, expected := range map[string]bool{"TRUE": true, "True": true, "fAlSe": false, " true ": true} {
		v, err := c.Decode(Bool, input)
		if err != nil {
			t.Errorf("Decode(Bool, %q) failed: %v", input, err)
			continue
		}
		if v != expected {
			t.Errorf("Decode(Bool, %q) = %v, expected %v", input, v, expected)
		}
	}
}

func TestDecodeFormatError(t *testing.T) {
	c := NewDefault()
	tests := []struct {
		typ   Scalar
		input string
		zero  any
	}{
		{Int32, "abc", int32(0)},
		{Int32, "2147483648", int32(0)},
		{Float64, "1,5", float64(0)},
		{Bool, "yes", false},
		{DateTime, "yesterday", time.Time{}},
	}

	for _, tt := range tests {
		v, err := c.Decode(tt.typ, tt.input)
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("Decode(%s, %q) error = %v, expected *FormatError", tt.typ, tt.input, err)
			continue
		}
		if v != tt.zero {
			t.Errorf("Decode(%s, %q) = %v, expected zero value %v", tt.typ, tt.input, v, tt.zero)
		}
	}
}

func TestUnsupportedTypeIsFatal(t *testing.T) {
	c := NewDefault()
	if _, err := c.Decode(Scalar(42), "1"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Decode error = %v, expected ErrUnsupportedType", err)
	}
	if _, err := c.Encode(Invalid, 1); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Encode error = %v, expected ErrUnsupportedType", err)
	}
	if _, err := c.Zero(Invalid); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Zero error = %v, expected ErrUnsupportedType", err)
	}
}

func TestEncodeLenientNumbers(t *testing.T) {
	c := NewDefault()
	tests := []struct {
		typ      Scalar
		value    any
		expected string
	}{
		{Int32, float64(7), "7"},
		{Int32, 12, "12"},
		{Float64, 3, "3"},
		{Float32, float32(0.5), "0.5"},
	}
	for _, tt := range tests {
		s, err := c.Encode(tt.typ, tt.value)
		if err != nil {
			t.Errorf("Encode(%s, %v) failed: %v", tt.typ, tt.value, err)
			continue
		}
		if s != tt.expected {
			t.Errorf("Encode(%s, %v) = %q, expected %q", tt.typ, tt.value, s, tt.expected)
		}
	}

	if _, err := c.Encode(Int32, 1.5); err == nil {
		t.Error("Encode(Int32, 1.5) should fail")
	}
}

func TestFixedPrecision(t *testing.T) {
	c := &Default{Precision: 2}
	s, err := c.Encode(Float64, 3.14159)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if s != "3.14" {
		t.Errorf("Encode = %q, expected 3.14", s)
	}
}

func TestLookup(t *testing.T) {
	for s, name := range scalarNames {
		got, ok := Lookup(name)
		if !ok || got != s {
			t.Errorf("Lookup(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := Lookup("int64"); ok {
		t.Error("Lookup(int64) should fail")
	}
}
