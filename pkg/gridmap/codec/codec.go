// Package codec converts scalar field values to and from their textual cell
// representation.
package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Scalar identifies a supported leaf value type.
type Scalar int

const (
	// Invalid is the zero Scalar and never a valid field type.
	Invalid Scalar = iota
	Int32
	Float32
	Float64
	Bool
	String
	DateTime
)

var scalarNames = map[Scalar]string{
	Int32:    "int32",
	Float32:  "float32",
	Float64:  "float64",
	Bool:     "bool",
	String:   "string",
	DateTime: "datetime",
}

func (s Scalar) String() string {
	if name, ok := scalarNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scalar(%d)", int(s))
}

// Lookup returns the Scalar spelled name, e.g. "int32".
func Lookup(name string) (Scalar, bool) {
	for s, n := range scalarNames {
		if n == name {
			return s, true
		}
	}
	return Invalid, false
}

// DateTimeLayout is the culture-invariant layout used for DateTime cells.
const DateTimeLayout = time.RFC3339Nano

// ErrUnsupportedType indicates a codec asked to handle a scalar type it does
// not know. It is a configuration error, never a per-value failure.
var ErrUnsupportedType = errors.New("unsupported scalar type")

// FormatError reports a value that cannot be converted to its declared type.
type FormatError struct {
	Type  Scalar
	Input string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %v", e.Input, e.Type, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Codec encodes values into cell text and decodes them back.
type Codec interface {
	// Encode renders v, which must be convertible to t, as cell text.
	Encode(t Scalar, v any) (string, error)
	// Decode parses cell text into a value of t's Go type.
	Decode(t Scalar, s string) (any, error)
	// Zero returns the default value for t.
	Zero(t Scalar) (any, error)
}

// Default is the invariant-culture codec. Int32 maps to int32, Float32 to
// float32, Float64 to float64, Bool to bool, String to string and DateTime to
// time.Time.
type Default struct {
	// Precision is the number of decimals written for floats. A negative value
	// writes the shortest representation that round-trips exactly.
	Precision int
}

// NewDefault returns a Default codec writing floats at full precision.
func NewDefault() *Default {
	return &Default{Precision: -1}
}

// Zero implements Codec.
func (d *Default) Zero(t Scalar) (any, error) {
	switch t {
	case Int32:
		return int32(0), nil
	case Float32:
		return float32(0), nil
	case Float64:
		return float64(0), nil
	case Bool:
		return false, nil
	case String:
		return "", nil
	case DateTime:
		return time.Time{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// Decode implements Codec.
func (d *Default) Decode(t Scalar, s string) (any, error) {
	switch t {
	case Int32:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return int32(0), &FormatError{Type: t, Input: s, Err: err}
		}
		return int32(i), nil
	case Float32:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return float32(0), &FormatError{Type: t, Input: s, Err: err}
		}
		return float32(f), nil
	case Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return float64(0), &FormatError{Type: t, Input: s, Err: err}
		}
		return f, nil
	case Bool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, &FormatError{Type: t, Input: s, Err: errors.New("expected true or false")}
	case String:
		return s, nil
	case DateTime:
		tm, err := time.Parse(DateTimeLayout, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, &FormatError{Type: t, Input: s, Err: err}
		}
		return tm, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// Encode implements Codec. Numbers of any Go numeric type are accepted when
// they fit the declared type, so values decoded from JSON (float64) can be
// written into Int32 fields.
func (d *Default) Encode(t Scalar, v any) (string, error) {
	switch t {
	case Int32:
		i, err := toInt64(v)
		if err != nil {
			return "", &FormatError{Type: t, Input: fmt.Sprint(v), Err: err}
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return "", &FormatError{Type: t, Input: fmt.Sprint(v), Err: strconv.ErrRange}
		}
		return strconv.FormatInt(i, 10), nil
	case Float32, Float64:
		f, err := toFloat64(v)
		if err != nil {
			return "", &FormatError{Type: t, Input: fmt.Sprint(v), Err: err}
		}
		bits := 64
		if t == Float32 {
			bits = 32
		}
		return strconv.FormatFloat(f, 'f', d.Precision, bits), nil
	case Bool:
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b), nil
		case string:
			parsed, err := d.Decode(Bool, b)
			if err != nil {
				return "", err
			}
			return strconv.FormatBool(parsed.(bool)), nil
		}
		return "", &FormatError{Type: t, Input: fmt.Sprint(v), Err: fmt.Errorf("unexpected %T", v)}
	case String:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
		return fmt.Sprint(v), nil
	case DateTime:
		switch tm := v.(type) {
		case time.Time:
			return tm.Format(DateTimeLayout), nil
		case string:
			parsed, err := d.Decode(DateTime, tm)
			if err != nil {
				return "", err
			}
			return parsed.(time.Time).Format(DateTimeLayout), nil
		}
		return "", &FormatError{Type: t, Input: fmt.Sprint(v), Err: fmt.Errorf("unexpected %T", v)}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case interface{ Int64() (int64, error) }:
		return n.Int64()
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not integral", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case interface{ Float64() (float64, error) }:
		return n.Float64()
	}
	return 0, fmt.Errorf("unexpected %T", v)
}
