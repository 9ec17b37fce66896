package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which slot of a Value is populated.
type ValueKind int

// Value kinds.
const (
	// ValueAbsent means the extractor produced nothing (missing, null or empty string).
	ValueAbsent ValueKind = iota

	// ValueString holds text as extracted.
	ValueString

	// ValueNumber holds a JSON number.
	ValueNumber

	// ValueBool holds a JSON boolean.
	ValueBool
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	default:
		return "absent"
	}
}

// Value is a single extracted scalar.
// The zero value is absent.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// StringValue returns a string value. Blank strings are absent.
func StringValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{Kind: ValueString, Str: s}
}

// NumberValue returns a numeric value.
func NumberValue(f float64) Value {
	return Value{Kind: ValueNumber, Num: f}
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

// IsAbsent reports whether the value carries nothing to write.
func (v Value) IsAbsent() bool {
	return v.Kind == ValueAbsent
}

// String renders the value as text. Numbers never use exponent notation.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// UnmarshalJSON accepts any JSON scalar. Objects and arrays are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{', '[':
		return fmt.Errorf("%w: expected scalar, got %s", ErrInvalidInput, string(data[:1]))
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		*v = NumberValue(f)
	}
	return nil
}

// MarshalJSON writes the value back as its JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueNumber:
		return []byte(strconv.FormatFloat(v.Num, 'f', -1, 64)), nil
	case ValueBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}
