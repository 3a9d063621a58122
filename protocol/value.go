package protocol

import (
	"fmt"
	"unicode/utf8"
)

// Kind identifies a Value variant. The numeric values are part of the wire format.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindBool
	KindStr
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindStr:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	return k <= KindStr
}

// ResponseType is a Kind used without payload to declare the expected result of an eval.
type ResponseType = Kind

// VoidType is the native host representation of a void value.
type VoidType struct{}

// Value is the only vocabulary that crosses the sandbox boundary.
// Exactly one variant is set; payload fields of the other variants stay zero.
type Value struct {
	Kind Kind   `codec:"k,omitempty" json:"k,omitempty"`
	Int  int32  `codec:"i,omitempty" json:"i,omitempty"`
	Bool bool   `codec:"b,omitempty" json:"b,omitempty"`
	Str  string `codec:"s,omitempty" json:"s,omitempty"`
}

// Void returns the void value.
func Void() Value { return Value{Kind: KindVoid} }

// Int wraps a 32-bit signed integer.
func Int(v int32) Value { return Value{Kind: KindInt, Int: v} }

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Str wraps UTF-8 text.
func Str(v string) Value { return Value{Kind: KindStr, Str: v} }

// IsVoid reports whether v is the void value.
func (v Value) IsVoid() bool { return v.Kind == KindVoid }

// AsInt returns the integer payload if v is an Int.
func (v Value) AsInt() (int32, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

// AsBool returns the boolean payload if v is a Bool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

// AsStr returns the text payload if v is a Str.
func (v Value) AsStr() (string, bool) {
	if v.Kind != KindStr {
		return "", false
	}
	return v.Str, true
}

// Validate checks the tagged-union invariant.
func (v Value) Validate() error {
	if !v.Kind.Valid() {
		return Errorf(CodeProtocol, "unknown value kind %d", uint8(v.Kind))
	}
	if v.Kind != KindInt && v.Int != 0 {
		return Errorf(CodeProtocol, "%s value carries an int payload", v.Kind)
	}
	if v.Kind != KindBool && v.Bool {
		return Errorf(CodeProtocol, "%s value carries a bool payload", v.Kind)
	}
	if v.Kind != KindStr && v.Str != "" {
		return Errorf(CodeProtocol, "%s value carries a string payload", v.Kind)
	}
	if v.Kind == KindStr && !utf8.ValidString(v.Str) {
		return Errorf(CodeProtocol, "string value is not valid UTF-8")
	}
	return nil
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("int(%d)", v.Int)
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.Bool)
	case KindStr:
		return fmt.Sprintf("string(%q)", v.Str)
	default:
		return v.Kind.String()
	}
}
