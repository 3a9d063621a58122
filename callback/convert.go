package callback

import (
	"github.com/havarnov/sandkasse/protocol"
)

// Void is the native type of a void value.
type Void = protocol.VoidType

// Type is the set of native host types with a built-in converter.
type Type interface {
	Void | int32 | bool | string
}

// Converter moves one native type across the value model in both directions.
type Converter[T any] interface {
	// Kind is the variant T maps to. It doubles as the eval response tag.
	Kind() protocol.Kind
	// ToValue converts a native value into its script value.
	ToValue(T) protocol.Value
	// FromValue converts a script value, failing with WrongType on a variant mismatch.
	FromValue(protocol.Value) (T, error)
}

type converter[T any] struct {
	kind protocol.Kind
	to   func(T) protocol.Value
	from func(protocol.Value) (T, bool)
}

// NewConverter builds a Converter for a host-chosen type. from reports false
// when the value is not of the expected variant.
func NewConverter[T any](kind protocol.Kind, to func(T) protocol.Value, from func(protocol.Value) (T, bool)) Converter[T] {
	return &converter[T]{kind: kind, to: to, from: from}
}

func (c *converter[T]) Kind() protocol.Kind { return c.kind }

func (c *converter[T]) ToValue(v T) protocol.Value { return c.to(v) }

func (c *converter[T]) FromValue(v protocol.Value) (T, error) {
	out, ok := c.from(v)
	if !ok {
		var zero T
		return zero, protocol.Errorf(protocol.CodeWrongType, "expected %s, got %s", c.kind, v.Kind)
	}
	return out, nil
}

// Built-in converters.
var (
	VoidConverter = NewConverter(protocol.KindVoid,
		func(Void) protocol.Value { return protocol.Void() },
		func(v protocol.Value) (Void, bool) { return Void{}, v.IsVoid() })
	IntConverter    = NewConverter(protocol.KindInt, protocol.Int, protocol.Value.AsInt)
	BoolConverter   = NewConverter(protocol.KindBool, protocol.Bool, protocol.Value.AsBool)
	StringConverter = NewConverter(protocol.KindStr, protocol.Str, protocol.Value.AsStr)
)

// ConverterFor returns the built-in converter of T.
func ConverterFor[T Type]() Converter[T] {
	var zero T
	switch any(zero).(type) {
	case Void:
		return any(VoidConverter).(Converter[T])
	case int32:
		return any(IntConverter).(Converter[T])
	case bool:
		return any(BoolConverter).(Converter[T])
	case string:
		return any(StringConverter).(Converter[T])
	}
	panic("callback: no converter for type")
}
