package callback

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havarnov/sandkasse/protocol"
)

func vals(v ...protocol.Value) []protocol.Value { return v }

func TestAdapters(t *testing.T) {
	tests := []struct {
		name string
		fn   Func
		args []protocol.Value
		want protocol.Value
	}{
		{
			name: "zero args",
			fn:   Func0(func() int32 { return 7 }),
			want: protocol.Int(7),
		},
		{
			name: "one int",
			fn:   Func1(func(v int32) int32 { return v * 2 }),
			args: vals(protocol.Int(42)),
			want: protocol.Int(84),
		},
		{
			name: "two ints",
			fn:   Func2(func(a, b int32) int32 { return a + b }),
			args: vals(protocol.Int(42), protocol.Int(22)),
			want: protocol.Int(64),
		},
		{
			name: "mixed three",
			fn: Func3(func(s string, n int32, up bool) string {
				out := strings.Repeat(s, int(n))
				if up {
					out = strings.ToUpper(out)
				}
				return out
			}),
			args: vals(protocol.Str("ab"), protocol.Int(2), protocol.Bool(true)),
			want: protocol.Str("ABAB"),
		},
		{
			name: "bool result",
			fn:   Func1(func(s string) bool { return s == "" }),
			args: vals(protocol.Str("")),
			want: protocol.Bool(true),
		},
		{
			name: "void result",
			fn:   Proc1(func(string) {}),
			args: vals(protocol.Str("x")),
			want: protocol.Void(),
		},
		{
			name: "trailing void is not extra",
			fn:   Func1(func(v int32) int32 { return v }),
			args: vals(protocol.Int(1), protocol.Void()),
			want: protocol.Int(1),
		},
		{
			name: "void parameter accepts absence",
			fn:   Func2(func(_ Void, b int32) int32 { return b }),
			args: vals(protocol.Void(), protocol.Int(3)),
			want: protocol.Int(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapterMismatch(t *testing.T) {
	add := Func2(func(a, b int32) int32 { return a + b })

	tests := []struct {
		name    string
		args    []protocol.Value
		message string
	}{
		{name: "no args", args: nil, message: "argument 1 (int) is missing"},
		{name: "one arg", args: vals(protocol.Int(1)), message: "argument 2 (int) is missing"},
		{name: "wrong type", args: vals(protocol.Int(1), protocol.Str("x")), message: "argument 2: expected int, got string"},
		{name: "void in the middle", args: vals(protocol.Void(), protocol.Int(1)), message: "argument 1 (int) is missing"},
		{name: "too many", args: vals(protocol.Int(1), protocol.Int(2), protocol.Int(3)), message: "expected 2 arguments, got 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := add(tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, protocol.ErrArityOrTypeMismatch)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestZeroArgAdapterRejectsArguments(t *testing.T) {
	calls := 0
	fn := Proc0(func() { calls++ })

	_, err := fn(vals(protocol.Int(1)))
	assert.ErrorIs(t, err, protocol.ErrArityOrTypeMismatch)
	assert.Equal(t, 0, calls)

	_, err = fn(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTryAdapterReturnsError(t *testing.T) {
	boom := errors.New("disk full")
	fn := Try1(func(string) (int32, error) { return 0, boom })

	_, err := fn(vals(protocol.Str("x")))
	assert.ErrorIs(t, err, boom)
}

func TestNilFunctionsAdaptToNil(t *testing.T) {
	assert.Nil(t, Func0[int32](nil))
	assert.Nil(t, Func2[int32, int32, int32](nil))
	assert.Nil(t, Try1[string, bool](nil))
	assert.Nil(t, Proc0(nil))
}

type celsius int32

func TestExtensionConverter(t *testing.T) {
	conv := NewConverter(protocol.KindInt,
		func(c celsius) protocol.Value { return protocol.Int(int32(c)) },
		func(v protocol.Value) (celsius, bool) {
			i, ok := v.AsInt()
			return celsius(i), ok
		})

	toF := Adapt1(conv, IntConverter, func(c celsius) (int32, error) { return int32(c)*9/5 + 32, nil })

	got, err := toF(vals(protocol.Int(100)))
	require.NoError(t, err)
	assert.Equal(t, protocol.Int(212), got)

	_, err = toF(vals(protocol.Bool(true)))
	assert.ErrorIs(t, err, protocol.ErrArityOrTypeMismatch)
}

func TestConverters(t *testing.T) {
	i, err := ConverterFor[int32]().FromValue(protocol.Int(9))
	require.NoError(t, err)
	assert.Equal(t, int32(9), i)

	_, err = ConverterFor[int32]().FromValue(protocol.Str("9"))
	assert.ErrorIs(t, err, protocol.ErrWrongType)

	_, err = ConverterFor[Void]().FromValue(protocol.Int(1))
	assert.ErrorIs(t, err, protocol.ErrWrongType)

	_, err = ConverterFor[bool]().FromValue(protocol.Void())
	assert.ErrorIs(t, err, protocol.ErrWrongType)

	assert.Equal(t, protocol.Str("x"), ConverterFor[string]().ToValue("x"))
	assert.Equal(t, protocol.Bool(false), ConverterFor[bool]().ToValue(false))
	assert.Equal(t, protocol.Void(), ConverterFor[Void]().ToValue(Void{}))

	assert.Equal(t, protocol.KindVoid, ConverterFor[Void]().Kind())
	assert.Equal(t, protocol.KindInt, ConverterFor[int32]().Kind())
	assert.Equal(t, protocol.KindBool, ConverterFor[bool]().Kind())
	assert.Equal(t, protocol.KindStr, ConverterFor[string]().Kind())
}
