package callback

import (
	"github.com/havarnov/sandkasse/protocol"
)

// Func is the erased form of a registered native function. It consumes the
// arguments a script supplied and produces one value.
type Func func(args []protocol.Value) (protocol.Value, error)

// Adapt0 erases a function without parameters.
func Adapt0[R any](r Converter[R], fn func() (R, error)) Func {
	if fn == nil {
		return nil
	}
	return func(values []protocol.Value) (protocol.Value, error) {
		if err := NewArgs(values).Done(); err != nil {
			return protocol.Void(), err
		}
		return result(r)(fn())
	}
}

// Adapt1 erases a function of one parameter.
func Adapt1[P1, R any](p1 Converter[P1], r Converter[R], fn func(P1) (R, error)) Func {
	if fn == nil {
		return nil
	}
	return func(values []protocol.Value) (protocol.Value, error) {
		args := NewArgs(values)
		a1, err := Pop(args, p1)
		if err != nil {
			return protocol.Void(), err
		}
		if err := args.Done(); err != nil {
			return protocol.Void(), err
		}
		return result(r)(fn(a1))
	}
}

// Adapt2 erases a function of two parameters.
func Adapt2[P1, P2, R any](p1 Converter[P1], p2 Converter[P2], r Converter[R], fn func(P1, P2) (R, error)) Func {
	if fn == nil {
		return nil
	}
	return func(values []protocol.Value) (protocol.Value, error) {
		args := NewArgs(values)
		a1, err := Pop(args, p1)
		if err != nil {
			return protocol.Void(), err
		}
		a2, err := Pop(args, p2)
		if err != nil {
			return protocol.Void(), err
		}
		if err := args.Done(); err != nil {
			return protocol.Void(), err
		}
		return result(r)(fn(a1, a2))
	}
}

// Adapt3 erases a function of three parameters.
func Adapt3[P1, P2, P3, R any](p1 Converter[P1], p2 Converter[P2], p3 Converter[P3], r Converter[R], fn func(P1, P2, P3) (R, error)) Func {
	if fn == nil {
		return nil
	}
	return func(values []protocol.Value) (protocol.Value, error) {
		args := NewArgs(values)
		a1, err := Pop(args, p1)
		if err != nil {
			return protocol.Void(), err
		}
		a2, err := Pop(args, p2)
		if err != nil {
			return protocol.Void(), err
		}
		a3, err := Pop(args, p3)
		if err != nil {
			return protocol.Void(), err
		}
		if err := args.Done(); err != nil {
			return protocol.Void(), err
		}
		return result(r)(fn(a1, a2, a3))
	}
}

func result[R any](r Converter[R]) func(R, error) (protocol.Value, error) {
	return func(out R, err error) (protocol.Value, error) {
		if err != nil {
			return protocol.Void(), err
		}
		return r.ToValue(out), nil
	}
}

// Func0 adapts func() R.
func Func0[R Type](fn func() R) Func {
	if fn == nil {
		return nil
	}
	return Adapt0(ConverterFor[R](), func() (R, error) { return fn(), nil })
}

// Func1 adapts func(P1) R.
func Func1[P1, R Type](fn func(P1) R) Func {
	if fn == nil {
		return nil
	}
	return Adapt1(ConverterFor[P1](), ConverterFor[R](), func(a P1) (R, error) { return fn(a), nil })
}

// Func2 adapts func(P1, P2) R.
func Func2[P1, P2, R Type](fn func(P1, P2) R) Func {
	if fn == nil {
		return nil
	}
	return Adapt2(ConverterFor[P1](), ConverterFor[P2](), ConverterFor[R](),
		func(a P1, b P2) (R, error) { return fn(a, b), nil })
}

// Func3 adapts func(P1, P2, P3) R.
func Func3[P1, P2, P3, R Type](fn func(P1, P2, P3) R) Func {
	if fn == nil {
		return nil
	}
	return Adapt3(ConverterFor[P1](), ConverterFor[P2](), ConverterFor[P3](), ConverterFor[R](),
		func(a P1, b P2, c P3) (R, error) { return fn(a, b, c), nil })
}

// Try0 adapts func() (R, error). A returned error becomes a dispatch error.
func Try0[R Type](fn func() (R, error)) Func {
	return Adapt0(ConverterFor[R](), fn)
}

// Try1 adapts func(P1) (R, error).
func Try1[P1, R Type](fn func(P1) (R, error)) Func {
	return Adapt1(ConverterFor[P1](), ConverterFor[R](), fn)
}

// Try2 adapts func(P1, P2) (R, error).
func Try2[P1, P2, R Type](fn func(P1, P2) (R, error)) Func {
	return Adapt2(ConverterFor[P1](), ConverterFor[P2](), ConverterFor[R](), fn)
}

// Try3 adapts func(P1, P2, P3) (R, error).
func Try3[P1, P2, P3, R Type](fn func(P1, P2, P3) (R, error)) Func {
	return Adapt3(ConverterFor[P1](), ConverterFor[P2](), ConverterFor[P3](), ConverterFor[R](), fn)
}

// Proc0 adapts func() without result; the script sees undefined.
func Proc0(fn func()) Func {
	if fn == nil {
		return nil
	}
	return Adapt0(VoidConverter, func() (Void, error) { fn(); return Void{}, nil })
}

// Proc1 adapts func(P1) without result.
func Proc1[P1 Type](fn func(P1)) Func {
	if fn == nil {
		return nil
	}
	return Adapt1(ConverterFor[P1](), VoidConverter, func(a P1) (Void, error) { fn(a); return Void{}, nil })
}

// Proc2 adapts func(P1, P2) without result.
func Proc2[P1, P2 Type](fn func(P1, P2)) Func {
	if fn == nil {
		return nil
	}
	return Adapt2(ConverterFor[P1](), ConverterFor[P2](), VoidConverter,
		func(a P1, b P2) (Void, error) { fn(a, b); return Void{}, nil })
}
