package sandkasse

import (
	"context"

	"github.com/havarnov/sandkasse/callback"
)

// Eval evaluates source in s and converts its completion value to V.
// Use Void for scripts that complete without a value.
//
//	n, err := sandkasse.Eval[int32](ctx, s, "40 + 2")
func Eval[V callback.Type](ctx context.Context, s *Session, source string) (V, error) {
	return EvalWith(ctx, s, callback.ConverterFor[V](), source)
}

// EvalWith is Eval with an explicit converter, for native types outside the built-in set.
func EvalWith[V any](ctx context.Context, s *Session, conv callback.Converter[V], source string) (V, error) {
	var zero V
	v, err := s.EvalValue(ctx, conv.Kind(), source)
	if err != nil {
		return zero, err
	}
	return conv.FromValue(v)
}
