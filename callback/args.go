package callback

import (
	"github.com/havarnov/sandkasse/protocol"
)

// Args is the ordered argument list of one call. Parameters are taken from the
// front, strictly left to right.
//
// A Void argument counts as absent: a non-void parameter cannot be filled from it,
// and trailing Void arguments do not count as extra arguments.
type Args struct {
	values []protocol.Value
	pos    int
}

// NewArgs wraps the arguments of a CallRequest.
func NewArgs(values []protocol.Value) *Args {
	return &Args{values: values}
}

// Pop takes the head argument as T.
func Pop[T any](a *Args, conv Converter[T]) (T, error) {
	var zero T
	index := a.pos + 1

	if a.pos >= len(a.values) || a.values[a.pos].IsVoid() {
		if a.pos < len(a.values) {
			a.pos++
		}
		if conv.Kind() == protocol.KindVoid {
			return zero, nil
		}
		return zero, protocol.Errorf(protocol.CodeArityOrTypeMismatch,
			"argument %d (%s) is missing", index, conv.Kind())
	}

	head := a.values[a.pos]
	a.pos++
	v, err := conv.FromValue(head)
	if err != nil {
		return zero, protocol.Errorf(protocol.CodeArityOrTypeMismatch,
			"argument %d: expected %s, got %s", index, conv.Kind(), head.Kind)
	}
	return v, nil
}

// Done fails when non-void arguments are left after all parameters were taken.
func (a *Args) Done() error {
	for i := a.pos; i < len(a.values); i++ {
		if !a.values[i].IsVoid() {
			return protocol.Errorf(protocol.CodeArityOrTypeMismatch,
				"expected %d arguments, got %d", a.pos, lastPresent(a.values))
		}
	}
	return nil
}

func lastPresent(values []protocol.Value) int {
	n := len(values)
	for n > 0 && values[n-1].IsVoid() {
		n--
	}
	return n
}
