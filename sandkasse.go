/*
Package sandkasse runs untrusted JavaScript in an isolated sandbox and lets
it call back into typed Go functions.

A Runtime owns one sandbox instance; each Session is an independent global
scope inside it with its own set of callbacks:

	rt, err := sandkasse.New(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	s, err := rt.CreateSession(ctx)
	if err != nil {
		return err
	}

	err = s.Register(ctx, "add", callback.Func2(func(a, b int32) int32 { return a + b }))
	n, err := sandkasse.Eval[int32](ctx, s, "add(40, 2)") // 42

Only the values of the closed Value model cross the boundary: void, 32-bit
integers, booleans and strings. Script calls to a registered name run the Go
function synchronously, on the same logical call stack as the eval that
triggered them.

# Errors

Failures inside the sandbox and at the boundary are *Error values whose code
can be tested with errors.Is:

	ErrInit                 the sandbox failed to start
	ErrProtocol             an envelope could not be encoded or decoded
	ErrScript               exception, syntax error or abort inside the script
	ErrAborted              cause of an ErrScript for timeouts and exhausted budgets
	ErrWrongType            the completion value does not match the requested type
	ErrArityOrTypeMismatch  script arguments do not fit a registered function
	ErrNotFound             call of an unregistered name
	ErrInvalidState         use of a closed session or runtime, or overlapping use
	ErrDispatch             a registered function failed or panicked

Register checks its arguments before anything reaches the sandbox and fails
with plain errors instead:

	ErrEmptyName            the callback name is empty
	ErrInvalidName          the name is not a script identifier, or is reserved
	ErrNilFunc              the callback function is nil
*/
package sandkasse

import (
	"github.com/havarnov/sandkasse/callback"
	"github.com/havarnov/sandkasse/protocol"
)

type (
	Value = protocol.Value
	Kind  = protocol.Kind
	Error = protocol.Error
	Code  = protocol.Code
	Void  = protocol.VoidType
)

const (
	KindVoid = protocol.KindVoid
	KindInt  = protocol.KindInt
	KindBool = protocol.KindBool
	KindStr  = protocol.KindStr
)

var (
	ErrInit                = protocol.ErrInit
	ErrProtocol            = protocol.ErrProtocol
	ErrScript              = protocol.ErrScript
	ErrAborted             = protocol.ErrAborted
	ErrWrongType           = protocol.ErrWrongType
	ErrArityOrTypeMismatch = protocol.ErrArityOrTypeMismatch
	ErrNotFound            = protocol.ErrNotFound
	ErrInvalidState        = protocol.ErrInvalidState
	ErrUnrepresentable     = protocol.ErrUnrepresentable
	ErrDispatch            = protocol.ErrDispatch

	ErrEmptyName   = callback.ErrEmptyName
	ErrInvalidName = callback.ErrInvalidName
	ErrNilFunc     = callback.ErrNilFunc
)
