// Package callback turns native Go functions into uniformly invocable handlers
// that a sandboxed script can call by name.
//
// Adapters are generic over the parameter and result types, so the shape of a
// native function is checked at compile time. The produced Func has one contract
// regardless of the declared signature: ordered script values in, one value out.
// A script-supplied argument list that does not fit the shape is rejected at
// invocation with an ArityOrTypeMismatch error.
//
// Shapes:
//   - Func0..Func3: func(...) R
//   - Try0..Try3:   func(...) (R, error)
//   - Proc0..Proc2: func(...) without result
//   - Adapt0..Adapt3: any of the above with explicit converters, for host-chosen types
//
// Example Usage:
//
//	reg := callback.NewRegistry()
//	reg.Register("add", callback.Func2(func(a, b int32) int32 { return a + b }))
//	out, err := reg.Invoke("add", []protocol.Value{protocol.Int(42), protocol.Int(22)})
package callback
