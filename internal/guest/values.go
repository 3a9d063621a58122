package guest

import (
	"math"
	"math/big"

	"github.com/dop251/goja"

	"github.com/havarnov/sandkasse/protocol"
)

// fromJS converts a script value using the ordered decision table:
//
//	undefined                 -> Void
//	null                      -> unrepresentable
//	object, array, function   -> unrepresentable
//	boolean                   -> Bool
//	number, integral in int32 -> Int
//	other numbers             -> unrepresentable
//	string                    -> Str
//	symbol, bigint, ...       -> unrepresentable
func fromJS(v goja.Value) (protocol.Value, bool) {
	if v == nil || goja.IsUndefined(v) {
		return protocol.Void(), true
	}
	if goja.IsNull(v) {
		return protocol.Void(), false
	}
	if _, ok := v.(*goja.Object); ok {
		return protocol.Void(), false
	}

	switch x := v.Export().(type) {
	case bool:
		return protocol.Bool(x), true
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return protocol.Void(), false
		}
		return protocol.Int(int32(x)), true
	case float64:
		if math.Trunc(x) != x || x < math.MinInt32 || x > math.MaxInt32 {
			return protocol.Void(), false
		}
		return protocol.Int(int32(x)), true
	case string:
		return protocol.Str(x), true
	}
	return protocol.Void(), false
}

// toJS converts a value produced by the host into the engine's representation.
func toJS(vm *goja.Runtime, v protocol.Value) goja.Value {
	switch v.Kind {
	case protocol.KindInt:
		return vm.ToValue(v.Int)
	case protocol.KindBool:
		return vm.ToValue(v.Bool)
	case protocol.KindStr:
		return vm.ToValue(v.Str)
	default:
		return goja.Undefined()
	}
}

// typeName describes a script value the way typeof would, for error messages.
func typeName(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); isFunc {
			return "function"
		}
		return "object"
	}
	if _, ok := v.(*goja.Symbol); ok {
		return "symbol"
	}
	switch x := v.Export().(type) {
	case bool:
		return "boolean"
	case int64:
		return "number"
	case float64:
		if math.IsNaN(x) {
			return "NaN"
		}
		return "number"
	case string:
		return "string"
	case *big.Int:
		return "bigint"
	}
	return "value"
}

// trimAbsent drops trailing Void arguments: a trailing undefined is the same as no argument.
func trimAbsent(args []protocol.Value) []protocol.Value {
	n := len(args)
	for n > 0 && args[n-1].IsVoid() {
		n--
	}
	return args[:n]
}
