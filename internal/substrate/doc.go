/*
Package substrate is the isolation boundary between the host and a guest module.

A Module is compiled once and instantiated through a Linker that provides the
host imports the module declares. The resulting Instance is the only way in:

	linker := substrate.NewLinker().Provide("registered_callback", handler)
	inst, err := linker.Instantiate(ctx, module, substrate.DefaultLimits())
	out, err := inst.Call(ctx, "eval", request)

Only bytes cross the boundary, copied in both directions, so neither side can
hold a reference into the other. Guest panics are converted to ErrTrap. Each
export call runs to completion before the next one may start; import calls
made by the guest during an export call run synchronously on the same stack.

Limits apply per export call: a wall-clock deadline carried by the context the
guest receives, and a budget on the number of import calls.
*/
package substrate
