package guest

import (
	"context"
	"errors"
	"sync"

	"github.com/dop251/goja"

	"github.com/havarnov/sandkasse/internal/substrate"
	"github.com/havarnov/sandkasse/protocol"
)

// ModuleName identifies the guest module at the boundary.
const ModuleName = "sandkasse-guest"

// Module is the goja-backed guest. It is stateless; all state lives in the
// Dispatcher created by Instantiate.
type Module struct {
	codec protocol.Codec
}

// NewModule creates a guest module speaking the given codec. A nil codec selects MessagePack.
func NewModule(codec protocol.Codec) *Module {
	if codec == nil {
		codec = protocol.MsgPack
	}
	return &Module{codec: codec}
}

// Name implements substrate.Module.
func (m *Module) Name() string { return ModuleName }

// Imports implements substrate.Module.
func (m *Module) Imports() []string {
	return []string{protocol.ImportRegisteredCallback}
}

// Instantiate implements substrate.Module.
func (m *Module) Instantiate(ctx context.Context, host substrate.Host, limits substrate.Limits) (substrate.Guest, error) {
	if host == nil {
		return nil, errors.New("guest requires a host")
	}
	return &Dispatcher{
		codec:    m.codec,
		host:     host,
		limits:   limits,
		contexts: make(map[uint32]*jsContext),
		next:     1,
	}, nil
}

// Dispatcher owns the resource table of script contexts and serves the module's exports.
type Dispatcher struct {
	codec  protocol.Codec
	host   substrate.Host
	limits substrate.Limits

	mu       sync.Mutex
	contexts map[uint32]*jsContext
	next     uint32
}

// Exports implements substrate.Guest.
func (d *Dispatcher) Exports() map[string]substrate.Export {
	return map[string]substrate.Export{
		protocol.ExportNewContext:  d.newContext,
		protocol.ExportDropContext: d.dropContext,
		protocol.ExportEval:        d.eval,
		protocol.ExportRegister:    d.register,
	}
}

// Contexts returns the number of live contexts.
func (d *Dispatcher) Contexts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contexts)
}

// Close drops every context.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for handle, c := range d.contexts {
		c.close()
		delete(d.contexts, handle)
	}
	return nil
}

func (d *Dispatcher) newContext(ctx context.Context, _ []byte) ([]byte, error) {
	d.mu.Lock()
	handle := d.next
	if handle == 0 {
		d.mu.Unlock()
		return protocol.Encode(d.codec, &protocol.NewContextResponse{
			Error: protocol.Errorf(protocol.CodeInvalidState, "context handles exhausted"),
		})
	}
	d.next++
	d.mu.Unlock()

	c := newJSContext(d, handle)
	if err := c.setupGlobals(); err != nil {
		return protocol.Encode(d.codec, &protocol.NewContextResponse{
			Error: protocol.Errorf(protocol.CodeInit, "setup context: %v", err),
		})
	}

	d.mu.Lock()
	d.contexts[handle] = c
	d.mu.Unlock()

	return protocol.Encode(d.codec, &protocol.NewContextResponse{Context: handle})
}

func (d *Dispatcher) dropContext(ctx context.Context, in []byte) ([]byte, error) {
	var req protocol.DropContextRequest
	if err := protocol.Decode(d.codec, in, &req); err != nil {
		return protocol.Encode(d.codec, &protocol.Ack{Error: protocol.AsError(err, protocol.CodeProtocol)})
	}

	d.mu.Lock()
	c, ok := d.contexts[req.Context]
	delete(d.contexts, req.Context)
	d.mu.Unlock()

	if !ok {
		return protocol.Encode(d.codec, &protocol.Ack{Error: unknownContext(req.Context)})
	}
	c.close()
	return protocol.Encode(d.codec, &protocol.Ack{})
}

func (d *Dispatcher) eval(ctx context.Context, in []byte) ([]byte, error) {
	var req protocol.EvalRequest
	if err := protocol.Decode(d.codec, in, &req); err != nil {
		return protocol.Encode(d.codec, &protocol.EvalResponse{Error: protocol.AsError(err, protocol.CodeProtocol)})
	}

	c, perr := d.lookup(req.Context)
	if perr != nil {
		return protocol.Encode(d.codec, &protocol.EvalResponse{Error: perr})
	}

	v, perr := c.eval(ctx, req.Source, req.ResponseType)
	if perr != nil {
		return protocol.Encode(d.codec, &protocol.EvalResponse{Error: perr})
	}
	return protocol.Encode(d.codec, &protocol.EvalResponse{Value: v})
}

func (d *Dispatcher) register(ctx context.Context, in []byte) ([]byte, error) {
	var req protocol.RegisterRequest
	if err := protocol.Decode(d.codec, in, &req); err != nil {
		return protocol.Encode(d.codec, &protocol.Ack{Error: protocol.AsError(err, protocol.CodeProtocol)})
	}

	c, perr := d.lookup(req.Context)
	if perr != nil {
		return protocol.Encode(d.codec, &protocol.Ack{Error: perr})
	}
	if err := c.install(req.Name); err != nil {
		return protocol.Encode(d.codec, &protocol.Ack{
			Error: protocol.Errorf(protocol.CodeInvalidState, "install %q: %v", req.Name, err),
		})
	}
	return protocol.Encode(d.codec, &protocol.Ack{})
}

func (d *Dispatcher) lookup(handle uint32) (*jsContext, *protocol.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.contexts[handle]
	if !ok {
		return nil, unknownContext(handle)
	}
	return c, nil
}

func unknownContext(handle uint32) *protocol.Error {
	return protocol.Errorf(protocol.CodeInvalidState, "context %d does not exist", handle)
}

// jsContext is one independent global scope.
type jsContext struct {
	d      *Dispatcher
	handle uint32
	vm     *goja.Runtime

	// ctx is the context of the running eval; nil between evals.
	ctx context.Context

	// faults maps the error objects thrown by forwarders during the running eval
	// to the host failure they report.
	faults map[*goja.Object]*protocol.Error
}

func newJSContext(d *Dispatcher, handle uint32) *jsContext {
	vm := goja.New()
	if d.limits.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(d.limits.MaxCallStackSize)
	}
	return &jsContext{
		d:      d,
		handle: handle,
		vm:     vm,
		faults: make(map[*goja.Object]*protocol.Error),
	}
}

// setupGlobals removes host-ish globals a script might look for.
func (c *jsContext) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := c.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}
	return nil
}

func (c *jsContext) close() {
	c.vm.Interrupt("context dropped")
	c.faults = nil
}

func (c *jsContext) install(name string) error {
	return c.vm.Set(name, c.forwarder(name))
}

func (c *jsContext) eval(ctx context.Context, source string, want protocol.ResponseType) (protocol.Value, *protocol.Error) {
	result, perr := c.run(ctx, source)
	if perr != nil {
		return protocol.Void(), perr
	}

	v, ok := fromJS(result)
	if !ok {
		return protocol.Void(), protocol.Errorf(protocol.CodeWrongType,
			"expected %s, got %s", want, typeName(result))
	}
	if v.Kind != want {
		return protocol.Void(), protocol.Errorf(protocol.CodeWrongType,
			"expected %s, got %s", want, v.Kind)
	}
	return v, nil
}

// run executes source under the watchdog. The VM is interrupted when ctx ends.
func (c *jsContext) run(ctx context.Context, source string) (result goja.Value, perr *protocol.Error) {
	c.ctx = ctx
	clear(c.faults)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			c.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	defer func() {
		close(done)
		<-stopped
		c.vm.ClearInterrupt()
		c.ctx = nil

		if p := recover(); p != nil {
			result = nil
			perr = protocol.Errorf(protocol.CodeScript, "engine panic: %v", p)
		}
	}()

	val, err := c.vm.RunString(source)
	if err != nil {
		return nil, c.scriptError(err)
	}
	return val, nil
}

func (c *jsContext) scriptError(err error) *protocol.Error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return protocol.Errorf(protocol.CodeScript, "execution aborted").
			WithCause(protocol.Errorf(protocol.CodeAborted, "%v", interrupted.Value()))
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return protocol.Errorf(protocol.CodeScript, "RangeError: maximum call stack size exceeded")
	}

	var ex *goja.Exception
	if !errors.As(err, &ex) || ex.Value() == nil {
		return protocol.Errorf(protocol.CodeScript, "%s", err.Error())
	}
	// The thrown value alone; the stack may name native Go frames.
	perr := protocol.Errorf(protocol.CodeScript, "%s", ex.Value().String())
	if obj, ok := ex.Value().(*goja.Object); ok {
		if fault, ok := c.faults[obj]; ok {
			return perr.WithCause(fault)
		}
	}
	return perr
}

// forwarder builds the script-visible function that calls the host callback name.
func (c *jsContext) forwarder(name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		v, fault, abort := c.forward(name, call.Arguments)
		switch {
		case abort != nil:
			// The interrupt fires before the next instruction; scripts cannot catch it.
			c.vm.Interrupt(abort.Error())
			return goja.Undefined()
		case fault != nil:
			panic(c.throw(name, fault))
		}
		return toJS(c.vm, v)
	}
}

func (c *jsContext) forward(name string, jsArgs []goja.Value) (v protocol.Value, fault *protocol.Error, abort error) {
	defer func() {
		if p := recover(); p != nil {
			v, fault, abort = protocol.Void(), protocol.Errorf(protocol.CodeDispatch, "forwarding %q panicked: %v", name, p), nil
		}
	}()

	args := make([]protocol.Value, 0, len(jsArgs))
	for i, arg := range jsArgs {
		av, ok := fromJS(arg)
		if !ok {
			return protocol.Void(), protocol.Errorf(protocol.CodeUnrepresentable,
				"argument %d of %s: %s cannot cross the boundary", i, name, typeName(arg)), nil
		}
		args = append(args, av)
	}

	in, err := protocol.Encode(c.d.codec, &protocol.CallRequest{
		Context: c.handle,
		Name:    name,
		Args:    trimAbsent(args),
	})
	if err != nil {
		return protocol.Void(), protocol.AsError(err, protocol.CodeProtocol), nil
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := c.d.host.CallImport(ctx, protocol.ImportRegisteredCallback, in)
	if err != nil {
		if errors.Is(err, substrate.ErrBudgetExceeded) {
			return protocol.Void(), nil, err
		}
		return protocol.Void(), protocol.Errorf(protocol.CodeDispatch, "call %q: %v", name, err), nil
	}

	var resp protocol.CallResponse
	if err := protocol.Decode(c.d.codec, out, &resp); err != nil {
		return protocol.Void(), protocol.AsError(err, protocol.CodeProtocol), nil
	}
	if resp.Error != nil {
		return protocol.Void(), resp.Error, nil
	}
	return resp.Value, nil, nil
}

// throw builds the TypeError a forwarder raises for fault and records it so an
// uncaught rethrow can be traced back to the host failure.
func (c *jsContext) throw(name string, fault *protocol.Error) *goja.Object {
	obj := c.vm.NewTypeError(fault.Error())
	_ = obj.Set("code", string(fault.Code))
	_ = obj.Set("callback", name)
	if c.faults != nil {
		c.faults[obj] = fault
	}
	return obj
}
