package substrate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Linker collects host imports and instantiates modules against them.
type Linker struct {
	mu      sync.Mutex
	imports map[string]HostFunc
}

// NewLinker creates a linker without imports
func NewLinker() *Linker {
	return &Linker{imports: make(map[string]HostFunc)}
}

// Provide registers the host side of an import. A later call for the same name replaces it.
func (l *Linker) Provide(name string, fn HostFunc) *Linker {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.imports[name] = fn
	return l
}

// Instantiate links m against the provided imports and creates an instance.
func (l *Linker) Instantiate(ctx context.Context, m Module, limits Limits) (*Instance, error) {
	l.mu.Lock()
	imports := make(map[string]HostFunc, len(l.imports))
	for name, fn := range l.imports {
		imports[name] = fn
	}
	l.mu.Unlock()

	for _, name := range m.Imports() {
		if _, ok := imports[name]; !ok {
			return nil, fmt.Errorf("instantiate %s: %w: %s", m.Name(), ErrMissingImport, name)
		}
	}

	inst := &Instance{
		module:  m.Name(),
		imports: imports,
		limits:  limits,
	}

	guest, err := m.Instantiate(ctx, hostSide{inst}, limits)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", m.Name(), err)
	}
	inst.guest = guest
	inst.exports = guest.Exports()
	return inst, nil
}

// Stats holds boundary traffic counters of an instance.
type Stats struct {
	Calls     uint64 // Export calls
	HostCalls uint64 // Import calls
	BytesIn   uint64 // Bytes sent host -> guest
	BytesOut  uint64 // Bytes sent guest -> host
}

// Instance is one isolated execution unit. It runs one export call at a time;
// an overlapping or re-entrant export call fails with ErrBusy.
type Instance struct {
	module  string
	guest   Guest
	exports map[string]Export
	imports map[string]HostFunc
	limits  Limits

	busy   atomic.Bool
	closed atomic.Bool

	// hostCalls counts imports of the running export call; only touched while busy.
	hostCalls int

	calls, importCalls, bytesIn, bytesOut atomic.Uint64
}

// Limits returns the limits the instance was created with.
func (i *Instance) Limits() Limits {
	return i.limits
}

// Call invokes a guest export with a copy of in and returns a copy of its output.
func (i *Instance) Call(ctx context.Context, name string, in []byte) (out []byte, err error) {
	if i.closed.Load() {
		return nil, ErrClosed
	}
	export, ok := i.exports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExport, name)
	}
	if !i.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer i.busy.Store(false)

	i.hostCalls = 0
	i.calls.Add(1)
	i.bytesIn.Add(uint64(len(in)))

	if i.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.limits.Timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("%w in %s.%s: %v", ErrTrap, i.module, name, p)
		}
	}()

	res, err := export(ctx, clone(in))
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", i.module, name, err)
	}
	i.bytesOut.Add(uint64(len(res)))
	return clone(res), nil
}

// Close releases the guest. Closing a busy instance fails with ErrBusy.
func (i *Instance) Close(ctx context.Context) error {
	if i.busy.Load() {
		return ErrBusy
	}
	if !i.closed.CompareAndSwap(false, true) {
		return nil
	}
	return i.guest.Close()
}

// Closed reports whether Close has been called.
func (i *Instance) Closed() bool {
	return i.closed.Load()
}

// Stats returns a snapshot of the traffic counters.
func (i *Instance) Stats() Stats {
	return Stats{
		Calls:     i.calls.Load(),
		HostCalls: i.importCalls.Load(),
		BytesIn:   i.bytesIn.Load(),
		BytesOut:  i.bytesOut.Load(),
	}
}

// hostSide is what the guest sees of the instance.
type hostSide struct {
	i *Instance
}

func (h hostSide) CallImport(ctx context.Context, name string, in []byte) (out []byte, err error) {
	i := h.i
	fn, ok := i.imports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingImport, name)
	}
	if i.limits.MaxHostCalls > 0 && i.hostCalls >= i.limits.MaxHostCalls {
		return nil, fmt.Errorf("%w: limit is %d", ErrBudgetExceeded, i.limits.MaxHostCalls)
	}
	i.hostCalls++
	i.importCalls.Add(1)
	i.bytesOut.Add(uint64(len(in)))

	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("%w in host import %s: %v", ErrTrap, name, p)
		}
	}()

	res, err := fn(ctx, clone(in))
	if err != nil {
		return nil, err
	}
	i.bytesIn.Add(uint64(len(res)))
	return clone(res), nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
