package callback

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/havarnov/sandkasse/protocol"
)

var (
	ErrEmptyName   = errors.New("callback name cannot be empty")
	ErrInvalidName = errors.New("callback name must be a script identifier")
	ErrNilFunc     = errors.New("callback function cannot be nil")
)

// NamePattern matches the names a script can call as a plain global function.
var NamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// MaxNameLength bounds callback names.
const MaxNameLength = 256

// reservedNames are script keywords and read-only globals; a binding under
// one of them could never be called or would not be installed at all.
var reservedNames = map[string]struct{}{
	"await": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {},
	"continue": {}, "debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {},
	"enum": {}, "export": {}, "extends": {}, "false": {}, "finally": {}, "for": {},
	"function": {}, "if": {}, "implements": {}, "import": {}, "in": {}, "instanceof": {},
	"interface": {}, "let": {}, "new": {}, "null": {}, "package": {}, "private": {},
	"protected": {}, "public": {}, "return": {}, "static": {}, "super": {}, "switch": {},
	"this": {}, "throw": {}, "true": {}, "try": {}, "typeof": {}, "var": {}, "void": {},
	"while": {}, "with": {}, "yield": {},
	"undefined": {}, "NaN": {}, "Infinity": {},
}

// Observer is notified after every invocation that found a registered entry.
type Observer func(name string, duration time.Duration, err error)

// Registry maps registered names to erased callables.
//
// Replacing an entry affects only invocations that start after Register returns;
// an invocation holds the entry it looked up and runs without the lock.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]Func
	observer Observer

	invocations atomic.Uint64
	failures    atomic.Uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Func)}
}

// Register inserts or replaces the entry for name
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength || !NamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := reservedNames[name]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if fn == nil {
		return ErrNilFunc
	}

	r.mu.Lock()
	r.entries[name] = fn
	r.mu.Unlock()
	return nil
}

// SetObserver installs the invocation observer. A nil observer disables it.
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

// Lookup returns the entry registered under name
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[name]
	return fn, ok
}

// Len returns the number of registered names
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Invoke calls the entry registered under name with the script-supplied arguments.
// Panics and errors of the native function come back as dispatch errors.
func (r *Registry) Invoke(name string, args []protocol.Value) (protocol.Value, error) {
	r.mu.RLock()
	fn, ok := r.entries[name]
	observer := r.observer
	r.mu.RUnlock()

	if !ok {
		return protocol.Void(), protocol.Errorf(protocol.CodeNotFound, "callback %q is not registered", name)
	}

	r.invocations.Add(1)
	start := time.Now()
	out, err := call(name, fn, args)
	if err != nil {
		r.failures.Add(1)
	}
	if observer != nil {
		observer(name, time.Since(start), err)
	}
	return out, err
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	return map[string]interface{}{
		"total_callbacks": r.Len(),
		"invocations":     r.invocations.Load(),
		"failures":        r.failures.Load(),
	}
}

func call(name string, fn Func, args []protocol.Value) (out protocol.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = protocol.Void()
			err = protocol.Errorf(protocol.CodeDispatch, "callback %q panicked: %v", name, p)
		}
	}()

	out, err = fn(args)
	if err != nil {
		return protocol.Void(), classify(name, err)
	}
	if verr := out.Validate(); verr != nil {
		return protocol.Void(), protocol.Errorf(protocol.CodeDispatch, "callback %q returned an invalid value: %v", name, verr)
	}
	return out, nil
}

// classify keeps typed failures and files everything else under dispatch.
func classify(name string, err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return &protocol.Error{Code: perr.Code, Message: name + ": " + perr.Message, Cause: perr.Cause}
	}
	return protocol.Errorf(protocol.CodeDispatch, "callback %q failed: %v", name, err)
}
