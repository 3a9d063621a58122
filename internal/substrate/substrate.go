package substrate

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("instance is closed")
	ErrBusy           = errors.New("instance is already executing a call")
	ErrTrap           = errors.New("guest trapped")
	ErrBudgetExceeded = errors.New("host call budget exceeded")
	ErrUnknownExport  = errors.New("unknown export")
	ErrMissingImport  = errors.New("missing import")
)

// Limits bound what a single export call may consume.
type Limits struct {
	Timeout          time.Duration // Wall-clock limit per export call, 0 disables it
	MaxCallStackSize int           // Script engine call stack depth, 0 keeps the engine default
	MaxHostCalls     int           // Import calls allowed per export call, 0 is unlimited
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
	}
}

// Export is a guest function callable by the host. Input and output are
// serialised envelopes owned by the callee.
type Export func(ctx context.Context, in []byte) ([]byte, error)

// HostFunc is a host function provided to the guest as an import.
type HostFunc func(ctx context.Context, in []byte) ([]byte, error)

// Host is the only capability an instantiated guest receives.
type Host interface {
	CallImport(ctx context.Context, name string, in []byte) ([]byte, error)
}

// Guest is an instantiated module.
type Guest interface {
	Exports() map[string]Export
	Close() error
}

// Module is a compiled guest, instantiated once per Instance.
type Module interface {
	Name() string
	// Imports lists the host functions the guest links against.
	Imports() []string
	Instantiate(ctx context.Context, host Host, limits Limits) (Guest, error)
}
