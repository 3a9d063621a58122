package sandkasse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/havarnov/sandkasse/internal/guest"
	"github.com/havarnov/sandkasse/internal/logging"
	"github.com/havarnov/sandkasse/internal/monitoring"
	"github.com/havarnov/sandkasse/internal/shared/id"
	"github.com/havarnov/sandkasse/internal/substrate"
	"github.com/havarnov/sandkasse/protocol"
)

// Runtime owns one sandbox instance and the sessions living in it.
// A Runtime and its sessions must be used by one caller at a time; an
// overlapping call fails with ErrInvalidState.
type Runtime struct {
	id       id.RuntimeID
	codec    protocol.Codec
	inst     *substrate.Instance
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer

	mu       sync.RWMutex
	sessions map[uint32]*Session

	closed atomic.Bool
}

// New creates a runtime with DefaultConfig.
func New(ctx context.Context) (*Runtime, error) {
	return NewRuntime(ctx, DefaultConfig())
}

// NewRuntime instantiates the guest module. Failures are ErrInit errors.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeInit, "%v", err)
	}

	reg := cfg.Registerer
	var gatherer prometheus.Gatherer
	if reg == nil {
		private := prometheus.NewRegistry()
		reg, gatherer = private, private
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	r := &Runtime{
		id:       id.NewRuntimeID(),
		codec:    codec,
		logger:   logging.OrNop(cfg.Logger),
		gatherer: gatherer,
		sessions: make(map[uint32]*Session),
	}
	r.logger = r.logger.With(logging.Runtime(r.id.String()))

	if err := r.registerMetrics(reg); err != nil {
		return nil, err
	}

	inst, err := substrate.NewLinker().
		Provide(protocol.ImportRegisteredCallback, r.dispatch).
		Instantiate(ctx, guest.NewModule(codec), cfg.Limits)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeInit, "%v", err)
	}
	r.inst = inst

	r.logger.Info("runtime started",
		zap.String("codec", codec.Name()),
		zap.Duration("timeout", cfg.Limits.Timeout),
		zap.Int("max_host_calls", cfg.Limits.MaxHostCalls),
	)
	return r, nil
}

// registerMetrics turns the registration panic of a shared registry into an init error.
func (r *Runtime) registerMetrics(reg prometheus.Registerer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = protocol.Errorf(protocol.CodeInit, "register metrics: %v", p)
		}
	}()
	r.metrics = monitoring.NewMetrics(reg)
	return nil
}

// ID returns the runtime's unique identifier.
func (r *Runtime) ID() string {
	return r.id.String()
}

// Gatherer exposes the runtime metrics. It is nil when the configured
// Registerer is not also a Gatherer.
func (r *Runtime) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// CreateSession creates a session with its own global scope and callback namespace.
func (r *Runtime) CreateSession(ctx context.Context) (*Session, error) {
	if r.closed.Load() {
		return nil, protocol.Errorf(protocol.CodeInvalidState, "runtime is closed")
	}

	var resp protocol.NewContextResponse
	if err := r.call(ctx, protocol.ExportNewContext, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	s := newSession(r, resp.Context)

	r.mu.Lock()
	r.sessions[s.handle] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessionsActive(count)
	r.logger.Info("session opened", logging.Session(s.ID()), zap.Uint32("handle", s.handle))
	return s, nil
}

// Sessions returns the number of open sessions.
func (r *Runtime) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close closes every session and then the sandbox instance. Closing twice is a no-op.
func (r *Runtime) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.RLock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.RUnlock()

	var errs []error
	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	if err := r.inst.Close(ctx); err != nil {
		errs = append(errs, mapCallError("close", err))
	}
	// Contexts that refused to drop go away with the instance.
	for _, s := range open {
		s.release()
	}

	r.logger.Info("runtime closed", zap.Int("sessions", len(open)))
	return errors.Join(errs...)
}

func (r *Runtime) session(handle uint32) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[handle]
}

func (r *Runtime) forget(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.handle)
	count := len(r.sessions)
	r.mu.Unlock()
	r.metrics.SetSessionsActive(count)
}

// call runs one export with an encoded request and decodes its response.
func (r *Runtime) call(ctx context.Context, export string, req, resp protocol.Envelope) error {
	var in []byte
	if req != nil {
		var err error
		if in, err = protocol.Encode(r.codec, req); err != nil {
			return err
		}
	}

	before := r.inst.Stats()
	out, err := r.inst.Call(ctx, export, in)
	after := r.inst.Stats()
	r.metrics.AddBoundaryBytes(after.BytesIn-before.BytesIn, after.BytesOut-before.BytesOut)

	if err != nil {
		return mapCallError(export, err)
	}
	return protocol.Decode(r.codec, out, resp)
}

// dispatch serves the registered_callback import: it routes a CallRequest to
// the registry of the session that owns the calling context.
func (r *Runtime) dispatch(ctx context.Context, in []byte) ([]byte, error) {
	var req protocol.CallRequest
	if err := protocol.Decode(r.codec, in, &req); err != nil {
		r.logger.Warn("undecodable call request", zap.Error(err))
		return protocol.Encode(r.codec, &protocol.CallResponse{Error: protocol.AsError(err, protocol.CodeProtocol)})
	}

	s := r.session(req.Context)
	if s == nil {
		return protocol.Encode(r.codec, &protocol.CallResponse{
			Error: protocol.Errorf(protocol.CodeNotFound, "no session owns context %d", req.Context),
		})
	}

	v, err := s.registry.Invoke(req.Name, req.Args)
	if err != nil {
		return protocol.Encode(r.codec, &protocol.CallResponse{Error: protocol.AsError(err, protocol.CodeDispatch)})
	}
	return protocol.Encode(r.codec, &protocol.CallResponse{Value: v})
}

// mapCallError classifies substrate failures.
func mapCallError(export string, err error) error {
	switch {
	case errors.Is(err, substrate.ErrBusy):
		return protocol.Errorf(protocol.CodeInvalidState, "%s: runtime is already executing a call", export)
	case errors.Is(err, substrate.ErrClosed):
		return protocol.Errorf(protocol.CodeInvalidState, "%s: runtime is closed", export)
	case errors.Is(err, substrate.ErrTrap):
		return protocol.Errorf(protocol.CodeScript, "%v", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return protocol.Errorf(protocol.CodeScript, "%s aborted", export).
			WithCause(protocol.Errorf(protocol.CodeAborted, "%v", err))
	}
	return protocol.AsError(err, protocol.CodeProtocol)
}
