package sandkasse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/havarnov/sandkasse/callback"
	"github.com/havarnov/sandkasse/internal/logging"
	"github.com/havarnov/sandkasse/internal/monitoring"
	"github.com/havarnov/sandkasse/internal/shared/id"
	"github.com/havarnov/sandkasse/protocol"
)

// Session is one global scope inside the sandbox with its own callback namespace.
type Session struct {
	rt       *Runtime
	id       id.SessionID
	handle   uint32
	registry *callback.Registry
	logger   *zap.Logger

	closeMu sync.Mutex
	closed  atomic.Bool
}

func newSession(rt *Runtime, handle uint32) *Session {
	s := &Session{
		rt:       rt,
		id:       id.NewSessionID(),
		handle:   handle,
		registry: callback.NewRegistry(),
	}
	s.logger = rt.logger.With(logging.Session(s.id.String()))
	s.registry.SetObserver(s.observe)
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id.String()
}

// Handle returns the resource handle of the session's context in the sandbox.
func (s *Session) Handle() uint32 {
	return s.handle
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Callbacks returns the names registered in this session.
func (s *Session) Callbacks() []string {
	return s.registry.Names()
}

// Register makes fn callable from script as a global function called name.
// Registering a name again replaces the previous function for every call made
// after Register returns.
func (s *Session) Register(ctx context.Context, name string, fn callback.Func) error {
	if s.closed.Load() {
		return s.closedError()
	}
	// The entry must exist before script can see the name.
	if err := s.registry.Register(name, fn); err != nil {
		return err
	}

	var ack protocol.Ack
	if err := s.rt.call(ctx, protocol.ExportRegister, &protocol.RegisterRequest{Context: s.handle, Name: name}, &ack); err != nil {
		return err
	}
	if ack.Error != nil {
		return ack.Error
	}
	s.logger.Debug("callback registered", logging.Callback(name))
	return nil
}

// EvalValue evaluates source and returns its completion value, which must be of kind.
func (s *Session) EvalValue(ctx context.Context, kind protocol.Kind, source string) (protocol.Value, error) {
	if s.closed.Load() {
		return protocol.Void(), s.closedError()
	}

	timer := monitoring.NewTimer()
	v, err := s.eval(ctx, kind, source)
	elapsed := timer.Elapsed()
	s.rt.metrics.RecordEval(kind.String(), err, elapsed)

	if err != nil {
		s.logger.Debug("eval failed", logging.Kind(kind), zap.Duration("duration", elapsed), zap.Error(err))
		return protocol.Void(), err
	}
	s.logger.Debug("eval", logging.Kind(kind), zap.Duration("duration", elapsed))
	return v, nil
}

func (s *Session) eval(ctx context.Context, kind protocol.Kind, source string) (protocol.Value, error) {
	req := &protocol.EvalRequest{Context: s.handle, Source: source, ResponseType: kind}
	var resp protocol.EvalResponse
	if err := s.rt.call(ctx, protocol.ExportEval, req, &resp); err != nil {
		return protocol.Void(), err
	}
	if resp.Error != nil {
		return protocol.Void(), resp.Error
	}
	if resp.Value.Kind != kind {
		return protocol.Void(), protocol.Errorf(protocol.CodeWrongType, "expected %s, got %s", kind, resp.Value.Kind)
	}
	return resp.Value, nil
}

// Close releases the session's context. Further operations fail with ErrInvalidState.
// When the sandbox refuses the release, for example from inside one of the
// session's own callbacks, the session stays open and Close can be retried.
func (s *Session) Close(ctx context.Context) error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed.Load() {
		return nil
	}

	var ack protocol.Ack
	err := s.rt.call(ctx, protocol.ExportDropContext, &protocol.DropContextRequest{Context: s.handle}, &ack)
	if err == nil && ack.Error != nil {
		err = ack.Error
	}
	if err != nil {
		s.logger.Warn("session close failed", zap.Error(err))
		return err
	}

	s.release()
	stats := s.registry.Stats()
	s.logger.Info("session closed",
		zap.Any("callbacks", stats["total_callbacks"]),
		zap.Any("invocations", stats["invocations"]),
		zap.Any("failures", stats["failures"]),
	)
	return nil
}

// release marks the session closed and detaches it from the runtime.
func (s *Session) release() {
	if s.closed.CompareAndSwap(false, true) {
		s.rt.forget(s)
	}
}

func (s *Session) closedError() error {
	return protocol.Errorf(protocol.CodeInvalidState, "session %s is closed", s.id)
}

func (s *Session) observe(name string, duration time.Duration, err error) {
	s.rt.metrics.RecordCallback(err, duration)
	if err != nil {
		s.logger.Warn("callback failed", logging.Callback(name), zap.Duration("duration", duration), zap.Error(err))
		return
	}
	s.logger.Debug("callback", logging.Callback(name), zap.Duration("duration", duration))
}
