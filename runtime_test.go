package sandkasse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/havarnov/sandkasse/callback"
)

func newTestRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	rt, err := NewRuntime(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func newTestSession(t *testing.T, rt *Runtime) *Session {
	t.Helper()
	s, err := rt.CreateSession(context.Background())
	require.NoError(t, err)
	return s
}

func TestNewRuntime(t *testing.T) {
	rt, err := New(context.Background())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	assert.NotEmpty(t, rt.ID())
	assert.NotNil(t, rt.Gatherer())
	assert.Equal(t, 0, rt.Sessions())
}

func TestNewRuntimeInitErrors(t *testing.T) {
	t.Run("unknown codec", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Codec = "xml"
		_, err := NewRuntime(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrInit)
	})

	t.Run("shared registry", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Registerer = prometheus.NewRegistry()
		newTestRuntime(t, cfg)

		_, err := NewRuntime(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrInit)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SANDKASSE_MAX_HOST_CALLS", "7")
	t.Setenv("SANDKASSE_TIMEOUT", "750ms")
	t.Setenv("SANDKASSE_CODEC", "json")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Limits.MaxHostCalls)
	assert.Equal(t, 750*time.Millisecond, cfg.Limits.Timeout)
	assert.Equal(t, 1024, cfg.Limits.MaxCallStackSize)
	assert.Equal(t, "json", cfg.Codec)
	assert.NotNil(t, cfg.Logger)

	t.Setenv("LOG_LEVEL", "shouting")
	_, err = LoadConfig()
	assert.ErrorIs(t, err, ErrInit)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t, DefaultConfig())
	a := newTestSession(t, rt)
	b := newTestSession(t, rt)
	assert.NotEqual(t, a.Handle(), b.Handle())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, rt.Sessions())

	require.NoError(t, a.Register(ctx, "which", callback.Func0(func() string { return "a" })))
	require.NoError(t, b.Register(ctx, "which", callback.Func0(func() string { return "b" })))

	_, err := Eval[Void](ctx, a, "var x = 1")
	require.NoError(t, err)

	got, err := Eval[string](ctx, b, "typeof x + ':' + which()")
	require.NoError(t, err)
	assert.Equal(t, "undefined:b", got)

	got, err = Eval[string](ctx, a, "x + ':' + which()")
	require.NoError(t, err)
	assert.Equal(t, "1:a", got)

	assert.Equal(t, []string{"which"}, a.Callbacks())
}

func TestSessionClose(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t, DefaultConfig())
	s := newTestSession(t, rt)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.True(t, s.Closed())
	assert.Equal(t, 0, rt.Sessions())

	_, err := Eval[int32](ctx, s, "1")
	assert.ErrorIs(t, err, ErrInvalidState)

	err = s.Register(ctx, "f", callback.Proc0(func() {}))
	assert.ErrorIs(t, err, ErrInvalidState)

	// Other sessions are unaffected.
	other := newTestSession(t, rt)
	n, err := Eval[int32](ctx, other, "7")
	require.NoError(t, err)
	assert.Equal(t, int32(7), n)
}

func TestSessionCloseFromCallbackKeepsSessionOpen(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t, DefaultConfig())
	s := newTestSession(t, rt)

	var closeErr error
	require.NoError(t, s.Register(ctx, "bye", callback.Proc0(func() {
		closeErr = s.Close(ctx)
	})))

	_, err := Eval[Void](ctx, s, "bye()")
	require.NoError(t, err)
	assert.ErrorIs(t, closeErr, ErrInvalidState)
	assert.False(t, s.Closed())
	assert.Equal(t, 1, rt.Sessions())

	// The context was not dropped and the session still works.
	n, err := Eval[int32](ctx, s, "typeof bye === 'function' ? 1 : 0")
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)

	require.NoError(t, s.Close(ctx))
	assert.True(t, s.Closed())
	assert.Equal(t, 0, rt.Sessions())
}

func TestRuntimeClose(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx)
	require.NoError(t, err)
	a := newTestSession(t, rt)
	b := newTestSession(t, rt)

	require.NoError(t, rt.Close(ctx))
	require.NoError(t, rt.Close(ctx))
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, rt.Sessions())

	_, err = rt.CreateSession(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRegisterRejectsBadEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, newTestRuntime(t, DefaultConfig()))

	assert.ErrorIs(t, s.Register(ctx, "", callback.Proc0(func() {})), ErrEmptyName)
	assert.ErrorIs(t, s.Register(ctx, "f", nil), ErrNilFunc)
	assert.ErrorIs(t, s.Register(ctx, "a.b", callback.Proc0(func() {})), ErrInvalidName)

	require.NoError(t, s.Register(ctx, "add", callback.Func2(func(a, b int32) int32 { return a + b })))
	assert.ErrorIs(t, s.Register(ctx, "undefined", callback.Proc0(func() {})), ErrInvalidName)
	assert.Equal(t, []string{"add"}, s.Callbacks())

	v, err := Eval[string](ctx, s, "typeof undefined")
	require.NoError(t, err)
	assert.Equal(t, "undefined", v)
}

func TestReentrantUseIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, newTestRuntime(t, DefaultConfig()))

	var nested error
	require.NoError(t, s.Register(ctx, "nested", callback.Func0(func() int32 {
		_, nested = Eval[int32](ctx, s, "1")
		return 1
	})))

	n, err := Eval[int32](ctx, s, "nested() + 1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), n)
	assert.ErrorIs(t, nested, ErrInvalidState)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Registerer = reg
	rt := newTestRuntime(t, cfg)
	s := newTestSession(t, rt)

	require.NoError(t, s.Register(ctx, "add", callback.Func2(func(a, b int32) int32 { return a + b })))

	_, err := Eval[int32](ctx, s, "add(1, 2)")
	require.NoError(t, err)
	_, err = Eval[int32](ctx, s, "add(3, 4)")
	require.NoError(t, err)
	_, err = Eval[int32](ctx, s, `add("x", 4)`)
	require.Error(t, err)

	expected := `
		# HELP sandkasse_evals_total Total number of evals by requested kind and outcome
		# TYPE sandkasse_evals_total counter
		sandkasse_evals_total{kind="int",status="error"} 1
		sandkasse_evals_total{kind="int",status="ok"} 2
		# HELP sandkasse_callbacks_total Total number of host callback invocations by outcome
		# TYPE sandkasse_callbacks_total counter
		sandkasse_callbacks_total{status="error"} 1
		sandkasse_callbacks_total{status="ok"} 2
		# HELP sandkasse_sessions_active Number of open sessions
		# TYPE sandkasse_sessions_active gauge
		sandkasse_sessions_active 1
	`
	assert.NoError(t, testutil.GatherAndCompare(rt.Gatherer(), strings.NewReader(expected),
		"sandkasse_evals_total", "sandkasse_callbacks_total", "sandkasse_sessions_active"))

	count, err := testutil.GatherAndCount(reg, "sandkasse_boundary_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := DefaultConfig()
	cfg.Logger = zap.New(core)
	rt := newTestRuntime(t, cfg)
	s := newTestSession(t, rt)

	opened := logs.FilterMessage("session opened").All()
	require.Len(t, opened, 1)
	assert.Equal(t, s.ID(), opened[0].ContextMap()["session"])
	assert.Equal(t, rt.ID(), opened[0].ContextMap()["runtime"])

	require.NoError(t, s.Register(ctx, "boom", callback.Proc0(func() { panic("kaboom") })))
	_, err := Eval[Void](ctx, s, "boom()")
	require.Error(t, err)

	failed := logs.FilterMessage("callback failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "boom", failed[0].ContextMap()["callback"])
	assert.Equal(t, s.ID(), failed[0].ContextMap()["session"])

	require.NoError(t, s.Close(ctx))
	closed := logs.FilterMessage("session closed").All()
	require.Len(t, closed, 1)
	fields := closed[0].ContextMap()
	assert.Equal(t, int64(1), fields["callbacks"])
	assert.Equal(t, uint64(1), fields["invocations"])
	assert.Equal(t, uint64(1), fields["failures"])
}
