package callback

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havarnov/sandkasse/protocol"
)

func TestRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("add", Func2(func(a, b int32) int32 { return a + b })))
	assert.ErrorIs(t, r.Register("", Func0(func() int32 { return 1 })), ErrEmptyName)
	assert.ErrorIs(t, r.Register("nil", nil), ErrNilFunc)

	for _, name := range []string{"a b", "1st", "dotted.name", "x-y", "ünï", strings.Repeat("n", MaxNameLength+1)} {
		assert.ErrorIs(t, r.Register(name, Proc0(func() {})), ErrInvalidName, name)
	}
	for _, name := range []string{"undefined", "NaN", "Infinity", "if", "return", "this", "true", "null"} {
		err := r.Register(name, Proc0(func() {}))
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorContains(t, err, "reserved", name)
	}
	for _, name := range []string{"_", "$", "camelCase", "snake_case2", "$jq", "undefinedName", "iffy"} {
		assert.NoError(t, r.Register(name, Proc0(func() {})), name)
	}
	r = NewRegistry()
	require.NoError(t, r.Register("add", Func2(func(a, b int32) int32 { return a + b })))

	_, ok := r.Lookup("add")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"add"}, r.Names())
}

func TestInvoke(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("add", Func2(func(a, b int32) int32 { return a + b })))

	out, err := r.Invoke("add", vals(protocol.Int(42), protocol.Int(22)))
	require.NoError(t, err)
	assert.Equal(t, protocol.Int(64), out)

	_, err = r.Invoke("add", vals(protocol.Int(42), protocol.Str("x")))
	assert.ErrorIs(t, err, protocol.ErrArityOrTypeMismatch)
	assert.Contains(t, err.Error(), "add: argument 2")

	_, err = r.Invoke("missing", nil)
	assert.ErrorIs(t, err, protocol.ErrNotFound)
}

func TestInvokeZeroArgRunsOncePerCall(t *testing.T) {
	r := NewRegistry()
	calls := 0
	require.NoError(t, r.Register("tick", Proc0(func() { calls++ })))

	for i := 0; i < 3; i++ {
		out, err := r.Invoke("tick", nil)
		require.NoError(t, err)
		assert.True(t, out.IsVoid())
	}
	assert.Equal(t, 3, calls)
}

func TestLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("f", Func0(func() int32 { return 1 })))
	require.NoError(t, r.Register("f", Func0(func() int32 { return 2 })))

	out, err := r.Invoke("f", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.Int(2), out)
	assert.Equal(t, 1, r.Len())
}

func TestReplacementDuringInvocation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("f", Func0(func() int32 {
		// The running call keeps the entry it started with.
		require.NoError(t, r.Register("f", Func0(func() int32 { return 2 })))
		return 1
	})))

	out, err := r.Invoke("f", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.Int(1), out)

	out, err = r.Invoke("f", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.Int(2), out)
}

func TestPanicIsDispatchError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("boom", Func0(func() int32 { panic("kaput") })))
	require.NoError(t, r.Register("ok", Func0(func() int32 { return 1 })))

	_, err := r.Invoke("boom", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrDispatch)
	assert.Contains(t, err.Error(), "kaput")

	out, err := r.Invoke("ok", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.Int(1), out)

	_, err = r.Invoke("boom", nil)
	assert.ErrorIs(t, err, protocol.ErrDispatch)
}

func TestErrorClassification(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("io", Try0(func() (string, error) { return "", errors.New("disk full") })))
	require.NoError(t, r.Register("typed", Try0(func() (string, error) {
		return "", protocol.Errorf(protocol.CodeWrongType, "expected a path")
	})))
	require.NoError(t, r.Register("badUTF8", Func0(func() string { return string([]byte{0xff}) })))

	_, err := r.Invoke("io", nil)
	assert.ErrorIs(t, err, protocol.ErrDispatch)
	assert.Contains(t, err.Error(), "disk full")

	_, err = r.Invoke("typed", nil)
	assert.ErrorIs(t, err, protocol.ErrWrongType)
	assert.Contains(t, err.Error(), "typed: expected a path")

	_, err = r.Invoke("badUTF8", nil)
	assert.ErrorIs(t, err, protocol.ErrDispatch)
}

func TestObserverAndStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ok", Func0(func() bool { return true })))
	require.NoError(t, r.Register("boom", Func0(func() bool { panic("x") })))

	type seen struct {
		name string
		err  error
	}
	var got []seen
	r.SetObserver(func(name string, d time.Duration, err error) {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		got = append(got, seen{name: name, err: err})
	})

	_, _ = r.Invoke("ok", nil)
	_, _ = r.Invoke("boom", nil)
	_, _ = r.Invoke("missing", nil)

	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].name)
	assert.NoError(t, got[0].err)
	assert.Equal(t, "boom", got[1].name)
	assert.ErrorIs(t, got[1].err, protocol.ErrDispatch)

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_callbacks"])
	assert.Equal(t, uint64(2), stats["invocations"])
	assert.Equal(t, uint64(1), stats["failures"])
}

func TestConcurrentRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("f", Func0(func() int32 { return 0 })))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int32) {
			defer wg.Done()
			_ = r.Register("f", Func0(func() int32 { return n }))
		}(int32(i))
		go func() {
			defer wg.Done()
			_, err := r.Invoke("f", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}
