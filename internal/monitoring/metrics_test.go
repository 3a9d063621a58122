package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEval(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEval("int", nil, time.Millisecond)
	m.RecordEval("int", nil, time.Millisecond)
	m.RecordEval("int", errors.New("boom"), time.Millisecond)
	m.RecordEval("string", nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvalsTotal.WithLabelValues("int", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvalsTotal.WithLabelValues("int", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvalsTotal.WithLabelValues("string", StatusOK)))
}

func TestRecordCallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCallback(nil, time.Microsecond)
	m.RecordCallback(errors.New("boom"), time.Microsecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbacksTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbacksTotal.WithLabelValues(StatusError)))

	count, err := testutil.GatherAndCount(reg, "sandkasse_callback_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoundaryBytesAndSessions(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AddBoundaryBytes(10, 0)
	m.AddBoundaryBytes(5, 7)
	m.SetSessionsActive(3)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.BoundaryBytes.WithLabelValues(DirectionIn)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.BoundaryBytes.WithLabelValues(DirectionOut)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), time.Millisecond)
}
