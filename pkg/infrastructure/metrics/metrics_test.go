package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_OrderOperations(t *testing.T) {
	c := NewCollector("test")

	c.RecordOrderOperation("create", 5*time.Millisecond, nil)
	c.RecordOrderOperation("create", 3*time.Millisecond, nil)
	c.RecordOrderOperation("issue", time.Millisecond, errors.New("closed"))
	c.RecordOrderClosed("MAIN")
	c.RecordMovement(true)
	c.RecordMovement(true)
	c.RecordMovement(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.orderOperations.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.orderOperations.WithLabelValues("issue", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ordersClosed.WithLabelValues("MAIN")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.movements.WithLabelValues("issue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.movements.WithLabelValues("receipt")))
}

func TestCollector_Explosions(t *testing.T) {
	c := NewCollector("")

	c.RecordExplosion(2*time.Millisecond, 12, nil)
	c.RecordExplosion(time.Millisecond, 0, errors.New("storage down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.explosions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.explosions.WithLabelValues("error")))

	count, err := testutil.GatherAndCount(c.Registry(), "shopfloor_structure_explosion_rows")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNoOpRecorder(t *testing.T) {
	var r Recorder = NoOpRecorder{}

	// Should not panic
	r.RecordOrderOperation("create", time.Second, nil)
	r.RecordOrderClosed("MAIN")
	r.RecordMovement(true)
	r.RecordExplosion(time.Second, 1, nil)
}
