package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Sent("x")
		c.Queued("x")
		c.Received("x")
		c.DecodeError()
		c.WriteError()
		c.StatusEvent("CONNECTED")
		c.SetQueueDepth(3)
		c.SetPendingCalls(1)
		c.ObserveEncode(time.Millisecond)
		c.ObserveDecode(time.Millisecond)
	})
}

func TestCollector_CountsAndRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := New(WithRegistry(reg), WithNamespace("test"), WithConstLabels(prometheus.Labels{"client": "a"}))

	c.Sent("ProtocolSubmitRequest")
	c.Sent("ProtocolSubmitRequest")
	c.Queued("ProtocolOpenRequest")
	c.DecodeError()
	c.SetQueueDepth(4)
	c.StatusEvent("PROTOCOL_ERROR")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sent.WithLabelValues("ProtocolSubmitRequest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queued.WithLabelValues("ProtocolOpenRequest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decodeErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.statusEvents.WithLabelValues("PROTOCOL_ERROR")))

	n, err := testutil.GatherAndCount(reg, "test_envelopes_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
