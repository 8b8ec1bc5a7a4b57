package waveclient

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/metrics"
)

func TestReceivedMetric_UnknownTypesShareOneLabel(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c, err := New(Options{
		Transport: func(TransportConfig, Events) Transport { return &fakeTransport{} },
		Metrics:   metrics.New(metrics.WithRegistry(reg)),
	})
	require.NoError(t, err)

	for _, tag := range []string{"Foo1", "Foo2", "Foo3"} {
		c.OnMessage(`{"sequenceNumber":1,"messageType":"` + tag + `","message":{}}`)
	}
	c.OnMessage(`{"sequenceNumber":2,"messageType":"ProtocolWaveletUpdate","message":{}}`)

	n, err := testutil.GatherAndCount(reg, "wavesocket_envelopes_received_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series for unknown tags plus one for the update")
	assert.Equal(t, "unknown", typeLabel("Foo1"))
	assert.Equal(t, "ProtocolSubmitResponse", typeLabel(envelope.TypeSubmitResponse))
}

func TestSubmit_SendsSnapshotOfCallerStruct(t *testing.T) {
	c, ft, _ := newTestClient(t, nil)

	req := submitReq(t, 1)
	require.NoError(t, c.Submit(req, nil))
	open, err := envelope.NewOpenRequest(map[string]any{"waveId": "w+1"})
	require.NoError(t, err)
	require.NoError(t, c.Open(open))

	// вызывающий меняет свои объекты, пока запросы ждут в очереди
	req.Body.Fields["n"] = structpb.NewNumberValue(99)
	open.Body.Fields["waveId"] = structpb.NewStringValue("w+other")

	c.Connect()
	c.OnConnect()

	sent := ft.Envelopes(t)
	require.Len(t, sent, 2)
	assert.JSONEq(t, `{"n":1}`, string(sent[0].Msg))
	assert.JSONEq(t, `{"waveId":"w+1"}`, string(sent[1].Msg))
}
