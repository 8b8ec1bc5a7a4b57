package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/wavesocket/internal/config"
	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/waveclient"
)

// loopback подключается сразу и отвечает на каждый SubmitRequest.
type loopback struct {
	mu   sync.Mutex
	ev   waveclient.Events
	sent []*envelope.Envelope
}

func (l *loopback) Connect()    { l.ev.OnConnect() }
func (l *loopback) Disconnect() {}

func (l *loopback) SendMessage(text string) error {
	e, err := envelope.Unmarshal([]byte(text))
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.sent = append(l.sent, e)
	l.mu.Unlock()

	if e.MessageType == envelope.TypeSubmitRequest {
		resp, _ := envelope.NewSubmitResponse(map[string]any{"operationsApplied": 1})
		b, err := envelope.Marshal(envelope.Wrap(e.SequenceNumber, resp))
		if err != nil {
			return err
		}
		l.ev.OnMessage(string(b))
	}
	return nil
}

func (l *loopback) count(t envelope.MessageType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.sent {
		if e.MessageType == t {
			n++
		}
	}
	return n
}

func newTestApp(t *testing.T) (*App, *loopback) {
	t.Helper()
	lb := &loopback{}
	cfg := config.Default()
	cfg.Session.Token = "tok"
	a, err := New(cfg, nil, WithTransport(func(_ waveclient.TransportConfig, ev waveclient.Events) waveclient.Transport {
		lb.ev = ev
		return lb
	}))
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a, lb
}

func TestApp_StartAuthenticates(t *testing.T) {
	a, lb := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Start(ctx))
	assert.True(t, a.Client().IsConnected())
	assert.Equal(t, 1, lb.count(envelope.TypeAuthenticate))
}

func TestApp_SubmitWaitsForResponse(t *testing.T) {
	a, _ := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))

	resp, err := a.Submit(ctx, map[string]any{"waveletName": "w+1/conv+root"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), envelope.Fields(resp)["operationsApplied"])
}

func TestApp_ReopensWavesAfterReconnect(t *testing.T) {
	a, lb := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))

	require.NoError(t, a.Watch("w+1", nil))
	assert.Equal(t, 1, lb.count(envelope.TypeOpenRequest))

	// обрыв транспорта без Disconnect: повторной аутентификации нет,
	// а подписку надо восстановить
	lb.ev.OnDisconnect()
	lb.ev.OnConnect()
	assert.Equal(t, 2, lb.count(envelope.TypeOpenRequest))
	assert.Equal(t, 1, lb.count(envelope.TypeAuthenticate))

	assert.Error(t, a.Watch("", nil))
}

func TestApp_MetricsRegistered(t *testing.T) {
	a, _ := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))

	mfs, err := a.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "wavesocket_envelopes_sent_total")
	assert.Contains(t, joined, "go_goroutines")
}

func (l *loopback) opens(waveID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.sent {
		if e.MessageType == envelope.TypeOpenRequest && envelope.Fields(e.Payload)["waveId"] == waveID {
			n++
		}
	}
	return n
}

func TestApp_WatchWhileDisconnectedOpensOnce(t *testing.T) {
	a, lb := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Watch("w+1", nil))

	lb.ev.OnDisconnect()
	require.NoError(t, a.Watch("w+2", nil))
	assert.Zero(t, lb.opens("w+2"), "open waits in the client queue")

	lb.ev.OnConnect()
	assert.Equal(t, 1, lb.opens("w+2"), "flushed from the queue, not reopened")
	assert.Equal(t, 2, lb.opens("w+1"), "sent before the drop, reopened after")

	// следующий обрыв переоткрывает уже обе
	lb.ev.OnDisconnect()
	lb.ev.OnConnect()
	assert.Equal(t, 2, lb.opens("w+2"))
	assert.Equal(t, 3, lb.opens("w+1"))
}

func TestApp_WatchBeforeStartIsNotDuplicated(t *testing.T) {
	a, lb := newTestApp(t)
	require.NoError(t, a.Watch("w+1", nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.Equal(t, 1, lb.opens("w+1"))
}
