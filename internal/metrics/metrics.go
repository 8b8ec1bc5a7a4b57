// Package metrics собирает Prometheus-метрики клиента wave-сокета: сколько конвертов
// отправлено, поставлено в очередь, получено и отброшено, глубина очереди,
// число ожидающих ответа запросов, события состояния и время (де)сериализации.
//
// Все методы безопасны на nil *Collector: тогда метрики просто не пишутся.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config настраивает коллектор.
type Config struct {
	// Namespace метрик (по умолчанию "wavesocket").
	Namespace string

	// ConstLabels добавляются ко всем метрикам, например {"client": id}.
	ConstLabels prometheus.Labels

	// Registry, куда регистрировать метрики. При nil метрики не регистрируются.
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(ns string) Option {
	return func(c *Config) { c.Namespace = ns }
}

func WithConstLabels(l prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = l }
}

func WithRegistry(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = r }
}

type Collector struct {
	sent         *prometheus.CounterVec
	queued       *prometheus.CounterVec
	received     *prometheus.CounterVec
	decodeErrors prometheus.Counter
	writeErrors  prometheus.Counter
	statusEvents *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	pendingCalls prometheus.Gauge
	encodeTime   prometheus.Histogram
	decodeTime   prometheus.Histogram
}

func New(opts ...Option) *Collector {
	cfg := Config{Namespace: "wavesocket"}
	for _, o := range opts {
		o(&cfg)
	}
	f := promauto.With(cfg.Registry)
	ns, cl := cfg.Namespace, cfg.ConstLabels

	return &Collector{
		sent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "envelopes_sent_total",
			Help: "Envelopes written to the transport, by message type.",
		}, []string{"type"}),
		queued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "envelopes_queued_total",
			Help: "Envelopes put into the outbound queue while not connected, by message type.",
		}, []string{"type"}),
		received: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "envelopes_received_total",
			Help: "Decoded inbound envelopes, by message type.",
		}, []string{"type"}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "decode_errors_total",
			Help: "Inbound messages dropped because they were not valid envelopes.",
		}),
		writeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "write_errors_total",
			Help: "Transport write failures.",
		}),
		statusEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "status_events_total",
			Help: "Connection status events published, by kind.",
		}, []string{"kind"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "outbound_queue_depth",
			Help: "Envelopes waiting in the outbound queue.",
		}),
		pendingCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, ConstLabels: cl,
			Name: "pending_calls",
			Help: "Submit requests waiting for a response.",
		}),
		encodeTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, ConstLabels: cl,
			Name:    "encode_duration_seconds",
			Help:    "Time spent serializing outbound envelopes.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		decodeTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, ConstLabels: cl,
			Name:    "decode_duration_seconds",
			Help:    "Time spent deserializing inbound messages.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
}

func (c *Collector) Sent(typ string) {
	if c == nil {
		return
	}
	c.sent.WithLabelValues(typ).Inc()
}

func (c *Collector) Queued(typ string) {
	if c == nil {
		return
	}
	c.queued.WithLabelValues(typ).Inc()
}

func (c *Collector) Received(typ string) {
	if c == nil {
		return
	}
	c.received.WithLabelValues(typ).Inc()
}

func (c *Collector) DecodeError() {
	if c == nil {
		return
	}
	c.decodeErrors.Inc()
}

func (c *Collector) WriteError() {
	if c == nil {
		return
	}
	c.writeErrors.Inc()
}

func (c *Collector) StatusEvent(kind string) {
	if c == nil {
		return
	}
	c.statusEvents.WithLabelValues(kind).Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

func (c *Collector) SetPendingCalls(n int) {
	if c == nil {
		return
	}
	c.pendingCalls.Set(float64(n))
}

func (c *Collector) ObserveEncode(d time.Duration) {
	if c == nil {
		return
	}
	c.encodeTime.Observe(d.Seconds())
}

func (c *Collector) ObserveDecode(d time.Duration) {
	if c == nil {
		return
	}
	c.decodeTime.Observe(d.Seconds())
}
