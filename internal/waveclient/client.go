package waveclient

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/metrics"
	"github.com/EgorLis/wavesocket/internal/outbox"
	"github.com/EgorLis/wavesocket/internal/pending"
	"github.com/EgorLis/wavesocket/internal/status"
)

// State: состояние соединения.
type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateError есть в модели протокола, но клиент в него не переходит:
	// ошибки публикуются как PROTOCOL_ERROR, а восстанавливать соединение должно приложение.
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// UpdateHandler получает WaveletUpdate, которые сервер присылает сам.
type UpdateHandler interface {
	OnWaveletUpdate(u *envelope.WaveletUpdate) error
}

type UpdateHandlerFunc func(u *envelope.WaveletUpdate) error

func (f UpdateHandlerFunc) OnWaveletUpdate(u *envelope.WaveletUpdate) error { return f(u) }

// SubmitCallback вызывается один раз, когда придёт SubmitResponse.
// Ошибка (или паника) считается поломкой соединения.
type SubmitCallback func(r *envelope.SubmitResponse) error

type Options struct {
	BaseURL       string
	ClientVersion string

	// Tokens: источник токена сессии; nil означает работу без аутентификации.
	Tokens TokenSource

	Transport TransportFactory

	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Notifier *status.Notifier
}

type Client struct {
	id        string
	transport Transport
	tokens    TokenSource
	log       *slog.Logger
	metrics   *metrics.Collector
	notifier  *status.Notifier

	exec  serial
	state atomic.Uint32

	// поля ниже трогаются только изнутри exec
	seq           int64
	queue         *outbox.Queue[*envelope.Envelope]
	pending       *pending.Registry[SubmitCallback]
	connectedOnce bool
	onStart       func(error)

	hmu     sync.Mutex
	handler UpdateHandler
}

func New(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, ErrNilTransport
	}
	c := &Client{
		id:       uuid.NewString(),
		tokens:   opts.Tokens,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		queue:    outbox.New[*envelope.Envelope](),
		pending:  pending.New[SubmitCallback](),
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c.log = log.With("component", "waveclient", "client", c.id)
	if c.notifier == nil {
		c.notifier = status.NewNotifier(c.log)
	}
	c.transport = opts.Transport(TransportConfig{
		BaseURL:       opts.BaseURL,
		ClientVersion: opts.ClientVersion,
	}, c)
	if c.transport == nil {
		return nil, ErrNilTransport
	}
	return c, nil
}

// ID: уникальный идентификатор экземпляра (для логов и метрик).
func (c *Client) ID() string { return c.id }

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) IsConnected() bool { return c.State() == StateConnected }

// Status: канал событий состояния для подписчиков.
func (c *Client) Status() *status.Notifier { return c.notifier }

// AttachHandler подключает обработчик обновлений. Второй обработчик без
// DetachHandler: ошибка использования.
func (c *Client) AttachHandler(h UpdateHandler) error {
	if h == nil {
		return ErrNilHandler
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()
	if c.handler != nil {
		return ErrHandlerAttached
	}
	c.handler = h
	return nil
}

func (c *Client) DetachHandler() {
	c.hmu.Lock()
	c.handler = nil
	c.hmu.Unlock()
}

func (c *Client) updateHandler() UpdateHandler {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	return c.handler
}

// Connect открывает соединение.
func (c *Client) Connect() {
	c.exec.do(func() { c.connect(nil) })
}

// ConnectWithCallback открывает соединение и один раз сообщает в cb,
// удалось ли завершить рукопожатие (nil) или нет. Последующие реконнекты
// транспорта cb уже не вызывают.
func (c *Client) ConnectWithCallback(cb func(error)) {
	c.exec.do(func() { c.connect(cb) })
}

func (c *Client) connect(cb func(error)) {
	if cb != nil {
		if prev := c.takeStart(); prev != nil {
			c.resolveStart(prev, ErrConnectSuperseded)
		}
		c.onStart = cb
	}
	c.setState(StateConnecting)
	c.transport.Connect()
}

// Disconnect полностью перезапускает соединение: следующее подключение снова
// пройдёт аутентификацию. С discardInFlightMessages очередь очищается, а
// ожидающие ответа колбэки бросаются без вызова.
func (c *Client) Disconnect(discardInFlightMessages bool) {
	c.exec.do(func() {
		c.setState(StateDisconnected)
		c.transport.Disconnect()
		c.connectedOnce = false
		if discardInFlightMessages {
			dropped := c.queue.Clear()
			abandoned := c.pending.Reset()
			c.metrics.SetQueueDepth(0)
			c.metrics.SetPendingCalls(0)
			c.log.Info("discarded in-flight messages", "queued", dropped, "pending", abandoned)
		}
	})
}

func (c *Client) setState(s State) {
	if prev := State(c.state.Swap(uint32(s))); prev != s {
		c.log.Debug("state changed", "from", prev.String(), "to", s.String())
	}
}

func (c *Client) nextSeq() int64 {
	n := c.seq
	c.seq++
	return n
}

func (c *Client) takeStart() func(error) {
	cb := c.onStart
	c.onStart = nil
	return cb
}

func (c *Client) resolveStart(cb func(error), err error) {
	perr := safeCall(func() error {
		cb(err)
		return nil
	})
	if perr != nil {
		c.log.Error("start callback failed", "err", perr)
	}
}

func (c *Client) publish(kind status.Kind, err error) {
	c.metrics.StatusEvent(kind.String())
	if err != nil {
		c.log.Warn("connection status", "status", kind.String(), "err", err)
	} else {
		c.log.Info("connection status", "status", kind.String())
	}
	c.notifier.Publish(kind, err)
}
