package wsock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/EgorLis/wavesocket/internal/waveclient"
)

var (
	ErrClosed       = errors.New("wsock: socket closed")
	ErrNotConnected = errors.New("wsock: not connected")
)

// Config: параметры сокета.
type Config struct {
	// Path добавляется к базовому адресу (по умолчанию "socket").
	Path string

	WriteTimeout time.Duration
	ReadLimit    int64

	// PingInterval: как часто слать ping; PongWait: сколько ждать любого
	// входящего кадра, прежде чем считать соединение мёртвым.
	PingInterval time.Duration
	PongWait     time.Duration

	BackoffMin time.Duration
	BackoffMax time.Duration

	// DialRate/DialBurst ограничивают частоту попыток подключения.
	DialRate  rate.Limit
	DialBurst int

	// VersionHeader: заголовок, в котором уходит версия клиента.
	VersionHeader string
	Header        http.Header

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Path:          "socket",
		WriteTimeout:  5 * time.Second,
		ReadLimit:     64 << 20,
		PingInterval:  10 * time.Second,
		PongWait:      30 * time.Second,
		BackoffMin:    time.Second,
		BackoffMax:    30 * time.Second,
		DialRate:      rate.Every(time.Second),
		DialBurst:     3,
		VersionHeader: "X-Wave-Client-Version",
	}
}

// Factory: фабрика транспорта для waveclient.Options.Transport.
func Factory(cfg Config) waveclient.TransportFactory {
	return func(tc waveclient.TransportConfig, ev waveclient.Events) waveclient.Transport {
		return New(tc.BaseURL, tc.ClientVersion, cfg, ev)
	}
}

// Socket держит WebSocket живым: после обрыва сам переподключается с
// экспоненциальной задержкой и сообщает об этом через Events.
type Socket struct {
	baseURL       string
	clientVersion string
	cfg           Config
	ev            waveclient.Events
	log           *slog.Logger
	limiter       *rate.Limiter

	mu     sync.Mutex
	conn   *websocket.Conn
	live   bool // OnConnect для conn уже отправлен
	cancel context.CancelFunc
	done   chan struct{} // закрывается, когда горутина текущей сессии вышла

	wmu sync.Mutex // сериализует запись в websocket
}

func New(baseURL, clientVersion string, cfg Config, ev waveclient.Events) *Socket {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = def.BackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}
	if cfg.DialRate <= 0 {
		cfg.DialRate = def.DialRate
	}
	if cfg.DialBurst <= 0 {
		cfg.DialBurst = def.DialBurst
	}
	if cfg.VersionHeader == "" {
		cfg.VersionHeader = def.VersionHeader
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Socket{
		baseURL:       baseURL,
		clientVersion: clientVersion,
		cfg:           cfg,
		ev:            ev,
		log:           log.With("component", "wsock"),
		limiter:       rate.NewLimiter(cfg.DialRate, cfg.DialBurst),
	}
}

// SocketURL переводит базовый http(s)-адрес в ws(s)-адрес сокета.
func SocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("wsock: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("wsock: no host in %q", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}

// Connect запускает фоновую сессию, если она ещё не идёт. Не блокируется.
// Если сессия уже идёт и соединение установлено, OnConnect приходит ещё раз.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.cancel != nil {
		live := s.live
		s.mu.Unlock()
		if live {
			s.ev.OnConnect()
		}
		return
	}
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	prev := s.done
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		// предыдущая сессия должна полностью выйти, чтобы её OnDisconnect
		// не пришёл после нашего OnConnect
		if prev != nil {
			<-prev
		}
		s.run(ctx)
	}()
}

// Disconnect останавливает сессию и закрывает соединение.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.closeConn()
}

// Wait ждёт выхода текущей фоновой сессии (для тестов и корректной остановки).
func (s *Socket) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// SendMessage пишет текстовый кадр. ErrClosed: сессия не запущена;
// ErrNotConnected: сессия идёт, но соединения сейчас нет.
func (s *Socket) SendMessage(text string) error {
	s.mu.Lock()
	conn, running := s.conn, s.cancel != nil
	s.mu.Unlock()
	if !running {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	// запись строго через один мьютекс + write-deadline
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// безопасно закрыть текущее соединение
func (s *Socket) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.live = false
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	s.wmu.Unlock()
	_ = conn.Close()
}
