package wsock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// run: одна сессия: подключиться, читать, при обрыве переподключиться с
// backoff. Выходит только по отмене ctx.
func (s *Socket) run(ctx context.Context) {
	backoff := s.cfg.BackoffMin

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		conn, resp, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.reportDialError(resp, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, s.cfg.BackoffMax)
			continue
		}
		backoff = s.cfg.BackoffMin

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		s.log.Info("connected", "remote", conn.RemoteAddr().String())
		s.ev.OnConnect()
		s.mu.Lock()
		s.live = s.conn == conn
		s.mu.Unlock()

		rerr := s.readLoop(ctx, conn)
		s.closeConn()
		if ctx.Err() == nil && !websocket.IsCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.log.Warn("connection lost", "err", rerr)
		}
		s.ev.OnDisconnect()

		if ctx.Err() != nil {
			return
		}
	}
}

// dial с установкой лимита чтения и pong-handler'а
func (s *Socket) dial(ctx context.Context) (*websocket.Conn, *http.Response, error) {
	target, err := SocketURL(s.baseURL, s.cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	h := http.Header{}
	for k, v := range s.cfg.Header {
		h[k] = append([]string(nil), v...)
	}
	if s.clientVersion != "" {
		h.Set(s.cfg.VersionHeader, s.clientVersion)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, h)
	if err != nil {
		return nil, resp, err
	}
	conn.SetReadLimit(s.cfg.ReadLimit)
	return conn, resp, nil
}

// Отказ сервера на рукопожатии (401/403 и т.п.), это то, что приложение
// должно увидеть: сессия протухла, сервер перезагружен. Сетевые ошибки только
// логируем, их лечит реконнект.
func (s *Socket) reportDialError(resp *http.Response, err error, wait time.Duration) {
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		code := fmt.Sprintf("http %d", resp.StatusCode)
		s.log.Warn("handshake rejected", "code", code, "retry_in", wait)
		s.ev.OnError(code)
		return
	}
	s.log.Warn("dial failed", "err", err, "retry_in", wait)
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)

	if s.cfg.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		})
	}
	if s.cfg.PingInterval > 0 {
		go s.pingLoop(conn, stop)
	}

	// закрыть по отмене контекста
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if s.cfg.PongWait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		}
		if typ != websocket.TextMessage {
			s.log.Debug("skipping non-text frame", "type", typ)
			continue
		}
		s.ev.OnMessage(string(data))
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.cfg.WriteTimeout))
			s.wmu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	cur *= 2
	if cur > limit {
		cur = limit
	}
	return cur
}
