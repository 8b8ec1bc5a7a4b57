package config

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/EgorLis/wavesocket/internal/session"
	"github.com/EgorLis/wavesocket/internal/wsock"
)

// SocketConfig переводит секцию socket в wsock.Config.
func (c Config) SocketConfig(log *slog.Logger) wsock.Config {
	s := c.Socket
	out := wsock.DefaultConfig()
	out.Logger = log
	if s.Path != "" {
		out.Path = s.Path
	}
	if s.WriteTimeout > 0 {
		out.WriteTimeout = s.WriteTimeout.D()
	}
	if s.ReadLimit > 0 {
		out.ReadLimit = s.ReadLimit
	}
	// 0 выключает ping
	out.PingInterval = s.PingInterval.D()
	if s.PongWait > 0 {
		out.PongWait = s.PongWait.D()
	}
	if s.BackoffMin > 0 {
		out.BackoffMin = s.BackoffMin.D()
	}
	if s.BackoffMax > 0 {
		out.BackoffMax = s.BackoffMax.D()
	}
	if s.DialsPerMinute > 0 {
		out.DialRate = rate.Limit(s.DialsPerMinute / 60)
	}
	if s.DialBurst > 0 {
		out.DialBurst = s.DialBurst
	}
	return out
}

// Tokens собирает источник токена: явный токен, затем переменная окружения,
// затем HTTP-эндпоинт. HTTP-источник возвращается отдельно, чтобы вызывающий
// мог запустить и остановить его обновление.
func (c Config) Tokens(log *slog.Logger) (session.First, *session.HTTP) {
	s := c.Session
	var src session.First
	if strings.TrimSpace(s.Token) != "" {
		src = append(src, session.Static(s.Token))
	}
	if s.TokenEnv != "" {
		src = append(src, session.Env(s.TokenEnv))
	}
	var h *session.HTTP
	if s.TokenURL != "" {
		h = session.NewHTTP(session.HTTPConfig{
			URL:     s.TokenURL,
			Bearer:  s.Bearer,
			Field:   s.TokenField,
			Timeout: 10 * time.Second,
			Logger:  log,
		})
		src = append(src, h)
	}
	return src, h
}

// Level разбирает log_level; при неизвестном значении берётся info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
