package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTP забирает токен с HTTP-эндпоинта сервера (JSON-объект с полем токена)
// и кэширует его. Повторные запросы идут с If-None-Match.
type HTTP struct {
	http   *http.Client
	url    string
	bearer string
	field  string
	log    *slog.Logger

	mu      sync.RWMutex
	token   string
	etag    string
	running bool
	stopCh  chan struct{}
}

type HTTPConfig struct {
	URL string
	// Bearer, если задан, уходит в Authorization.
	Bearer string
	// Field: имя поля с токеном в ответе (по умолчанию "token").
	Field   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Field == "" {
		cfg.Field = "token"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HTTP{
		http:   &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
		bearer: cfg.Bearer,
		field:  cfg.Field,
		log:    log.With("component", "session"),
	}
}

// Token отдаёт последний полученный токен.
func (h *HTTP) Token() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

// Refresh один раз запрашивает токен. 304 оставляет текущий.
func (h *HTTP) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if h.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+h.bearer)
	}
	h.mu.RLock()
	if h.etag != "" {
		req.Header.Set("If-None-Match", h.etag)
	}
	h.mu.RUnlock()

	resp, err := h.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil
	case http.StatusOK:
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("session: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("session: decode: %w", err)
	}
	tok, _ := body[h.field].(string)
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return errors.New("session: no " + h.field + " in response")
	}

	h.mu.Lock()
	h.token = tok
	h.etag = resp.Header.Get("ETag")
	h.mu.Unlock()
	return nil
}

// Start делает первый запрос синхронно и дальше обновляет токен в фоне.
func (h *HTTP) Start(ctx context.Context, interval time.Duration) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.stopCh = make(chan struct{})
	stop := h.stopCh
	h.mu.Unlock()

	err := h.Refresh(ctx)
	if interval <= 0 {
		return err
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if rerr := h.Refresh(ctx); rerr != nil {
					h.log.Warn("token refresh failed", "err", rerr)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return err
}

func (h *HTTP) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}
