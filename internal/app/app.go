package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EgorLis/wavesocket/internal/config"
	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/metrics"
	"github.com/EgorLis/wavesocket/internal/session"
	"github.com/EgorLis/wavesocket/internal/status"
	"github.com/EgorLis/wavesocket/internal/waveclient"
	"github.com/EgorLis/wavesocket/internal/wsock"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	reg    *prometheus.Registry
	client *waveclient.Client
	tokens *session.HTTP

	sockMu sync.Mutex
	sock   *wsock.Socket

	srv *http.Server

	mu    sync.Mutex
	waves map[string]*watched
	unsub func()
}

// watched: открытая волна. queued означает, что её Open ещё лежит в очереди
// клиента и уйдёт при сбросе очереди, так что переоткрывать её не нужно.
type watched struct {
	req    *envelope.OpenRequest
	queued bool
}

type Option func(*options)

type options struct {
	transport waveclient.TransportFactory
}

// WithTransport подменяет wsock другим транспортом.
func WithTransport(f waveclient.TransportFactory) Option {
	return func(o *options) { o.transport = f }
}

func New(cfg config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	a := &App{
		cfg:   cfg,
		log:   log,
		reg:   prometheus.NewRegistry(),
		waves: make(map[string]*watched),
	}
	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens, h := cfg.Tokens(log)
	a.tokens = h

	transport := o.transport
	if transport == nil {
		sc := cfg.SocketConfig(log)
		transport = func(tc waveclient.TransportConfig, ev waveclient.Events) waveclient.Transport {
			s := wsock.New(tc.BaseURL, tc.ClientVersion, sc, ev)
			a.sockMu.Lock()
			a.sock = s
			a.sockMu.Unlock()
			return s
		}
	}

	c, err := waveclient.New(waveclient.Options{
		BaseURL:       cfg.Client.BaseURL,
		ClientVersion: cfg.Client.ClientVersion,
		Tokens:        tokens,
		Transport:     transport,
		Logger:        log,
		Metrics: metrics.New(
			metrics.WithNamespace(cfg.Metrics.Namespace),
			metrics.WithRegistry(a.reg),
		),
	})
	if err != nil {
		return nil, err
	}
	a.client = c
	a.unsub = c.Status().Subscribe(a.onStatus)
	return a, nil
}

func (a *App) Client() *waveclient.Client { return a.client }

func (a *App) Registry() *prometheus.Registry { return a.reg }

// Start поднимает /metrics, токен и соединение. Ждёт первого рукопожатия
// или отмены ctx; переподключения дальше идут сами.
func (a *App) Start(ctx context.Context) error {
	if a.tokens != nil {
		if err := a.tokens.Start(ctx, a.cfg.Session.RefreshEvery.D()); err != nil {
			// без токена подключимся без аутентификации
			a.log.Warn("session token fetch failed", "err", err)
		}
	}
	if a.cfg.Metrics.Addr != "" {
		a.serveMetrics(a.cfg.Metrics.Addr)
	}

	done := make(chan error, 1)
	a.client.ConnectWithCallback(func(err error) { done <- err })
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{Registry: a.reg}))
	a.srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.log.Info("metrics listening", "addr", addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", "err", err)
		}
	}()
}

// Stop рвёт соединение с отбрасыванием очереди и дожидается сокета.
func (a *App) Stop() {
	if a.unsub != nil {
		a.unsub()
	}
	a.client.Disconnect(true)
	a.sockMu.Lock()
	s := a.sock
	a.sockMu.Unlock()
	if s != nil {
		s.Wait()
	}
	if a.tokens != nil {
		a.tokens.Stop()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(ctx)
	}
}

// Watch открывает волну и запоминает её, чтобы открыть заново после
// реконнекта транспорта.
func (a *App) Watch(waveID string, extra map[string]any) error {
	if waveID == "" {
		return errors.New("app: empty wave id")
	}
	fields := map[string]any{"waveId": waveID}
	for k, v := range extra {
		fields[k] = v
	}
	req, err := envelope.NewOpenRequest(fields)
	if err != nil {
		return err
	}
	// запись раньше Open: событие CONNECTED может прийти сразу за ним
	a.mu.Lock()
	a.waves[waveID] = &watched{req: req, queued: !a.client.IsConnected()}
	a.mu.Unlock()

	if err := a.client.Open(req); err != nil {
		a.mu.Lock()
		delete(a.waves, waveID)
		a.mu.Unlock()
		return err
	}
	return nil
}

// Submit отправляет дельту и ждёт ответа сервера.
func (a *App) Submit(ctx context.Context, fields map[string]any) (*envelope.SubmitResponse, error) {
	req, err := envelope.NewSubmitRequest(fields)
	if err != nil {
		return nil, err
	}
	got := make(chan *envelope.SubmitResponse, 1)
	if err := a.client.Submit(req, func(r *envelope.SubmitResponse) error {
		got <- r
		return nil
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-got:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onStatus вызывается из исполнителя клиента, поэтому Open здесь только
// ставится в очередь.
func (a *App) onStatus(ev status.Event) {
	if ev.Kind != status.Connected {
		return
	}
	a.mu.Lock()
	reqs := make([]*envelope.OpenRequest, 0, len(a.waves))
	for _, w := range a.waves {
		// такой Open только что ушёл из очереди при рукопожатии
		if w.queued {
			w.queued = false
			continue
		}
		reqs = append(reqs, w.req)
	}
	a.mu.Unlock()

	for _, r := range reqs {
		if err := a.client.Open(r); err != nil {
			a.log.Warn("reopen wave failed", "err", err)
		}
	}
	if len(reqs) > 0 {
		a.log.Info("waves reopened", "count", len(reqs))
	}
}
