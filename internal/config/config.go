// Package config описывает конфигурацию клиента wave-сокета. Файл может быть в JSON,
// YAML или TOML (формат по расширению), поверх файла применяются переменные
// окружения WAVE_*. Если файла нет, берутся значения по умолчанию.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type ClientConf struct {
	BaseURL       string `json:"base_url" yaml:"base_url" toml:"base_url"`
	ClientVersion string `json:"client_version" yaml:"client_version" toml:"client_version"`
}

type SessionConf struct {
	Token    string `json:"token,omitempty" yaml:"token,omitempty" toml:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty" yaml:"token_env,omitempty" toml:"token_env,omitempty"`
	// TokenURL: HTTP-эндпоинт, откуда брать токен; Bearer уходит в Authorization.
	TokenURL     string   `json:"token_url,omitempty" yaml:"token_url,omitempty" toml:"token_url,omitempty"`
	Bearer       string   `json:"bearer,omitempty" yaml:"bearer,omitempty" toml:"bearer,omitempty"`
	TokenField   string   `json:"token_field,omitempty" yaml:"token_field,omitempty" toml:"token_field,omitempty"`
	RefreshEvery Duration `json:"refresh_every,omitempty" yaml:"refresh_every,omitempty" toml:"refresh_every,omitempty"`
}

type SocketConf struct {
	Path         string   `json:"path" yaml:"path" toml:"path"`
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	ReadLimit    int64    `json:"read_limit" yaml:"read_limit" toml:"read_limit"`
	PingInterval Duration `json:"ping_interval" yaml:"ping_interval" toml:"ping_interval"`
	PongWait     Duration `json:"pong_wait" yaml:"pong_wait" toml:"pong_wait"`
	BackoffMin   Duration `json:"backoff_min" yaml:"backoff_min" toml:"backoff_min"`
	BackoffMax   Duration `json:"backoff_max" yaml:"backoff_max" toml:"backoff_max"`
	// DialsPerMinute/DialBurst ограничивают частоту реконнектов.
	DialsPerMinute float64 `json:"dials_per_minute" yaml:"dials_per_minute" toml:"dials_per_minute"`
	DialBurst      int     `json:"dial_burst" yaml:"dial_burst" toml:"dial_burst"`
}

type MetricsConf struct {
	// Addr: где слушать /metrics; если пусто, не поднимать.
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty"`
	Namespace string `json:"namespace" yaml:"namespace" toml:"namespace"`
}

type Config struct {
	Client  ClientConf  `json:"client" yaml:"client" toml:"client"`
	Session SessionConf `json:"session" yaml:"session" toml:"session"`
	Socket  SocketConf  `json:"socket" yaml:"socket" toml:"socket"`
	Metrics MetricsConf `json:"metrics" yaml:"metrics" toml:"metrics"`
	LogLevel string     `json:"log_level" yaml:"log_level" toml:"log_level"`
}

func Default() Config {
	return Config{
		Client: ClientConf{
			BaseURL:       "http://localhost:9898/",
			ClientVersion: "dev",
		},
		Socket: SocketConf{
			Path:           "socket",
			WriteTimeout:   Duration(5 * time.Second),
			ReadLimit:      64 << 20,
			PingInterval:   Duration(10 * time.Second),
			PongWait:       Duration(30 * time.Second),
			BackoffMin:     Duration(time.Second),
			BackoffMax:     Duration(30 * time.Second),
			DialsPerMinute: 60,
			DialBurst:      3,
		},
		Metrics:  MetricsConf{Namespace: "wavesocket"},
		LogLevel: "info",
	}
}

// Load читает файл поверх значений по умолчанию и применяет окружение.
// Отсутствующий файл не считается ошибкой.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, err
		}
	}
	ApplyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	case ".toml":
		_, err := toml.Decode(string(b), cfg)
		return err
	case ".json", "":
		return json.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Save пишет конфиг в формате по расширению файла.
func Save(path string, cfg Config) error {
	var (
		b   []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(cfg)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		b = buf.Bytes()
	default:
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return os.WriteFile(path, b, 0o644)
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("WAVE_BASE_URL")); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVE_CLIENT_VERSION")); v != "" {
		cfg.Client.ClientVersion = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVE_SESSION_TOKEN")); v != "" {
		cfg.Session.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVE_METRICS_ADDR")); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil {
		return fmt.Errorf("config: base_url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("config: base_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("config: base_url: missing host")
	}
	if c.Socket.BackoffMax > 0 && c.Socket.BackoffMax < c.Socket.BackoffMin {
		return errors.New("config: socket.backoff_max is less than backoff_min")
	}
	return nil
}
