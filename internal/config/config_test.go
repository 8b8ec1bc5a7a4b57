package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WAVE_BASE_URL", "WAVE_CLIENT_VERSION", "WAVE_SESSION_TOKEN", "WAVE_METRICS_ADDR", "WAVE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Formats(t *testing.T) {
	clearEnv(t)
	files := map[string]string{
		"wave.json": `{"client":{"base_url":"https://wave.test/","client_version":"1.0"},"socket":{"write_timeout":"2s"}}`,
		"wave.yaml": "client:\n  base_url: https://wave.test/\n  client_version: \"1.0\"\nsocket:\n  write_timeout: 2s\n",
		"wave.toml": "[client]\nbase_url = \"https://wave.test/\"\nclient_version = \"1.0\"\n[socket]\nwrite_timeout = \"2s\"\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(write(t, name, body))
			require.NoError(t, err)
			assert.Equal(t, "https://wave.test/", cfg.Client.BaseURL)
			assert.Equal(t, "1.0", cfg.Client.ClientVersion)
			assert.Equal(t, 2*time.Second, cfg.Socket.WriteTimeout.D())
			// не заданное в файле остаётся по умолчанию
			assert.Equal(t, "socket", cfg.Socket.Path)
			assert.Equal(t, 30*time.Second, cfg.Socket.BackoffMax.D())
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(write(t, "wave.ini", "x=1"))
	assert.Error(t, err)

	_, err = Load(write(t, "wave.json", `{"socket":{"write_timeout":"soon"}}`))
	assert.Error(t, err)

	_, err = Load(write(t, "wave.json", `{"client":{"base_url":"ftp://wave.test"}}`))
	assert.Error(t, err)

	_, err = Load(write(t, "wave.json", `{"socket":{"backoff_min":"10s","backoff_max":"1s"}}`))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAVE_BASE_URL", "http://env.test:8080/")
	t.Setenv("WAVE_SESSION_TOKEN", "from-env")
	t.Setenv("WAVE_METRICS_ADDR", ":9100")

	cfg, err := Load(write(t, "wave.yaml", "client:\n  base_url: https://file.test/\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env.test:8080/", cfg.Client.BaseURL)
	assert.Equal(t, "from-env", cfg.Session.Token)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	want := Default()
	want.Client.BaseURL = "https://wave.test/"
	want.Session.TokenURL = "https://wave.test/token"
	want.Session.RefreshEvery = Duration(time.Minute)

	for _, name := range []string{"out.json", "out.yaml", "out.toml"} {
		p := filepath.Join(t.TempDir(), "nested", name)
		require.NoError(t, Save(p, want), name)
		got, err := Load(p)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestSocketConfig(t *testing.T) {
	cfg := Default()
	cfg.Socket.Path = "ws"
	cfg.Socket.PingInterval = 0
	cfg.Socket.DialsPerMinute = 120

	sc := cfg.SocketConfig(slog.Default())
	assert.Equal(t, "ws", sc.Path)
	assert.Zero(t, sc.PingInterval)
	assert.Equal(t, rate.Limit(2), sc.DialRate)
	assert.Equal(t, 5*time.Second, sc.WriteTimeout)
}

func TestTokens(t *testing.T) {
	t.Setenv("WAVE_TEST_TOKEN", "env-tok")

	cfg := Default()
	cfg.Session.TokenEnv = "WAVE_TEST_TOKEN"
	src, h := cfg.Tokens(slog.Default())
	assert.Nil(t, h)
	tok, ok := src.Token()
	require.True(t, ok)
	assert.Equal(t, "env-tok", tok)

	cfg.Session.Token = "explicit"
	cfg.Session.TokenURL = "http://127.0.0.1:1/token"
	src, h = cfg.Tokens(slog.Default())
	assert.NotNil(t, h)
	tok, _ = src.Token()
	assert.Equal(t, "explicit", tok)

	src, h = Config{}.Tokens(nil)
	assert.Nil(t, h)
	_, ok = src.Token()
	assert.False(t, ok)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.Level())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "WARN"}.Level())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "loud"}.Level())
}
