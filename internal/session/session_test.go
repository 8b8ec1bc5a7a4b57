package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	tok, ok := Static("T123").Token()
	assert.True(t, ok)
	assert.Equal(t, "T123", tok)

	_, ok = Static("  ").Token()
	assert.False(t, ok)
}

func TestEnv(t *testing.T) {
	t.Setenv("WAVE_TEST_TOKEN", "abc")
	tok, ok := Env("WAVE_TEST_TOKEN").Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = Env("WAVE_TEST_TOKEN_MISSING").Token()
	assert.False(t, ok)
}

func TestFirst(t *testing.T) {
	tok, ok := First{Static(""), nil, Static("b")}.Token()
	assert.True(t, ok)
	assert.Equal(t, "b", tok)

	_, ok = First{}.Token()
	assert.False(t, ok)
}

func TestHTTP_RefreshWithETag(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`{"sessionToken":"tok-1"}`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPConfig{URL: srv.URL, Bearer: "secret", Field: "sessionToken"})
	_, ok := h.Token()
	assert.False(t, ok)

	require.NoError(t, h.Refresh(context.Background()))
	tok, ok := h.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	require.NoError(t, h.Refresh(context.Background()))
	tok, _ = h.Token()
	assert.Equal(t, "tok-1", tok)
	assert.EqualValues(t, 2, hits.Load())
}

func TestHTTP_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/denied":
			http.Error(w, "nope", http.StatusUnauthorized)
		case "/empty":
			_, _ = w.Write([]byte(`{"other":1}`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/denied", "/empty", "/garbage"} {
		h := NewHTTP(HTTPConfig{URL: srv.URL + path})
		assert.Error(t, h.Refresh(context.Background()), path)
		_, ok := h.Token()
		assert.False(t, ok, path)
	}
}

func TestHTTP_StartStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"x"}`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPConfig{URL: srv.URL})
	require.NoError(t, h.Start(context.Background(), 0))
	require.NoError(t, h.Start(context.Background(), 0), "second start is a no-op")
	tok, _ := h.Token()
	assert.Equal(t, "x", tok)
	h.Stop()
	h.Stop()
}
