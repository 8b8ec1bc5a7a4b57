package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/wavesocket/internal/config"
)

func TestConfigInit(t *testing.T) {
	t.Setenv("WAVE_BASE_URL", "")
	p := filepath.Join(t.TempDir(), "wave.toml")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", p})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "wrote")

	cfg, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Client, cfg.Client)

	root = newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "init", p})
	assert.Error(t, root.Execute(), "existing file is not overwritten")
}

func TestReadFields(t *testing.T) {
	got, err := readFields("-", strings.NewReader(`{"waveletName":"w+1/conv+root","ops":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "w+1/conv+root", got["waveletName"])

	_, err = readFields("-", strings.NewReader(`[1]`))
	assert.Error(t, err)
	_, err = readFields("-", strings.NewReader(`null`))
	assert.Error(t, err)
	_, err = readFields(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestWatchRequiresWaveID(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"watch"})
	assert.Error(t, root.Execute())
}
