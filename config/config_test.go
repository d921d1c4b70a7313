package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Progress)
	assert.True(t, cfg.CopyUnmappedVideo)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartcut.yaml")
	data := "log_level: debug\nprogress: false\nkeyframe_scan_limit: 5000\ncopy_unmapped_video: false\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Progress)
	assert.False(t, cfg.NoColor)
	assert.Equal(t, 5000, cfg.KeyframeScanLimit)
	assert.False(t, cfg.CopyUnmappedVideo)
}

func TestLoadRejectsNegativeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartcut.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keyframe_scan_limit: -1\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartcut.yaml")
	cfg := Default()
	cfg.NoColor = true
	require.NoError(t, cfg.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestContext(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))
	cfg := &Config{LogLevel: "warn"}
	assert.Same(t, cfg, FromContext(WithConfig(context.Background(), cfg)))
}
