package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "data-variant", cfg.MarkerAttribute)
	assert.Equal(t, []string{"cdn.shopify.com"}, cfg.CDNHosts)
	assert.Len(t, cfg.ProxyTemplates, 2)
	assert.Equal(t, 1920, cfg.PadWidth)
	assert.Equal(t, 1080, cfg.PadHeight)
	assert.Equal(t, 8192, cfg.PadMaxDimension)
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("CDN_HOSTS", "cdn.shopify.com, images.example.net ,")
	t.Setenv("PAD_WIDTH", "-4")
	t.Setenv("ARCHIVE_S3_ENDPOINT", "minio:9000")
	t.Setenv("ARCHIVE_S3_BUCKET", "archives")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, []string{"cdn.shopify.com", "images.example.net"}, cfg.CDNHosts)
	assert.Equal(t, 1920, cfg.PadWidth, "非正数回退到默认值")
	assert.True(t, cfg.Archive.Enabled())
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_CONCURRENT", "abc")
	t.Setenv("PAD_HEIGHT", "10px")
	t.Setenv("MAX_IMAGE_BYTES", "lots")
	t.Setenv("BROWSER_ENABLED", "maybe")
	t.Setenv("PAD_MAX_DIMENSION", "4096")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.MaxConcurrent)
	assert.Equal(t, 1080, cfg.PadHeight)
	assert.Equal(t, int64(20<<20), cfg.MaxImageBytes)
	assert.False(t, cfg.BrowserEnabled)
	assert.Equal(t, 4096, cfg.PadMaxDimension)
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"空字符串", "", nil},
		{"单项", "a", []string{"a"}},
		{"多项带空白", " a , b,,c ", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}
