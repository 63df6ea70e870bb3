package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "IMAGE_CACHE", "FETCH_TIMEOUT", "TOLERATE_TRUNCATION",
		"CAPABILITIES_TTL", "CAPABILITIES_CACHE_SIZE", "REDIS_POOL_SIZE", "REDIS_DIAL_TIMEOUT"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	require.Equal(t, ":8090", c.Addr)
	require.Equal(t, "memory", c.ImageCache)
	require.Equal(t, 10*time.Second, c.FetchTimeout)
	require.True(t, c.TolerateTruncation)
	require.Equal(t, 24*time.Hour, c.CapabilitiesTTL)
	require.Equal(t, 256, c.CapabilitiesSize)
	require.Equal(t, 64, c.RedisPoolSize)
	require.Equal(t, 2*time.Second, c.RedisDialTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("IMAGE_CACHE", "REDIS")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("TOLERATE_TRUNCATION", "no")
	t.Setenv("IMAGE_CACHE_SIZE", "not-a-number")
	t.Setenv("INVALIDATION_ENABLED", "1")
	c := FromEnv()
	require.Equal(t, "redis", c.ImageCache)
	require.Equal(t, 3*time.Second, c.FetchTimeout)
	require.False(t, c.TolerateTruncation)
	require.Equal(t, 512, c.ImageCacheSize)
	require.True(t, c.Invalidation.Enabled)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("testdata/catalog.yaml")
	require.NoError(t, err)

	require.Len(t, c.Services, 2)
	demo, ok := c.Service("demo")
	require.True(t, ok)
	require.Equal(t, "1.3.0", demo.Version)
	require.NotNil(t, demo.Capabilities)
	live, _ := c.Service("live")
	require.Equal(t, "alice", live.Username)
	require.Nil(t, live.Capabilities)

	require.Len(t, c.Layers, 2)
	places, hidden := c.Layers[0], c.Layers[1]
	require.True(t, places.IsEnabled())
	require.True(t, places.IsQueryable())
	require.Equal(t, 5, places.Resolution)
	require.Equal(t, 4326, places.TargetSRID)
	require.Equal(t, ReprojectToMerc, places.Reproject)
	require.False(t, hidden.IsEnabled())
	require.False(t, hidden.IsQueryable())
	require.Equal(t, 7, hidden.Resolution)
	require.Equal(t, 3857, hidden.TargetSRID)

	require.Equal(t, 3857, c.Render.SRID)
	require.Equal(t, 8, c.Render.Parallelism)
	require.True(t, c.Render.Transparent)
	require.True(t, c.Render.ContinueOnError)
	require.Equal(t, "#102030", c.Render.Background)

	static, err := c.StaticCapabilities()
	require.NoError(t, err)
	svc := static["http://wms.example.com/ows"]
	require.NotNil(t, svc)
	require.Equal(t, []string{"image/png", "image/jpeg"}, svc.GetMap.Formats)
	require.True(t, svc.GetMap.Methods[0].IsGet())
	_, ok = svc.Layers.FindLayer("water")
	require.True(t, ok)
	env, ok := svc.Layers.Envelope(3857)
	require.True(t, ok)
	require.Equal(t, 20037508.0, env.X2)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"dup service": "services:\n  - {name: a, url: http://x}\n  - {name: a, url: http://y}\n",
		"no url":      "services:\n  - {name: a}\n",
		"no source":   "layers:\n  - {name: a}\n",
		"dup layer":   "layers:\n  - {name: a, source: x}\n  - {name: A, source: y}\n",
		"resolution":  "layers:\n  - {name: a, source: x, resolution: 16}\n",
		"reproject":   "layers:\n  - {name: a, source: x, reproject: utm}\n",
		"background":  "render:\n  background: red\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		p := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		_, err := LoadCatalog(p)
		require.ErrorIs(t, err, ErrInvalidCatalog, name)
	}

	_, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadCatalog_EmptyPathUsesDefaults(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	require.Empty(t, c.Services)
	require.Equal(t, 4326, c.Render.SRID)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#102030")
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xFF}, c)

	c, err = ParseColor("0xFFFFFF80")
	require.NoError(t, err)
	require.Equal(t, uint8(0x80), c.A)

	_, err = ParseColor("#12")
	require.Error(t, err)
	_, err = ParseColor("#GGGGGG")
	require.Error(t, err)
}
