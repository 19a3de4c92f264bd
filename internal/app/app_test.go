package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"adgen/internal/apperrors"
	"adgen/internal/config"
	"adgen/internal/runtimecfg"
)

func baseConfig() config.Config {
	return config.Config{
		ImageProvider: "deepai",
		AuthProvider:  "mock",
		FreeLimit:     4,
		HistoryLimit:  50,
		HTTPTimeout:   time.Second,
	}
}

func TestBuildInMemory(t *testing.T) {
	a, err := Build(context.Background(), baseConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Auth)
	assert.NotNil(t, a.Payments)
	assert.Equal(t, 4, a.Gate.Limit())
	assert.Same(t, a.Gate, a.Pipeline.Gate())
}

func TestBuildWithRedisKeepsUsageThere(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisAddr = mr.Addr()

	a, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Gate.RecordGeneration(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "1", mr.HGet("usage:u1", "ads_used"))
}

func TestBuildFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := baseConfig()
	cfg.RedisAddr = addr

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRefusalsAreCounted(t *testing.T) {
	a, err := Build(context.Background(), baseConfig(), nil)
	require.NoError(t, err)

	assert.Error(t, a.Gate.Allow(context.Background(), ""))

	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "adgen_usage_refusals_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestApplyRuntimeConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.TextAPIKey = "env-text"

	out := ApplyRuntimeConfig(cfg, runtimecfg.Values{
		runtimecfg.KeyImageProvider: "gemini",
		runtimecfg.KeyImageAPIKey:   "gem-key-123",
	})

	assert.Equal(t, "env-text", out.TextAPIKey)
	assert.Equal(t, "gemini", out.ImageProvider)
	assert.Equal(t, "gem-key-123", out.GeminiAPIKey)
	assert.Equal(t, "gem-key-123", out.ImageKey())

	out = ApplyRuntimeConfig(cfg, runtimecfg.Values{runtimecfg.KeyImageProvider: "dalle", runtimecfg.KeyImageAPIKey: "deep-key"})
	assert.Equal(t, "deepai", out.ImageProvider)
	assert.Equal(t, "deep-key", out.ImageAPIKey)
}

func TestLoadRuntimeConfig(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(runtimecfg.Render(runtimecfg.Values{runtimecfg.KeyTextAPIKey: "sk-delivered"}))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.ConfigURL = srv.URL
	cfg.ConfigInterval = time.Millisecond
	cfg.ConfigAttempts = 3

	out, err := LoadRuntimeConfig(context.Background(), cfg, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "sk-delivered", out.TextAPIKey)

	same, err := LoadRuntimeConfig(context.Background(), baseConfig(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, baseConfig(), same)
}

func TestLoadRuntimeConfigUnavailable(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.ConfigURL = srv.URL
	cfg.ConfigInterval = time.Millisecond
	cfg.ConfigAttempts = 2

	_, err := LoadRuntimeConfig(context.Background(), cfg, srv.Client(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrConfigUnavailable))
}
