// Package app wires the shared services used by both binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"adgen/internal/config"
	"adgen/internal/gemini"
	"adgen/internal/generation"
	"adgen/internal/history"
	"adgen/internal/httpclient"
	"adgen/internal/identity"
	"adgen/internal/metrics"
	"adgen/internal/payments"
	"adgen/internal/pipeline"
	"adgen/internal/runtimecfg"
	"adgen/internal/session"
	"adgen/internal/usage"
)

const redisPingTimeout = 5 * time.Second

type App struct {
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Gate       *usage.Gate
	History    history.Store
	Sessions   *session.Store
	Pipeline   *pipeline.Pipeline
	Auth       identity.Authenticator
	Payments   *payments.Service

	redis *redis.Client
}

// Build constructs every service from cfg. Redis is used for usage and
// history when REDIS_ADDR is set; otherwise state lives in memory.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
			Logger:     logger,
		}),
		Metrics:  metrics.New(),
		Sessions: session.NewStore(session.Options{}),
	}

	var usageStore usage.Store = usage.NewMemoryStore()
	var historyStores []history.Store
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		usageStore = usage.NewRedisStore(a.redis)
		historyStores = append(historyStores, history.NewRedisStore(a.redis, cfg.HistoryLimit))
	} else {
		historyStores = append(historyStores, history.NewMemoryStore(cfg.HistoryLimit))
	}
	if cfg.SaveAdURL != "" {
		historyStores = append(historyStores, history.NewRemoteStore(cfg.SaveAdURL, a.HTTPClient))
	}
	a.History = history.NewTee(logger, historyStores...)

	a.Gate = usage.NewGate(usage.Options{
		Store:     usageStore,
		FreeLimit: cfg.FreeLimit,
		OnRefusal: func(reason usage.GateState) { a.Metrics.ObserveRefusal(string(reason)) },
		Logger:    logger,
	})

	a.Pipeline = pipeline.New(pipeline.Options{
		Text:       newTextClient(cfg, a.HTTPClient, logger),
		Image:      newImageClient(cfg, a.HTTPClient, a.Metrics, logger),
		Gate:       a.Gate,
		History:    a.History,
		Metrics:    a.Metrics,
		Logger:     logger,
		Timeout:    cfg.RequestTimeout,
		Variations: cfg.VariationCount,
	})

	auth, err := newAuthenticator(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Auth = auth

	a.Payments = payments.NewService(payments.ServiceOptions{
		Orders: payments.NewRazorpayClient(payments.RazorpayOptions{
			KeyID:      cfg.RazorpayKeyID,
			KeySecret:  cfg.RazorpayKeySecret,
			BaseURL:    cfg.RazorpayBaseURL,
			HTTPClient: a.HTTPClient,
		}),
		Verifier: payments.NewVerifier(cfg.RazorpayKeySecret),
		Upgrader: a.Gate,
		Logger:   logger,
	})

	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func newTextClient(cfg config.Config, httpClient *http.Client, logger *zap.Logger) *generation.TextClient {
	return generation.NewTextClient(generation.TextOptions{
		APIKey:      cfg.TextAPIKey,
		BaseURL:     cfg.TextBaseURL,
		Model:       cfg.TextModel,
		Temperature: cfg.TextTemperature,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
}

func newImageClient(cfg config.Config, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *generation.ImageClient {
	var backend generation.ImageBackend
	if cfg.ImageProvider == "gemini" {
		backend = gemini.New(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	} else {
		backend = generation.NewDeepAI(generation.DeepAIOptions{
			APIKey:     cfg.ImageAPIKey,
			URL:        cfg.ImageURL,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}

	return generation.NewImageClient(generation.ImageOptions{
		APIKey:  cfg.ImageKey(),
		Backend: backend,
		References: generation.NewReferenceSearcher(generation.SearchOptions{
			ProxyURL:   cfg.SearchProxyURL,
			SearchURL:  cfg.SearchURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		OnFallback: func(error) { m.ObserveReferenceFallback() },
		Logger:     logger,
	})
}

func newAuthenticator(ctx context.Context, cfg config.Config, logger *zap.Logger) (identity.Authenticator, error) {
	sessions := identity.NewSessionTable(0)
	if cfg.AuthProvider != "firebase" {
		return identity.NewMock(sessions), nil
	}
	verifier, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	if err != nil {
		return nil, err
	}
	return identity.NewFirebase(verifier, sessions, logger), nil
}

// ApplyRuntimeConfig overlays delivered values on cfg. Empty values leave
// the environment setting in place.
func ApplyRuntimeConfig(cfg config.Config, v runtimecfg.Values) config.Config {
	if key := v.Get(runtimecfg.KeyTextAPIKey); key != "" {
		cfg.TextAPIKey = key
	}
	if p := v.Get(runtimecfg.KeyImageProvider); p == "deepai" || p == "gemini" {
		cfg.ImageProvider = p
	}
	if key := v.Get(runtimecfg.KeyImageAPIKey); key != "" {
		if cfg.ImageProvider == "gemini" {
			cfg.GeminiAPIKey = key
		} else {
			cfg.ImageAPIKey = key
		}
	}
	if id := v.Get(runtimecfg.KeyRazorpayKeyID); id != "" {
		cfg.RazorpayKeyID = id
	}
	return cfg
}

// LoadRuntimeConfig fetches delivered values when cfg.ConfigURL is set and
// overlays them on cfg.
func LoadRuntimeConfig(ctx context.Context, cfg config.Config, httpClient *http.Client, logger *zap.Logger) (config.Config, error) {
	if cfg.ConfigURL == "" {
		return cfg, nil
	}
	future := runtimecfg.NewLoader(runtimecfg.LoaderOptions{
		URL:        cfg.ConfigURL,
		Interval:   cfg.ConfigInterval,
		Attempts:   cfg.ConfigAttempts,
		HTTPClient: httpClient,
		Logger:     logger,
	}).Start(ctx)

	values, err := future.Await(ctx)
	if err != nil {
		return cfg, err
	}
	return ApplyRuntimeConfig(cfg, values), nil
}
