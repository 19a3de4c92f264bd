// Package web serves the ad form, the JSON API behind it and the
// operational endpoints.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"adgen/internal/config"
	"adgen/internal/history"
	"adgen/internal/identity"
	"adgen/internal/metrics"
	"adgen/internal/payments"
	"adgen/internal/pipeline"
	"adgen/internal/runtimecfg"
	"adgen/internal/session"
)

//go:embed static/*
var staticFS embed.FS

const maxBodyBytes = 1 << 20

type Options struct {
	Auth     identity.Authenticator
	Pipeline *pipeline.Pipeline
	Sessions *session.Store
	History  history.Store
	Payments *payments.Service
	Metrics  *metrics.Metrics
	// Config is served at /config.js.
	Config runtimecfg.Values
	Logger *zap.Logger
}

type server struct {
	auth     identity.Authenticator
	pipeline *pipeline.Pipeline
	sessions *session.Store
	history  history.Store
	payments *payments.Service
	config   runtimecfg.Values
	logger   *zap.Logger
}

// NewRouter wires every route onto a chi router.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.Options{})
	}
	s := &server{
		auth:     opts.Auth,
		pipeline: opts.Pipeline,
		sessions: sessions,
		history:  opts.History,
		payments: opts.Payments,
		config:   opts.Config,
		logger:   logger.Named("web"),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	r.Get("/config.js", s.handleConfig)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withUser)

		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/signout", s.handleSignOut)
		r.Post("/generate", s.handleGenerate)
		r.Post("/variations", s.handleVariations)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/me", s.handleMe)
			r.Get("/history", s.handleHistory)
			r.Post("/ads", s.handleSaveAd)
			if s.payments != nil {
				r.Post("/orders", s.handleCreateOrder)
				r.Post("/payments/verify", s.handleVerifyPayment)
			}
		})
	})

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/*", http.FileServer(http.FS(static)))

	return r
}

// NewServer wraps handler with the timeouts used in production. The write
// timeout leaves room for a slow image backend.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}
}

// ConfigValues picks what /config.js exposes. Credentials are included only
// when exposeKeys is set.
func ConfigValues(cfg config.Config) runtimecfg.Values {
	v := runtimecfg.Values{
		runtimecfg.KeyImageProvider:      cfg.ImageProvider,
		runtimecfg.KeyAuthProvider:       cfg.AuthProvider,
		runtimecfg.KeyRazorpayKeyID:      cfg.RazorpayKeyID,
		runtimecfg.KeyFirebaseAPIKey:     cfg.FirebaseAPIKey,
		runtimecfg.KeyFirebaseAuthDomain: cfg.FirebaseAuthDomain,
		runtimecfg.KeyFirebaseProjectID:  cfg.FirebaseProjectID,
	}
	if cfg.ExposeAPIKeys {
		v[runtimecfg.KeyTextAPIKey] = cfg.TextAPIKey
		v[runtimecfg.KeyImageAPIKey] = cfg.ImageKey()
	}
	return v
}
