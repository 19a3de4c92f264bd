package runtimecfg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"adgen/internal/apperrors"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultAttempts = 50
)

type LoaderOptions struct {
	URL        string
	Interval   time.Duration
	Attempts   int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Loader fetches the config script until it is delivered or the attempts
// run out.
type Loader struct {
	url        string
	interval   time.Duration
	attempts   int
	httpClient *http.Client
	logger     *zap.Logger
}

func NewLoader(opts LoaderOptions) *Loader {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		url:        opts.URL,
		interval:   interval,
		attempts:   attempts,
		httpClient: httpClient,
		logger:     logger.Named("runtimecfg"),
	}
}

// Future resolves once the config is delivered or abandoned.
type Future struct {
	done   chan struct{}
	once   sync.Once
	values Values
	err    error
}

func (f *Future) resolve(v Values, err error) {
	f.once.Do(func() {
		f.values, f.err = v, err
		close(f.done)
	})
}

// Done is closed when the future has resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future resolves or ctx ends. Both failure paths
// report ConfigUnavailable.
func (f *Future) Await(ctx context.Context) (Values, error) {
	select {
	case <-f.done:
		return f.values, f.err
	case <-ctx.Done():
		return nil, apperrors.ConfigUnavailable(ctx.Err())
	}
}

// Start begins polling in the background. Cancelling ctx stops polling and
// resolves the future with ConfigUnavailable.
func (l *Loader) Start(ctx context.Context) *Future {
	f := &Future{done: make(chan struct{})}
	go l.poll(ctx, f)
	return f
}

func (l *Loader) poll(ctx context.Context, f *Future) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		select {
		case <-ctx.Done():
			f.resolve(nil, apperrors.ConfigUnavailable(ctx.Err()))
			return
		case <-timer.C:
		}

		values, err := l.fetch(ctx)
		if err == nil {
			l.logger.Debug("runtime config delivered", zap.Int("attempt", attempt), zap.Int("keys", len(values)))
			f.resolve(values, nil)
			return
		}
		lastErr = err
		timer.Reset(l.interval)
	}

	l.logger.Warn("runtime config unavailable", zap.Int("attempts", l.attempts), zap.Error(lastErr))
	f.resolve(nil, apperrors.ConfigUnavailable(lastErr))
}

func (l *Loader) fetch(ctx context.Context) (Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return Parse(body)
}
