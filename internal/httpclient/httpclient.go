package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration
	UserAgent  string
	Logger     *zap.Logger
}

// New returns the client shared by every outbound integration. Requests are
// logged at debug level with their upstream host, status and latency.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "adgen/1.0"
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &loggingTransport{
			next:      transport,
			userAgent: userAgent,
			logger:    logger.Named("http"),
		},
	}
}

type loggingTransport struct {
	next      http.RoundTripper
	userAgent string
	logger    *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int64("dur_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		t.logger.Debug("outbound request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.logger.Debug("outbound request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
