// Package generation talks to the text and image models and repairs their
// output into fixed-shape records.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
	"adgen/internal/prompt"
)

const (
	defaultTextModel   = "gpt-4o-mini"
	defaultTemperature = 0.8
)

type TextOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// TextClient generates ad copy through an OpenAI-compatible chat
// completions endpoint.
type TextClient struct {
	apiKey      string
	model       string
	temperature float32
	client      *openai.Client
	logger      *zap.Logger
}

func NewTextClient(opts TextOptions) *TextClient {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultTextModel
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	cfg.HTTPClient = withStatusErrors(httpClient)

	return &TextClient{
		apiKey:      opts.APIKey,
		model:       model,
		temperature: float32(temperature),
		client:      openai.NewClientWithConfig(cfg),
		logger:      logger.Named("text"),
	}
}

// GenerateText asks the model for copy and normalises whatever it returns.
func (c *TextClient) GenerateText(ctx context.Context, form creative.FormData) (creative.GeneratedText, error) {
	if err := CheckKey("text API key", c.apiKey); err != nil {
		return creative.GeneratedText{}, err
	}

	raw, err := c.complete(ctx, prompt.BuildTextPrompt(form))
	if err != nil {
		return creative.GeneratedText{}, err
	}
	return Normalize(raw, form), nil
}

// GenerateVariations issues n independent text calls concurrently. Failed
// calls are dropped; an error is returned only when every call failed.
func (c *TextClient) GenerateVariations(ctx context.Context, form creative.FormData, n int) ([]creative.GeneratedText, error) {
	if err := CheckKey("text API key", c.apiKey); err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}

	p := prompt.BuildTextPrompt(form)
	results := make([]*creative.GeneratedText, n)

	var (
		mu      sync.Mutex
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			raw, err := c.complete(gctx, p)
			if err != nil {
				c.logger.Debug("variation dropped", zap.Int("index", i), zap.Error(err))
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			text := Normalize(raw, form)
			results[i] = &text
			return nil
		})
	}
	_ = g.Wait()

	out := make([]creative.GeneratedText, 0, n)
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

func (c *TextClient) complete(ctx context.Context, content string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		mapped := mapTextError(ctx, err)
		c.logger.Warn("text generation failed",
			zap.String("model", c.model),
			zap.String("kind", string(mapped.Kind)),
			zap.Error(err),
		)
		return "", mapped
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.MalformedResponse("text response has no choices")
	}

	c.logger.Debug("text generated",
		zap.String("model", c.model),
		zap.Int("chars", len(resp.Choices[0].Message.Content)),
		zap.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return resp.Choices[0].Message.Content, nil
}

func mapTextError(ctx context.Context, err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.API(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.API(reqErr.HTTPStatusCode, reqErr.Error())
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Network(err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return apperrors.Network(err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperrors.MalformedResponse("text response is not valid JSON")
	}

	return apperrors.Network(err)
}

// withStatusErrors returns a copy of client whose transport turns non-2xx
// responses into ApiError values carrying the upstream status and body.
func withStatusErrors(client *http.Client) *http.Client {
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	cp := *client
	cp.Transport = &statusTransport{next: next}
	return &cp
}

type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, apperrors.API(resp.StatusCode, string(body))
}
