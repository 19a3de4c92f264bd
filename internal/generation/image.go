package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
	"adgen/internal/prompt"
)

// ImageBackend renders an image prompt and returns a URL (http(s) or data:).
type ImageBackend interface {
	Generate(ctx context.Context, imagePrompt, aspectRatio string) (string, error)
}

// ReferenceSource supplies visual context for the image prompt.
type ReferenceSource interface {
	Search(ctx context.Context, form creative.FormData) (creative.ReferenceAnalysis, error)
}

// FallbackObserver is told when the reference search failed and the
// static default was used.
type FallbackObserver func(err error)

type ImageOptions struct {
	APIKey     string
	Backend    ImageBackend
	References ReferenceSource
	OnFallback FallbackObserver
	Logger     *zap.Logger
}

// ImageClient builds the image prompt and hands it to a backend.
type ImageClient struct {
	apiKey     string
	backend    ImageBackend
	references ReferenceSource
	onFallback FallbackObserver
	logger     *zap.Logger
}

func NewImageClient(opts ImageOptions) *ImageClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageClient{
		apiKey:     opts.APIKey,
		backend:    opts.Backend,
		references: opts.References,
		onFallback: opts.OnFallback,
		logger:     logger.Named("image"),
	}
}

// GenerateImage returns the URL of a freshly generated ad image.
func (c *ImageClient) GenerateImage(ctx context.Context, form creative.FormData) (string, error) {
	if err := CheckKey("image API key", c.apiKey); err != nil {
		return "", err
	}
	if c.backend == nil {
		return "", apperrors.Internal(errors.New("image backend is not configured"))
	}

	ref := c.reference(ctx, form)
	f := form.WithDefaults()
	return c.backend.Generate(ctx, prompt.BuildImagePrompt(f, ref), prompt.AspectRatioFor(f.AdFormat))
}

// reference never fails: any search problem degrades to the static preset.
func (c *ImageClient) reference(ctx context.Context, form creative.FormData) creative.ReferenceAnalysis {
	base := prompt.Analyze(form)
	if c.references == nil {
		return base
	}

	found, err := c.references.Search(ctx, form)
	if err != nil {
		c.logger.Debug("reference search failed, using preset", zap.Error(err))
		if c.onFallback != nil {
			c.onFallback(err)
		}
		return base
	}
	return MergeReference(base, found)
}

// MergeReference layers search findings over a preset. Found colours and
// elements come first; style and composition stay with the preset.
func MergeReference(base, found creative.ReferenceAnalysis) creative.ReferenceAnalysis {
	out := base
	out.DominantColors = mergeCapped(found.DominantColors, base.DominantColors, 5)
	out.CommonElements = mergeCapped(base.CommonElements, found.CommonElements, 6)
	if len(found.StyleKeywords) > 0 {
		out.StyleKeywords = mergeCapped(base.StyleKeywords, found.StyleKeywords, 6)
	}
	if strings.TrimSpace(found.Composition) != "" {
		out.Composition = found.Composition
	}
	return out
}

func mergeCapped(first, second []string, limit int) []string {
	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]string, 0, limit)
	for _, list := range [][]string{first, second} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			if len(out) == limit {
				return out
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

type DeepAIOptions struct {
	APIKey     string
	URL        string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// DeepAI posts the prompt as a multipart form to a text2img endpoint.
type DeepAI struct {
	apiKey     string
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewDeepAI(opts DeepAIOptions) *DeepAI {
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint == "" {
		endpoint = "https://api.deepai.org/api/text2img"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeepAI{
		apiKey:     strings.TrimSpace(opts.APIKey),
		url:        endpoint,
		httpClient: httpClient,
		logger:     logger.Named("deepai"),
	}
}

// Generate ignores aspectRatio; the endpoint has no such parameter.
func (d *DeepAI) Generate(ctx context.Context, imagePrompt, _ string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("text", imagePrompt); err != nil {
		return "", apperrors.Internal(err)
	}
	if err := mw.Close(); err != nil {
		return "", apperrors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("api-key", d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Network(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn("image generation failed", zap.Int("status", resp.StatusCode))
		return "", apperrors.API(resp.StatusCode, string(raw))
	}

	var decoded struct {
		ID        string `json:"id"`
		OutputURL string `json:"output_url"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apperrors.MalformedResponse("image response is not valid JSON")
	}
	if strings.TrimSpace(decoded.OutputURL) == "" {
		return "", apperrors.MalformedResponse("image response has no output_url")
	}
	return decoded.OutputURL, nil
}
