// Package gemini renders ad images with the Gemini image model.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"adgen/internal/apperrors"
)

const modelImage = "gemini-2.5-flash-image"

const systemInstruction = `You are an advertising art director.
Produce one finished advertising image per request.
Return the image only: no text reply, no JSON, no links.`

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = modelImage
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		apiVersion: apiVersion,
		model:      model,
		httpClient: opts.HTTPClient,
		logger:     logger.Named("gemini"),
	}
}

// Generate returns the first image of the response as a data: URL.
func (c *Client) Generate(ctx context.Context, prompt, aspectRatio string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperrors.Internal(errors.New("image prompt is empty"))
	}
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}

	req := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: systemInstruction}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: aspectRatio},
		},
	}

	images, err := c.generateContent(ctx, req)
	if err != nil && isUnknownFieldError(err, "imageConfig") {
		c.logger.Debug("imageConfig rejected, retrying without it")
		req.GenerationConfig.ImageConfig = nil
		images, err = c.generateContent(ctx, req)
	}
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", apperrors.MalformedResponse("gemini response has no inline image")
	}
	return images[0], nil
}

func (c *Client) generateContent(ctx context.Context, payload generateContentRequest) ([]string, error) {
	if c.httpClient == nil {
		return nil, apperrors.Internal(errors.New("http client is nil"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.Network(err)
	}

	if httpResp.StatusCode >= 400 {
		c.logger.Warn("gemini request failed", zap.Int("status", httpResp.StatusCode), zap.String("model", c.model))
		return nil, apperrors.API(httpResp.StatusCode, string(rawBody))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return nil, apperrors.MalformedResponse("gemini response is not valid JSON")
	}
	return extractImages(decoded), nil
}

func extractImages(resp generateContentResponse) []string {
	if len(resp.Candidates) == 0 {
		return nil
	}

	var images []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" && p.InlineData.MimeType != "" {
			images = append(images, fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data))
		}
	}
	return images
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func isUnknownFieldError(err error, field string) bool {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindAPI {
		return false
	}
	return strings.Contains(appErr.Body, "Unknown name") && strings.Contains(appErr.Body, field)
}
