package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
)

const testKey = "sk-test-123456"

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(b)
}

func newTextServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *TextClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewTextClient(TextOptions{
		APIKey:     testKey,
		BaseURL:    srv.URL + "/v1",
		Model:      "test-model",
		HTTPClient: srv.Client(),
		Logger:     zaptest.NewLogger(t),
	})
	return srv, client
}

func TestGenerateTextSendsPromptAndNormalizes(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth, path string

	_, client := newTextServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatBody("**HEADLINE:** Shine Bright\nAD_TEXT: Feel amazing\nCTA: Buy now"))
	})

	text, err := client.GenerateText(context.Background(), glowForm())
	require.NoError(t, err)

	assert.Equal(t, creative.GeneratedText{Headline: "Shine Bright", AdText: "Feel amazing", CTA: "Buy now"}, text)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer "+testKey, auth)
	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.8, got.Temperature, 0.001)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "HEADLINE:")
}

func TestGenerateTextRejectsShortKeyWithoutCalling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewTextClient(TextOptions{APIKey: " abc ", BaseURL: srv.URL, HTTPClient: srv.Client()})

	_, err := client.GenerateText(context.Background(), glowForm())

	assert.True(t, errors.Is(err, apperrors.ErrAPIKeyMissing))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGenerateTextMapsHTTPStatus(t *testing.T) {
	_, client := newTextServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	})

	_, err := client.GenerateText(context.Background(), glowForm())

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindAPI, appErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
	assert.Contains(t, appErr.Body, "rate limited")
}

func TestGenerateTextMissingChoicesIsMalformed(t *testing.T) {
	_, client := newTextServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","choices":[]}`)
	})

	_, err := client.GenerateText(context.Background(), glowForm())

	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
}

func TestGenerateTextInvalidJSONIsMalformed(t *testing.T) {
	_, client := newTextServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := client.GenerateText(context.Background(), glowForm())

	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
}

func TestGenerateTextEmptyContentFallsBackToTemplate(t *testing.T) {
	_, client := newTextServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatBody(""))
	})

	text, err := client.GenerateText(context.Background(), glowForm())

	require.NoError(t, err)
	assert.Equal(t, Template(glowForm()), text)
}

func TestGenerateTextTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	client := NewTextClient(TextOptions{APIKey: testKey, BaseURL: base})

	_, err := client.GenerateText(context.Background(), glowForm())

	assert.True(t, errors.Is(err, apperrors.ErrNetwork), "got %v", err)
}

func TestGenerateVariationsDropsFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&n, 1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
			return
		}
		_, _ = io.WriteString(w, chatBody("HEADLINE: Sleep soundly tonight\nAD_TEXT: Keep every mosquito away.\nCTA: Order now"))
	}))
	defer srv.Close()

	client := NewTextClient(TextOptions{APIKey: testKey, BaseURL: srv.URL, HTTPClient: srv.Client()})

	got, err := client.GenerateVariations(context.Background(), glowForm(), 3)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, v := range got {
		assert.Equal(t, "Sleep soundly tonight", v.Headline)
	}
}

func TestGenerateVariationsAllFailed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 10))
	}))
	defer srv.Close()

	client := NewTextClient(TextOptions{APIKey: testKey, BaseURL: srv.URL, HTTPClient: srv.Client()})

	got, err := client.GenerateVariations(context.Background(), glowForm(), 3)

	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrAPI))
}
