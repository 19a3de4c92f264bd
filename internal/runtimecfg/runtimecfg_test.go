package runtimecfg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"adgen/internal/apperrors"
)

func TestRenderAndParse(t *testing.T) {
	script := Render(Values{KeyTextAPIKey: "sk-123456", KeyRazorpayKeyID: "rzp", KeyImageAPIKey: ""})

	assert.Equal(t, "window.__ADGEN_CONFIG__ = {\"razorpayKeyId\":\"rzp\",\"textApiKey\":\"sk-123456\"};\n", string(script))

	v, err := Parse(script)
	require.NoError(t, err)
	assert.Equal(t, Values{KeyTextAPIKey: "sk-123456", KeyRazorpayKeyID: "rzp"}, v)
	assert.Equal(t, "", v.Get(KeyImageAPIKey))
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "window.x = 1;", "} {", "{not json}"} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestLoaderRetriesUntilDelivered(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(Render(Values{KeyTextAPIKey: "sk-abcdef"}))
	}))
	defer srv.Close()

	l := NewLoader(LoaderOptions{URL: srv.URL, Interval: 5 * time.Millisecond, Attempts: 10, HTTPClient: srv.Client(), Logger: zaptest.NewLogger(t)})

	v, err := l.Start(context.Background()).Await(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "sk-abcdef", v.Get(KeyTextAPIKey))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLoaderGivesUpAfterAttempts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("window.__ADGEN_CONFIG__ = undefined;"))
	}))
	defer srv.Close()

	l := NewLoader(LoaderOptions{URL: srv.URL, Interval: time.Millisecond, Attempts: 4, HTTPClient: srv.Client()})

	_, err := l.Start(context.Background()).Await(context.Background())

	assert.True(t, errors.Is(err, apperrors.ErrConfigUnavailable))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestAwaitHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pollCtx, stop := context.WithCancel(context.Background())
	f := NewLoader(LoaderOptions{URL: srv.URL, Interval: time.Hour, Attempts: 50, HTTPClient: srv.Client()}).Start(pollCtx)

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Await(waitCtx)
	assert.True(t, errors.Is(err, apperrors.ErrConfigUnavailable))

	stop()
	<-f.Done()
	_, err = f.Await(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrConfigUnavailable))
}
