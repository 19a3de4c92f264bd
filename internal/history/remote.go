package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
)

// RemoteStore posts each record to a save-ad endpoint. It cannot list.
type RemoteStore struct {
	url        string
	httpClient *http.Client
}

func NewRemoteStore(url string, httpClient *http.Client) *RemoteStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RemoteStore{url: strings.TrimSpace(url), httpClient: httpClient}
}

func (s *RemoteStore) Append(ctx context.Context, rec creative.AdRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperrors.API(resp.StatusCode, string(raw))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *RemoteStore) List(context.Context, string, int) ([]creative.AdRecord, error) {
	return nil, errors.New("remote history does not support listing")
}
