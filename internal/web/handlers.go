package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
	"adgen/internal/identity"
	"adgen/internal/payments"
	"adgen/internal/runtimecfg"
	"adgen/internal/session"
)

type errorResponse struct {
	Error   apperrors.Kind `json:"error"`
	Message string         `json:"message"`
	Status  int            `json:"status"`
	Field   string         `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	e := apperrors.As(err)
	status := apperrors.HTTPStatus(e)
	writeJSON(w, status, errorResponse{
		Error:   e.Kind,
		Message: apperrors.UserMessage(e),
		Status:  status,
		Field:   e.Field,
	})
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Validation("body")
	}
	return nil
}

// sessionFor returns the process session of u. Anonymous callers get a
// throwaway one.
func (s *server) sessionFor(u identity.User, ok bool) *session.Session {
	if !ok {
		return &session.Session{}
	}
	return s.sessions.Get(u.ID, u.Email)
}

func (s *server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(runtimecfg.Render(s.config))
}

func (s *server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.fail(w, r, apperrors.ConfigUnavailable(errors.New("no identity provider")))
		return
	}
	var creds identity.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.auth.SignIn(r.Context(), creds)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.SignOut(bearerToken(r))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.UserFrom(r.Context())
	status, err := s.pipeline.Gate().Status(r.Context(), u.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "usage": status})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var form creative.FormData
	if err := decodeJSON(w, r, &form); err != nil {
		s.fail(w, r, err)
		return
	}
	u, ok := identity.UserFrom(r.Context())
	res, err := s.pipeline.Generate(r.Context(), s.sessionFor(u, ok), form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type variationsRequest struct {
	creative.FormData
	Count int `json:"count,omitempty"`
}

func (s *server) handleVariations(w http.ResponseWriter, r *http.Request) {
	var req variationsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, ok := identity.UserFrom(r.Context())
	out, err := s.pipeline.Variations(r.Context(), s.sessionFor(u, ok), req.FormData, req.Count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variations": out})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.UserFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"records": []creative.AdRecord{}})
		return
	}
	records, err := s.history.List(r.Context(), u.ID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if records == nil {
		records = []creative.AdRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleSaveAd stores a record posted by a client. The owner is always the
// caller, whatever the body says.
func (s *server) handleSaveAd(w http.ResponseWriter, r *http.Request) {
	var rec creative.AdRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := rec.FormData.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	u, _ := identity.UserFrom(r.Context())
	rec.UserID = u.ID
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if s.history != nil {
		if err := s.history.Append(r.Context(), rec); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, rec)
}

type orderRequest struct {
	PlanKey string `json:"planKey"`
}

func (s *server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.PlanKey == "" {
		req.PlanKey = payments.PlanPremiumMonthly
	}
	u, _ := identity.UserFrom(r.Context())
	order, err := s.payments.CreateOrder(r.Context(), u.ID, req.PlanKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req payments.Verification
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, _ := identity.UserFrom(r.Context())
	status, err := s.payments.Confirm(r.Context(), u.ID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": status})
}
