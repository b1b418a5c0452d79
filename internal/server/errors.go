package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/KaramelBytes/vizqa/internal/ai"
	"github.com/KaramelBytes/vizqa/internal/insight"
	"github.com/KaramelBytes/vizqa/internal/loader"
	"github.com/KaramelBytes/vizqa/internal/session"
	"github.com/KaramelBytes/vizqa/internal/viz"
)

// requestError carries an explicit status for malformed requests.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps pipeline and provider errors to HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr  *requestError
		readErr *loader.ReadError
		execErr *viz.ExecError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, errAPIKeyRequired):
		return http.StatusUnauthorized
	case errors.Is(err, loader.ErrUnsupportedFormat),
		errors.As(err, &readErr),
		errors.Is(err, session.ErrNoDataset),
		errors.Is(err, session.ErrNotCleaned),
		errors.Is(err, viz.ErrEmptyPrompt),
		errors.Is(err, viz.ErrEmptyTable),
		errors.Is(err, insight.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.Is(err, viz.ErrNoCode), errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if status, ok := ai.UpstreamStatus(err); ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError is the single place where errors become HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	var rlErr *ai.RateLimitError
	if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rlErr.RetryAfter.Seconds()))))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
