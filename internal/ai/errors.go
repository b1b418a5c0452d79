package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthError is a rejected credential (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError is a 429. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError means the model name (or local tag) does not exist.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError is a 400 the provider will not accept on retry, such as an
// oversized image or prompt.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError is a billing or credit problem on the provider account.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError is a 5xx that survived all retries.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError is a connection failure, typically a local Ollama that is
// not running.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// UpstreamStatus maps a provider error to the HTTP status a gateway should
// answer with. ok is false for errors that did not come from a provider.
func UpstreamStatus(err error) (status int, ok bool) {
	var (
		authErr *AuthError
		rlErr   *RateLimitError
		qErr    *QuotaExceededError
		nfErr   *ModelNotFoundError
		brErr   *BadRequestError
		sErr    *ServerError
		unreach *UnreachableError
		apiErr  *APIError
	)
	switch {
	case errors.Is(err, ErrNoAPIKey), errors.As(err, &authErr):
		return http.StatusUnauthorized, true
	case errors.As(err, &rlErr), errors.As(err, &qErr):
		return http.StatusTooManyRequests, true
	case errors.As(err, &nfErr), errors.As(err, &brErr), errors.As(err, &sErr), errors.As(err, &unreach), errors.As(err, &apiErr):
		return http.StatusBadGateway, true
	default:
		return 0, false
	}
}

// classifyAPIError turns a non-2xx response into one of the typed errors
// above. Quota problems are checked before the generic 400 because Anthropic
// reports an empty credit balance as invalid_request_error.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if apiErr.Code == "model_not_found" || apiErr.Code == "not_found_error" || containsFold(apiErr.Message, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case apiErr.Code == "quota_exceeded" || containsAnyFold(apiErr.Message, "quota", "billing", "credit balance"):
		return &QuotaExceededError{APIError: apiErr}
	case sc == http.StatusBadRequest || sc == http.StatusRequestEntityTooLarge:
		return &BadRequestError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// containsFold reports whether s contains every sub, ignoring case.
func containsFold(s string, subs ...string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, sub := range subs {
		if !strings.Contains(s, strings.ToLower(sub)) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}
