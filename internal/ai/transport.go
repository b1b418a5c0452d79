package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// transport is the retrying JSON POST shared by the HTTP runtimes.
type transport struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration

	// parseError extracts message and code from a non-2xx body.
	parseError func(status int, body []byte) *APIError
	// classify turns an APIError into a typed error once retries are spent.
	classify func(*APIError, *http.Response) error
	// netError wraps a transport failure that will not be retried.
	netError func(error) error
}

func newTransport(httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) transport {
	return transport{
		httpClient:       &http.Client{Timeout: httpTimeout},
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
		parseError:       parseNestedError,
		classify:         classifyAPIError,
		netError:         func(err error) error { return fmt.Errorf("http request: %w", err) },
	}
}

// post sends payload and decodes a 2xx body into out. 429 and 5xx responses
// and transient network errors are retried with capped exponential backoff;
// Retry-After is honored. It returns the provider request id.
func (t *transport) post(ctx context.Context, endpoint string, header http.Header, payload []byte, out any) (string, error) {
	maxAttempts := t.retryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := t.retryBaseDelay
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if isRetryableNetErr(err) && attempt < maxAttempts {
				lastErr = err
				if err := sleepCtx(ctx, t.capped(withJitter(backoff))); err != nil {
					return "", err
				}
				backoff *= 2
				continue
			}
			return "", t.netError(err)
		}

		reqID, wait, err := t.handle(resp, out)
		if err == nil {
			return reqID, nil
		}
		lastErr = err
		if wait < 0 || attempt == maxAttempts {
			break
		}
		if wait == 0 {
			wait = t.capped(withJitter(backoff))
			backoff *= 2
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// handle consumes one response. wait < 0 means the error is final; wait > 0
// is a server-requested delay.
func (t *transport) handle(resp *http.Response, out any) (string, time.Duration, error) {
	defer resp.Body.Close()
	reqID := extractRequestID(resp)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return "", -1, fmt.Errorf("decode response: %w", err)
		}
		return reqID, 0, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	apiErr := t.parseError(resp.StatusCode, body)
	apiErr.RequestID = reqID
	retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
	if !retryable {
		return "", -1, t.classify(apiErr, resp)
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
			d := time.Duration(secs) * time.Second
			return "", d, &RateLimitError{APIError: apiErr, RetryAfter: d}
		}
	}
	return "", 0, t.classify(apiErr, resp)
}

func (t *transport) capped(d time.Duration) time.Duration {
	if t.retryMaxDelay > 0 && d > t.retryMaxDelay {
		return t.retryMaxDelay
	}
	return d
}

// parseNestedError reads {"error":{"message","code"|"type"}} or a flat
// {"message","code"} body.
func parseNestedError(status int, body []byte) *APIError {
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: status, Raw: raw}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	} else if msg, ok := raw["error"].(string); ok {
		apiErr.Message = msg
	}
	if msg, ok := src["message"].(string); ok && apiErr.Message == "" {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	} else if typ, ok := src["type"].(string); ok {
		apiErr.Code = typ
	}
	return apiErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID returns the first provider request id header present.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter spreads d by ±20%.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}
