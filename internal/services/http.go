package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/hubsync/internal/shared"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// APIError is a non-success response from an upstream platform.
//
// Code is the error code carried in the body when the platform sends one; it takes precedence
// over StatusCode when classifying the error.
type APIError struct {
	Service    string
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
}

func (e *APIError) code() int {
	if e.Code != 0 {
		return e.Code
	}
	return e.StatusCode
}

// Unwrap maps the error onto the shared sentinels so callers can use [errors.Is].
func (e *APIError) Unwrap() error {
	switch e.code() {
	case http.StatusUnauthorized:
		return shared.ErrUnauthorized
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	default:
		return shared.ErrAPIRequest
	}
}

// newLimiter returns a limiter for rps requests per second, or nil for no pacing.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// requester performs paced JSON requests against one platform.
type requester struct {
	service    string
	httpClient *http.Client
	limiter    *rate.Limiter
	header     http.Header
}

func newHTTPClient(base *http.Client, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if base != nil {
		client.Transport = base.Transport
		if timeout == 0 {
			client.Timeout = base.Timeout
		}
	}
	return client
}

// do sends body (if any) as JSON and decodes a successful response into result.
// Non-success statuses are returned as [*APIError].
func (r *requester) do(ctx context.Context, method, url string, body, result any) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("request pacing: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %v", shared.ErrServiceUnavailable, r.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return r.errorFrom(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", shared.ErrAPIRequest, r.service, err)
	}
	return nil
}

// errorFrom builds an [*APIError] from a non-success response, reading the message from either
// {"message": ...} or {"error": {"code": ..., "message": ...}}.
func (r *requester) errorFrom(resp *http.Response) *APIError {
	apiErr := &APIError{Service: r.service, StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string         `json:"message"`
		Error   *envelopeError `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Message = body.Message
		if body.Error != nil {
			apiErr.Code = body.Error.Code
			if body.Error.Message != "" {
				apiErr.Message = body.Error.Message
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

// envelopeError is the {"error": {"code", "message"}} shape.
type envelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
