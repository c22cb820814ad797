package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError is a classified failure from a backend API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // quota exhaustion; rate limits are transient
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a transient rate limit
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 && !apiErr.IsPermanent
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// IsQuotaError checks if an error is quota exhaustion
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota") || strings.Contains(msg, "billing")
}

// ExtractAPIError classifies a 429 from the error text, parsing the embedded
// JSON error body when present. Other errors return nil.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "429") {
		return nil
	}

	apiErr := &APIError{StatusCode: 429, Message: msg, Type: "rate_limit_error"}
	start, end := strings.Index(msg, "{"), strings.LastIndex(msg, "}")
	if start != -1 && end > start {
		var body struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		}
		if json.Unmarshal([]byte(msg[start:end+1]), &body) == nil {
			apiErr.Message = body.Message
			apiErr.Type = body.Type
			apiErr.Code = body.Code
			apiErr.IsPermanent = body.Code == "insufficient_quota"
		}
	}

	retry := time.Minute
	if apiErr.IsPermanent {
		retry = time.Hour
	}
	apiErr.RetryAfter = &retry
	return apiErr
}

// GetRetryDelay returns an exponential backoff for attempt (0-based) scaled
// by the error class: quota from 1h capped at 24h, rate limit from 60s capped
// at 15m, anything else from 5s capped at 5m
func GetRetryDelay(err error, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}
	factor := time.Duration(1) << uint(attempt)

	switch {
	case IsQuotaError(err):
		return minDuration(time.Hour*factor, 24*time.Hour)
	case IsRateLimitError(err):
		delay := minDuration(time.Minute*factor, 15*time.Minute)
		if apiErr := ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil && *apiErr.RetryAfter > delay {
			delay = *apiErr.RetryAfter
		}
		return delay
	default:
		return minDuration(5*time.Second*factor, 5*time.Minute)
	}
}

// IsRetryable reports whether a backend error is worth retrying later
func IsRetryable(err error) bool {
	return err != nil && !IsQuotaError(err)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
