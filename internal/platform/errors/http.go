package errors

// HTTP-specific helpers for mapping upstream status codes to project ErrorCode and retry semantics

import (
	"context"
	stderrs "errors"
	"net/http"
)

// CodeFromHTTPStatus maps an upstream response status to an ErrorCode
// 2xx has no meaningful code and maps to Unknown
func CodeFromHTTPStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrorCodeForbidden
	case status == http.StatusNotFound:
		return ErrorCodeNotFound
	case status == http.StatusTooManyRequests:
		return ErrorCodeTooManyRequests
	case status >= 500 && status <= 599:
		return ErrorCodeUnavailable
	case status >= 400 && status <= 499:
		return ErrorCodeInvalidArgument
	default:
		return ErrorCodeUnknown
	}
}

// IsCanceled reports whether err stems from the caller giving up
// A per-request client timeout is not a cancellation; it surfaces as Unavailable
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return stderrs.Is(err, context.Canceled) || IsCode(err, ErrorCodeCanceled)
}

// Retryable reports whether the error is worth one more attempt
// Only transient server side failures qualify; 4xx and cancellations never do
func Retryable(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	return IsCode(err, ErrorCodeUnavailable)
}
