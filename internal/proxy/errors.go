package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Code identifies one failure class in the closed error taxonomy. Codes are
// the only failure detail that crosses the caller boundary; raw causes stay
// in server-side logs.
type Code string

const (
	CodeInvalidURL       Code = "invalid_url"
	CodeProtocolBlocked  Code = "protocol_blocked"
	CodeSSRFBlocked      Code = "ssrf_blocked"
	CodeDNSFailed        Code = "dns_failed"
	CodeTimeout          Code = "timeout"
	CodeTooManyRedirects Code = "too_many_redirects"
	CodeResponseTooLarge Code = "response_too_large"
	CodeUpstreamRefused  Code = "upstream_refused"
	CodeUpstreamError    Code = "upstream_error"
	CodeRateLimited      Code = "rate_limited"
	CodeInternal         Code = "internal_error"
)

// Error is a classified fetch failure. Message is safe to show an end user;
// the wrapped cause is for logging only and must never be serialized.
type Error struct {
	Code    Code
	Message string
	Hop     int // redirect hop the failure occurred on, 0 for the origin URL
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// newError builds a classified error with an internal cause attached.
func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HTTPStatus maps an error code to the status the proxy endpoint answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidURL, CodeProtocolBlocked:
		return http.StatusBadRequest
	case CodeSSRFBlocked:
		return http.StatusForbidden
	case CodeDNSFailed, CodeUpstreamRefused, CodeUpstreamError, CodeTooManyRedirects:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeResponseTooLarge:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// classifyTransport maps a low-level transport failure to a taxonomy code.
// Structured error types are inspected first; nothing here relies on the
// error's text.
func classifyTransport(err error) *Error {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return newError(CodeDNSFailed, "the hostname could not be resolved", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeTimeout, "the request timed out", err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return newError(CodeUpstreamRefused, "the server refused the connection", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CodeTimeout, "the request timed out", err)
	}
	// Dial-guard rejections surface as transport errors; keep their class.
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return newError(CodeUpstreamError, "the request could not be completed", err)
}

// Classify maps a (statusCode, message) pair observed by a client of the
// proxy into a taxonomy code. Status and embedded codes are authoritative;
// substring matching on the message is a brittle last resort kept only for
// responses produced outside this service (gateways, load balancers).
func Classify(statusCode int, message string) Code {
	if code := parseCode(message); code != "" {
		return code
	}
	switch statusCode {
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return CodeTimeout
	case http.StatusForbidden:
		return CodeSSRFBlocked
	case http.StatusBadRequest:
		return CodeInvalidURL
	case http.StatusBadGateway:
		return CodeUpstreamError
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return CodeTimeout
	case strings.Contains(lower, "redirect"):
		return CodeTooManyRedirects
	case strings.Contains(lower, "resolve"), strings.Contains(lower, "dns"):
		return CodeDNSFailed
	case strings.Contains(lower, "rate limit"):
		return CodeRateLimited
	}
	return CodeInternal
}

// parseCode recognizes an exact taxonomy code embedded in a message.
func parseCode(message string) Code {
	switch Code(strings.TrimSpace(message)) {
	case CodeInvalidURL, CodeProtocolBlocked, CodeSSRFBlocked, CodeDNSFailed,
		CodeTimeout, CodeTooManyRedirects, CodeResponseTooLarge,
		CodeUpstreamRefused, CodeUpstreamError, CodeRateLimited, CodeInternal:
		return Code(strings.TrimSpace(message))
	}
	return ""
}
