package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed         = errors.New("download failed after all attempts") // Wraps the last underlying error
	ErrSkipped             = errors.New("download skipped")                   // Terminal, non-retryable outcome
	ErrClientHTTPError     = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError     = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError      = errors.New("other HTTP error (non-2xx)")
	ErrParsing             = errors.New("parsing error") // Wraps header/link/timestamp parsing failures
	ErrFilesystem          = errors.New("filesystem error")
	ErrDatabase            = errors.New("database error")
	ErrRequestCreation     = errors.New("failed to create HTTP request")
	ErrResponseBodyRead    = errors.New("failed to read response body")
	ErrConfigValidation    = errors.New("configuration validation error")
	ErrUnknownConversation = errors.New("unknown conversation id")
	ErrIndexUnreadable     = errors.New("conversation index unreadable")
	ErrMetadataRewrite     = errors.New("metadata rewrite failed")
)

// WrapErrorf wraps a sentinel with a formatted message.
func WrapErrorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for the run ledger and logs.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		// The retry error wraps both the sentinel and the last attempt's error
		switch {
		case errors.Is(err, ErrServerHTTPError):
			return "RetryFailed_HTTPServer"
		case errors.Is(err, ErrClientHTTPError):
			return "RetryFailed_HTTPClient"
		case errors.Is(err, ErrOtherHTTPError):
			return "RetryFailed_HTTPOther"
		case errors.Is(err, ErrResponseBodyRead):
			return "RetryFailed_BodyRead"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RetryFailed_NetworkTimeout"
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "RetryFailed_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "RetryFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "RetryFailed_DNSLookup"
		}
		if err == ErrRetryFailed {
			return "RetryFailed_Unknown"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrSkipped):
		if errors.Is(err, ErrRequestCreation) {
			return "Skipped_RequestCreation"
		}
		return "Skipped"
	case errors.Is(err, ErrUnknownConversation):
		return "Name_UnknownConversation"
	case errors.Is(err, ErrIndexUnreadable):
		return "Name_IndexUnreadable"
	case errors.Is(err, ErrMetadataRewrite):
		return "Metadata_Rewrite"
	case errors.Is(err, ErrClientHTTPError):
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "header") {
			return "Parse_Header"
		}
		if strings.Contains(errMsg, "link") {
			return "Parse_Link"
		}
		if strings.Contains(errMsg, "timestamp") {
			return "Parse_Timestamp"
		}
		return "Parse_Other"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}

	return "Unknown"
}
