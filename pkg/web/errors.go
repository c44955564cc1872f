package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"

	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/router"
)

// APIError represents a user-friendly error response
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

// Error codes for categorization
const (
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeHelixError    = "HELIX_ERROR"
	ErrCodeDatabaseError = "DATABASE_ERROR"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// Common error messages with user-friendly suggestions
var errorMessages = map[string]struct {
	Message    string
	Suggestion string
}{
	ErrCodeInternalError: {
		Message:    "An internal error occurred",
		Suggestion: "Please try again. If the problem persists, check the server logs.",
	},
	ErrCodeBadRequest: {
		Message: "Invalid request",
	},
	ErrCodeUnauthorized: {
		Message:    "Authentication required",
		Suggestion: "Log in with the console admin credentials to perform changes.",
	},
	ErrCodeForbidden: {
		Message:    "Access denied",
		Suggestion: "You don't have permission to perform this action.",
	},
	ErrCodeNotFound: {
		Message:    "Resource not found",
		Suggestion: "The requested cluster, resource or instance doesn't exist or may have been deleted.",
	},
	ErrCodeConflict: {
		Message:    "Conflict",
		Suggestion: "The entity already exists or was changed concurrently. Reload and try again.",
	},
	ErrCodeValidation: {
		Message: "Validation failed",
	},
	ErrCodeHelixError: {
		Message:    "Helix service error",
		Suggestion: "Check that helix-rest is running and reachable from the console.",
	},
	ErrCodeDatabaseError: {
		Message:    "Audit database error",
		Suggestion: "Check the storage settings and that the audit database is reachable.",
	},
	ErrCodeTimeout: {
		Message:    "Request timed out",
		Suggestion: "The Helix service took too long to answer. Try again in a moment.",
	},
	ErrCodeRateLimited: {
		Message:    "Rate limit exceeded",
		Suggestion: "You've made too many requests. Please wait a moment before trying again.",
	},
}

// NewAPIError creates a new API error with a user-friendly message
func NewAPIError(code string, detail string) *APIError {
	info, ok := errorMessages[code]
	if !ok {
		code = ErrCodeInternalError
		info = errorMessages[ErrCodeInternalError]
	}

	return &APIError{
		Code:       code,
		Message:    info.Message,
		Detail:     detail,
		Suggestion: info.Suggestion,
		StatusCode: getStatusCodeForError(code),
	}
}

// NewAPIErrorWithSuggestion creates a new API error with a custom suggestion
func NewAPIErrorWithSuggestion(code, detail, suggestion string) *APIError {
	err := NewAPIError(code, detail)
	if suggestion != "" {
		err.Suggestion = suggestion
	}
	return err
}

func getStatusCodeForError(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeHelixError:
		return http.StatusBadGateway
	case ErrCodeDatabaseError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes an API error to the response
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}

// WriteErrorSimple writes a simple error message
func WriteErrorSimple(w http.ResponseWriter, statusCode int, message string) {
	code := ErrCodeInternalError
	switch statusCode {
	case http.StatusBadRequest:
		code = ErrCodeBadRequest
	case http.StatusUnauthorized:
		code = ErrCodeUnauthorized
	case http.StatusForbidden:
		code = ErrCodeForbidden
	case http.StatusNotFound:
		code = ErrCodeNotFound
	}

	err := NewAPIError(code, message)
	err.StatusCode = statusCode
	WriteError(w, err)
}

// ParseHelixError converts navigation and Helix client errors to API errors.
func ParseHelixError(err error) *APIError {
	if err == nil {
		return nil
	}

	detail := err.Error()
	var (
		serr *helix.StatusError
		rerr *router.ResolveError
	)
	switch {
	case errors.Is(err, router.ErrNoMatch):
		return NewAPIErrorWithSuggestion(ErrCodeNotFound, detail,
			"No console page exists at this address. Start again from /clusters.")
	case errors.Is(err, router.ErrRedirectLoop):
		return NewAPIError(ErrCodeInternalError, detail)
	case errors.Is(err, context.DeadlineExceeded):
		return NewAPIError(ErrCodeTimeout, detail)
	case helix.IsNotFound(err):
		apiErr := NewAPIError(ErrCodeNotFound, detail)
		if errors.As(err, &rerr) && rerr.Key != "" {
			apiErr.Suggestion = fmt.Sprintf("The %s could not be loaded. It may have been deleted.", rerr.Key)
		}
		return apiErr
	case errors.Is(err, syscall.ECONNREFUSED):
		return NewAPIErrorWithSuggestion(ErrCodeHelixError, detail,
			"Cannot connect to helix-rest. Check helix.endpoint and that the service is running.")
	case errors.As(err, &serr):
		switch serr.StatusCode {
		case http.StatusBadRequest:
			return NewAPIErrorWithSuggestion(ErrCodeBadRequest, detail, "Helix rejected the request as invalid.")
		case http.StatusConflict:
			return NewAPIError(ErrCodeConflict, detail)
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAPIErrorWithSuggestion(ErrCodeHelixError, detail,
				"helix-rest refused the console's credentials.")
		}
		return NewAPIError(ErrCodeHelixError, detail)
	case strings.Contains(detail, "no such host"):
		return NewAPIErrorWithSuggestion(ErrCodeHelixError, detail,
			"The helix-rest host could not be resolved. Check helix.endpoint.")
	default:
		return NewAPIError(ErrCodeHelixError, detail)
	}
}

// BadRequest writes a 400 Bad Request error response
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, NewAPIError(ErrCodeBadRequest, message))
}

// NotFound writes a 404 Not Found error response
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, NewAPIError(ErrCodeNotFound, message))
}

// HelixError writes an error response for a failed backend call
func HelixError(w http.ResponseWriter, err error) {
	WriteError(w, ParseHelixError(err))
}

// MethodNotAllowed writes a 405 Method Not Allowed response
func MethodNotAllowed(w http.ResponseWriter, allowedMethods ...string) {
	if len(allowedMethods) > 0 {
		w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	}
	WriteErrorSimple(w, http.StatusMethodNotAllowed, "Method not allowed")
}
