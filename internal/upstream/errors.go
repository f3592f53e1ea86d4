package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes returned by the backend in the "detail" field
const (
	CodeInvalidCredentials    = "invalid_credentials"
	CodeEmailNotVerified      = "email_not_verified"
	CodePhoneNotVerified      = "phone_not_verified"
	CodeRateLimited           = "rate_limited"
	CodeUserNotFound          = "user_not_found"
	CodeEmailInUse            = "email_in_use"
	CodePhoneInUse            = "phone_in_use"
	CodeTokenInvalid          = "token_invalid"
	CodeTokenExpiredOrRevoked = "token_expired_or_revoked"
	CodeMissingRefreshToken   = "missing_refresh_token"
	CodeMissingToken          = "missing_token"
	CodeForbidden             = "forbidden"
)

var messages = map[string]string{
	CodeInvalidCredentials:    "Invalid email or password. Please check your credentials and try again.",
	CodeEmailNotVerified:      "Please verify your email address before logging in. Check your inbox for a verification link.",
	CodePhoneNotVerified:      "Please verify your phone number before logging in.",
	CodeRateLimited:           "Too many attempts. Please wait a few minutes before trying again.",
	CodeUserNotFound:          "No account found with this email address.",
	CodeEmailInUse:            "An account with this email address already exists. Please use a different email or try logging in.",
	CodePhoneInUse:            "An account with this phone number already exists.",
	CodeTokenInvalid:          "Invalid or expired token.",
	CodeTokenExpiredOrRevoked: "Your session has expired. Please log in again.",
	CodeMissingRefreshToken:   "Your session has expired. Please log in again.",
	CodeMissingToken:          "A token is required for this action.",
	CodeForbidden:             "You don't have permission to perform this action.",
}

const genericMessage = "An unexpected error occurred. Please try again."

// ErrUnavailable wraps transport failures talking to the backend
var ErrUnavailable = errors.New("upstream unavailable")

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Code       string // decoded "detail" code, may be empty
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Body)
}

// Message returns a user facing message for the error
func (e *APIError) Message() string {
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return messages[CodeRateLimited]
	}
	return genericMessage
}

// Unauthorized reports a 401 from the backend
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// UserMessage returns a message suitable for showing to users for any error
// produced by this package.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	if errors.Is(err, ErrUnavailable) {
		return "The service is temporarily unavailable. Please try again shortly."
	}
	return genericMessage
}

// newAPIError decodes FastAPI style bodies: {"detail": "code"},
// {"detail": [{"msg": "..."}]} or {"detail": {"code": "..."}}.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var code string
	if err := json.Unmarshal(envelope.Detail, &code); err == nil {
		apiErr.Code = code
		return apiErr
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &list); err == nil && len(list) > 0 {
		apiErr.Code = list[0].Msg
		return apiErr
	}

	var obj struct {
		Code      string `json:"code"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(envelope.Detail, &obj); err == nil {
		if obj.Code != "" {
			apiErr.Code = obj.Code
		} else {
			apiErr.Code = obj.ErrorCode
		}
	}

	return apiErr
}
