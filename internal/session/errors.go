package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/meowecho-tech/vote/internal/apperr"
)

var ErrNoRefreshToken = apperr.New(apperr.KindAuthentication, "no_refresh_token", "no refresh token available")

// APIError is a non-2xx response from the election API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

func (e *APIError) ErrorCode() string { return e.Code }

// codeNotEditable is sent with 409 when a non-draft election is modified. It
// is a lifecycle refusal, so it classifies with the authorization failures.
const codeNotEditable = "not_editable"

func (e *APIError) Kind() apperr.Kind {
	switch {
	case e.Status == http.StatusConflict && e.Code == codeNotEditable:
		return apperr.KindAuthorization
	case e.Status == http.StatusUnauthorized:
		return apperr.KindAuthentication
	case e.Status == http.StatusForbidden:
		return apperr.KindAuthorization
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return apperr.KindValidation
	case e.Status == http.StatusNotFound:
		return apperr.KindNotFound
	case e.Status == http.StatusConflict:
		return apperr.KindConflict
	case e.Status == http.StatusTooManyRequests:
		return apperr.KindRateLimited
	case e.Status >= 500:
		return apperr.KindServer
	default:
		return apperr.KindUnknown
	}
}

// TransportError means no response was observed.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Kind() apperr.Kind { return apperr.KindTransport }

// Indeterminate reports whether the server may have applied the request even
// though the caller saw a failure.
func Indeterminate(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindTransport, apperr.KindServer:
		return true
	default:
		return false
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type errorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Error
		apiErr.Details = parsed.Details
		return apiErr
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		apiErr.Message = text
	} else {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
