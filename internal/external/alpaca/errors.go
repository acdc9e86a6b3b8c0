package alpaca

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wonny/aegis-us/pkg/httputil"
)

// ErrNotCancelable is returned when a cancel is requested for an order
// whose status no longer allows it.
var ErrNotCancelable = errors.New("order is not cancelable")

// APIError is a non-2xx response from the brokerage
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("alpaca: status %d: code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("alpaca: status %d: %s", e.StatusCode, e.Message)
}

// NotFound reports a 404 from the brokerage
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// newAPIError reads the brokerage error body; bodies that are not the
// usual {"code","message"} object are kept verbatim as the message.
func newAPIError(statusErr *httputil.StatusError) *APIError {
	apiErr := &APIError{StatusCode: statusErr.StatusCode}

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(statusErr.Body, &body); err == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		return apiErr
	}

	apiErr.Message = string(statusErr.Body)
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusErr.StatusCode)
	}
	return apiErr
}
