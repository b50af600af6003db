package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/practiceops/servicecatalog/internal/common/apperrors"
)

// Error represents an HTTP error response with status code and description.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// Failure represents the error result code in error responses.
const Failure int = 0

// Send writes the error response to w. A nil writer is ignored.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{
		Result: Failure,
		Error:  e.Description,
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error as an HTTP error response.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}
	httperror.Send(w)
}

func newError(status int, def string, msg ...string) *Error {
	s := def
	if len(msg) > 0 && msg[0] != "" {
		s = msg[0]
	}
	return &Error{Description: s, StatusCode: status}
}

// ErrReqMethodNotSupported returns an error for unsupported HTTP methods.
func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "request method not supported")
}

// ErrUnableToParseReqData returns an error when request data cannot be parsed.
func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "unable to parse request data")
}

// ErrApplicationError returns an error for application-level failures.
func ErrApplicationError(msg ...string) *Error {
	return newError(http.StatusInternalServerError, "unable to process request", msg...)
}

// ErrInvalidRequest returns an error for invalid request data.
func ErrInvalidRequest(msg ...string) *Error {
	return newError(http.StatusBadRequest, "invalid request data or empty request values", msg...)
}

// ErrNotFound returns an error for a missing resource.
func ErrNotFound(msg ...string) *Error {
	return newError(http.StatusNotFound, "not found", msg...)
}

// ErrInvalidTenantId returns an error for invalid tenant ID.
func ErrInvalidTenantId() *Error {
	return newError(http.StatusBadRequest, "invalid tenant id")
}

// ErrServiceUnavailable returns an error when a dependency is down.
func ErrServiceUnavailable(msg ...string) *Error {
	return newError(http.StatusServiceUnavailable, "service unavailable", msg...)
}

// ErrRequestTimeout returns an error for request timeout.
func ErrRequestTimeout() *Error {
	return newError(http.StatusRequestTimeout, "request timed out")
}

// ErrRequestTooLarge returns an error when request body exceeds size limit.
func ErrRequestTooLarge(limit int64) *Error {
	return newError(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large (limit: %d bytes)", limit))
}
