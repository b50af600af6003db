// Package httpx adapts request handlers that return (*Response, error) to
// net/http, mapping apperrors status codes onto JSON error bodies.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/common/apperrors"
)

// GetRequestData decodes a JSON request body into data. Only POST, PUT and
// PATCH carry bodies.
func GetRequestData(r *http.Request, data any) error {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrRequestTooLarge(maxErr.Limit)
		}
		log.Ctx(r.Context()).Debug().Err(err).Msg("unable to decode request body")
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response describes a successful handler result.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
	Headers     map[string]string
}

// RequestHandler handles a request and returns either a Response or an error.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp converts a RequestHandler into an http.HandlerFunc.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendAnyError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		for k, v := range rsp.Headers {
			w.Header().Set(k, v)
		}
		if rsp.StatusCode == http.StatusNotModified || rsp.StatusCode == http.StatusNoContent {
			w.WriteHeader(rsp.StatusCode)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch rsp.ContentType {
		case "application/json":
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case "text/plain", "text/csv":
			body, ok := rsp.Response.(string)
			if !ok {
				ErrApplicationError("unsupported response body").Send(w)
				return
			}
			w.Header().Set("Content-Type", rsp.ContentType+"; charset=utf-8")
			if rsp.StatusCode == http.StatusCreated && len(location) > 0 {
				w.Header().Set("Location", location[0])
			}
			w.WriteHeader(rsp.StatusCode)
			if _, err := w.Write([]byte(body)); err != nil {
				log.Ctx(r.Context()).Error().Err(err).Msg("unable to write response")
			}
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

// SendAnyError writes err as a JSON error response. *Error values are sent
// as is, apperrors.Error values use their status code (500 when unset), and
// anything else becomes a 500.
func SendAnyError(w http.ResponseWriter, err error) {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		httpErr.Send(w)
		return
	}
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		SendError(w, appErr)
		return
	}
	log.Error().Err(err).Msg("unhandled error")
	ErrApplicationError().Send(w)
}
