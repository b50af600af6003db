package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/practiceops/servicecatalog/internal/common/httpx"
)

// SetTimeout bounds the request context by timeout. Handlers observe the
// deadline through ctx; if nothing has been written when it expires the
// client receives 408.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := httpx.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if ctx.Err() == context.DeadlineExceeded && !rw.Written() {
				httpx.ErrRequestTimeout().Send(rw)
			}
		})
	}
}

// LimitBody caps request bodies at limit bytes. Reads past the limit fail
// with *http.MaxBytesError, which httpx.GetRequestData maps to 413.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
