package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fashionfolio/portfolio-auth/infrastructure/http/response"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

// RequestLogMiddleware logs one line per request once the handler returns.
func RequestLogMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			statusCode := recorder.statusCode
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": statusCode,
				"bytes":       recorder.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
				"ip":          ClientIP(r),
			}
			switch {
			case statusCode >= 500:
				log.Error(r.Context(), "HTTP request completed", nil, fields)
			case statusCode >= 400:
				log.Warn(r.Context(), "HTTP request completed", fields)
			default:
				log.Info(r.Context(), "HTTP request completed", fields)
			}
		})
	}
}

// RecoverMiddleware turns a handler panic into a 500 envelope. When the
// handler already started the response, the panic is only logged.
func RecoverMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
					"method":          r.Method,
					"path":            r.URL.Path,
					"response_status": recorder.statusCode,
				})
				if recorder.statusCode != 0 {
					return
				}
				response.InternalServerError(w, "Internal server error")
			}()
			next.ServeHTTP(recorder, r)
		})
	}
}
