package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jt05610/lathe/metrics"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestID is the response header carrying the ID logged for each request.
const RequestID = "X-Request-Id"

// Logging logs every request at Debug, or at Warn when it fails, and counts it
// by status code.
func Logging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestID, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metrics.Requests.WithLabelValues(strconv.Itoa(rec.status)).Inc()
		fields := []zap.Field{
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		}
		if rec.status >= http.StatusBadRequest {
			logger.Warn("Request failed", fields...)
			return
		}
		logger.Debug("Handled request", fields...)
	})
}
