package logger

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// statusRecorder captures the status code and body size of a response
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// requestAttrs collects attributes handlers add to the request log line
type requestAttrs struct {
	mu    sync.Mutex
	attrs []any
}

const requestAttrsKey contextKey = "request_attrs"

// AddRequestAttrs attaches key/value pairs to the http_request line logged
// for the current request, e.g. the id of a job a webhook delivery created.
// Outside HTTPMiddleware it does nothing.
func AddRequestAttrs(ctx context.Context, args ...any) {
	ra, ok := ctx.Value(requestAttrsKey).(*requestAttrs)
	if !ok {
		return
	}
	ra.mu.Lock()
	ra.attrs = append(ra.attrs, args...)
	ra.mu.Unlock()
}

// HTTPMiddleware tags each request with an ID and logs it once it completes.
// Health checks are served but not logged.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Relays may supply their own id for correlation
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		reqLogger := Default().With("request_id", requestID)
		extra := &requestAttrs{}
		ctx := WithRequestID(r.Context(), requestID)
		ctx = WithLogger(ctx, reqLogger)
		ctx = context.WithValue(ctx, requestAttrsKey, extra)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		if isHealthCheck(r.URL.Path) {
			return
		}

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_bytes", r.ContentLength,
			"response_bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		extra.mu.Lock()
		attrs = append(attrs, extra.attrs...)
		extra.mu.Unlock()

		reqLogger.Log(r.Context(), level, "http_request", attrs...)
	})
}

func isHealthCheck(path string) bool {
	return path == "/healthz"
}
