package webui

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"imagestream/logging"
)

// LoggingMiddleware logs each HTTP request with method, path, status code
// and duration, and forwards the same entry to any additional RequestLoggers
// (such as the metrics recorder).
type LoggingMiddleware struct {
	loggers   []RequestLogger
	skipPaths map[string]bool
}

// RequestLogger receives one entry per completed request.
type RequestLogger interface {
	LogRequest(entry RequestLogEntry)
}

// RequestLogEntry contains all information about a logged HTTP request.
type RequestLogEntry struct {
	Timestamp     time.Time
	Method        string
	Path          string
	Route         string // bounded route label, see routeLabel
	StatusCode    int
	Duration      time.Duration
	RemoteAddr    string
	UserAgent     string
	ContentLength int64
}

// ZapRequestLogger writes request entries to a logging.Logger. 5xx responses
// log at error level, 4xx at warn, everything else at debug.
type ZapRequestLogger struct {
	Logger *logging.Logger
}

// LogRequest implements RequestLogger.
func (z ZapRequestLogger) LogRequest(entry RequestLogEntry) {
	fields := []zap.Field{
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Int("status", entry.StatusCode),
		zap.Duration("duration", entry.Duration),
		zap.String("remote_addr", entry.RemoteAddr),
		zap.Int64("bytes", entry.ContentLength),
	}
	switch {
	case entry.StatusCode >= 500:
		z.Logger.Error("HTTP request", fields...)
	case entry.StatusCode >= 400:
		z.Logger.Warn("HTTP request", fields...)
	default:
		z.Logger.Debug("HTTP request", fields...)
	}
}

// HTTPRecorder is implemented by metrics.Collector.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, d time.Duration)
}

// MetricsRequestLogger records request counts and latencies by route.
type MetricsRequestLogger struct {
	Recorder HTTPRecorder
}

// LogRequest implements RequestLogger.
func (m MetricsRequestLogger) LogRequest(entry RequestLogEntry) {
	m.Recorder.RecordHTTPRequest(entry.Method, entry.Route, entry.StatusCode, entry.Duration)
}

// LoggingMiddlewareConfig holds configuration for the LoggingMiddleware.
type LoggingMiddlewareConfig struct {
	// Loggers receive every entry in order.
	Loggers []RequestLogger

	// SkipPaths are paths to skip (default: none)
	SkipPaths []string
}

// NewLoggingMiddlewareWithConfig creates a LoggingMiddleware with custom configuration.
func NewLoggingMiddlewareWithConfig(config LoggingMiddlewareConfig) *LoggingMiddleware {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return &LoggingMiddleware{
		loggers:   config.Loggers,
		skipPaths: skipPaths,
	}
}

// Handler wraps next with request logging.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		entry := RequestLogEntry{
			Timestamp:     start,
			Method:        r.Method,
			Path:          r.URL.Path,
			Route:         routeLabel(r.URL.Path),
			StatusCode:    wrapped.statusCode,
			Duration:      time.Since(start),
			RemoteAddr:    getClientIP(r),
			UserAgent:     r.UserAgent(),
			ContentLength: wrapped.bytesWritten,
		}
		for _, l := range m.loggers {
			l.LogRequest(entry)
		}
	})
}

// knownRoutes keeps the metrics path label bounded.
var knownRoutes = map[string]bool{
	PathGenerate:    true,
	PathGenerations: true,
	PathProxyImages: true,
	PathHealth:      true,
	PathMetrics:     true,
	PathWebSocket:   true,
}

// routeLabel maps a request path to a bounded metrics label.
func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriterWrapper captures the status code and body size.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("webui: response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return hijacker.Hijack()
}

// getClientIP prefers X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
