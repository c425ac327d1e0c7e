package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type loggerKey struct{}

// NewContext returns a copy of ctx that carries logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request scoped logger, or the process default
// tagged "unknown" when none was attached.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// AccessLogger writes one record per finished HTTP request.
type AccessLogger struct {
	logger *Logger
	// Quiet paths are logged at debug level, e.g. health probes.
	quiet map[string]bool
}

func NewAccessLogger(logger *Logger, quietPaths ...string) *AccessLogger {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}
	return &AccessLogger{logger: logger.WithComponent(ComponentHTTP), quiet: quiet}
}

func (a *AccessLogger) level(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case a.quiet[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Finished logs the outcome of r.
func (a *AccessLogger) Finished(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(status, elapsed.Milliseconds()).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	a.logger.Logger.Log(ctx, a.level(r.URL.Path, status), "HTTP request completed", fields.ToSlice()...)
}
