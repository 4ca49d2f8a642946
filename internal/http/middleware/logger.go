package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Logger logs each outbound HTTP call as one structured line.
// Fields:
// - request_id (set by the RequestID middleware)
// - method
// - path
// - status (0 when no response was received)
// - latency (in milliseconds, as float)
func Logger(l *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(req)

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFrom(req.Context())),
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", status),
				slog.Float64("latency", float64(time.Since(start).Microseconds())/1000),
			}
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			l.LogAttrs(context.Background(), level, "http_request", attrs...)

			return resp, err
		})
	}
}
