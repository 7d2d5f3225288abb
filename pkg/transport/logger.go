// Package transport contains http.RoundTripper middlewares for the outbound
// API client.
package transport

import (
	"net/http"
	"time"

	"techlookup/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request identifier sent upstream.
const RequestIDHeader = "X-Request-Id"

// RoundTripperFunc allows using a function as an http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// WithLogger returns a round tripper that tags each request with a request
// ID and logs an access line at debug level once the response headers arrive.
// Header values are never logged since they carry the API key.
func WithLogger(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, requestID)
		}
		ctx := logger.WithFields(r.Context(), zap.String("request_id", requestID))

		start := time.Now()
		resp, err := next.RoundTrip(r)
		if err != nil {
			logger.Debug(ctx, "API request failed",
				zap.Error(err),
				zap.Float64("latency", time.Since(start).Seconds()),
				zap.String("method", r.Method),
				zap.String("url", r.URL.String()),
			)

			return nil, err
		}

		logger.Debug(ctx, "API access log",
			zap.Int("status_code", resp.StatusCode),
			zap.Float64("latency", time.Since(start).Seconds()),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
		)

		return resp, nil
	})
}
