package httpclient

import (
	"net/http"
	"strings"
	"time"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/core/proxy"

	"go.uber.org/zap"
)

// MaskedValue replaces secret header values in logs.
const MaskedValue = "********"

var sensitiveHeaderParts = []string{"auth", "token", "key"}

// IsSensitiveHeader reports whether a header name looks like it carries a secret.
func IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, part := range sensitiveHeaderParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// MaskHeaders flattens headers into a map with secret values masked.
func MaskHeaders(h http.Header) map[string]string {
	masked := make(map[string]string, len(h))
	for name, values := range h {
		if IsSensitiveHeader(name) {
			masked[name] = MaskedValue
			continue
		}
		masked[name] = strings.Join(values, ", ")
	}
	return masked
}

// LoggingRoundTripper captures request details for debugging.
type LoggingRoundTripper struct {
	// Proxied is the underlying RoundTripper to execute the request.
	Proxied http.RoundTripper
}

// RoundTrip executes the request and logs details.
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	logger.Get().Debug("HTTP Request Started",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Any("headers", MaskHeaders(req.Header)),
	)

	resp, err := lrt.Proxied.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		logger.Get().Error("HTTP Request Failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Get().Debug("HTTP Request Completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}

// NewClient returns an http.Client with logging middleware, routed through the proxy when one is configured.
func NewClient(timeout time.Duration, proxySettings proxy.Settings) *http.Client {
	base := http.DefaultTransport
	if proxyURL := proxySettings.URL(); proxyURL != nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = http.ProxyURL(proxyURL)
		base = t
	}

	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: base,
		},
		Timeout: timeout,
	}
}
