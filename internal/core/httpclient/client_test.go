package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/core/proxy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoggingRoundTripper verifies that requests pass through the logging transport.
func TestLoggingRoundTripper(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	logger.Init("development", "debug")

	client := NewClient(1*time.Second, proxy.Settings{})
	resp, err := client.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestLoggingRoundTripper_Error verifies that failed requests are returned as errors.
func TestLoggingRoundTripper_Error(t *testing.T) {
	logger.Init("development", "debug")

	client := NewClient(1*time.Second, proxy.Settings{})
	_, err := client.Get("http://invalid-url-that-does-not-exist.local")
	require.Error(t, err)
}

func TestNewClient_Proxy(t *testing.T) {
	settings := proxy.Settings{Enabled: true, Hostname: "proxy.internal", Port: 3128, Username: "u", Password: "p"}
	client := NewClient(time.Second, settings)

	lrt, ok := client.Transport.(*LoggingRoundTripper)
	require.True(t, ok)
	transport, ok := lrt.Proxied.(*http.Transport)
	require.True(t, ok)

	req := httptest.NewRequest(http.MethodGet, "https://carrier.example.com/api", nil)
	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "http://u:p@proxy.internal:3128", proxyURL.String())
}

func TestMaskHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Token secret")
	h.Set("X-Api-Key", "k")
	h.Set("X-Access-Token", "t")
	h.Set("Content-Type", "application/json")

	masked := MaskHeaders(h)

	assert.Equal(t, MaskedValue, masked["Authorization"])
	assert.Equal(t, MaskedValue, masked["X-Api-Key"])
	assert.Equal(t, MaskedValue, masked["X-Access-Token"])
	assert.Equal(t, "application/json", masked["Content-Type"])
}

func TestIsSensitiveHeader(t *testing.T) {
	assert.True(t, IsSensitiveHeader("AUTHORIZATION"))
	assert.True(t, IsSensitiveHeader("x-auth-user"))
	assert.True(t, IsSensitiveHeader("Api-Key"))
	assert.False(t, IsSensitiveHeader("Accept"))
}
