package apilog

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"carrier-engine/internal/core/httpclient"
)

const maxCapturedBody = 64 << 10

type captureKey struct{}

// httpCall holds the HTTP details of one request.
type httpCall struct {
	method       string
	url          string
	headers      map[string]string
	requestBody  string
	status       int
	responseBody string
}

// exchange collects the last request made under one logged call.
type exchange struct {
	mu   sync.Mutex
	call httpCall
}

func withExchange(ctx context.Context) (context.Context, *exchange) {
	ex := &exchange{}
	return context.WithValue(ctx, captureKey{}, ex), ex
}

func exchangeFrom(ctx context.Context) *exchange {
	ex, _ := ctx.Value(captureKey{}).(*exchange)
	return ex
}

func (e *exchange) snapshot() httpCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.call
}

// CaptureTransport records request and response details into the logged call
// found on the request context. Requests made outside a logged call pass through untouched.
type CaptureTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *CaptureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ex := exchangeFrom(req.Context())
	if ex == nil {
		return t.Base.RoundTrip(req)
	}

	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	ex.mu.Lock()
	ex.call = httpCall{
		method:      req.Method,
		url:         req.URL.String(),
		headers:     httpclient.MaskHeaders(req.Header),
		requestBody: truncate(reqBody),
	}
	ex.mu.Unlock()

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	ex.mu.Lock()
	ex.call.status = resp.StatusCode
	ex.call.responseBody = truncate(respBody)
	ex.mu.Unlock()

	return resp, nil
}

// InstrumentClient returns a copy of client whose transport feeds the API call log.
func InstrumentClient(client *http.Client) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	instrumented := *client
	instrumented.Transport = &CaptureTransport{Base: base}
	return &instrumented
}

func truncate(b []byte) string {
	if len(b) > maxCapturedBody {
		return string(b[:maxCapturedBody])
	}
	return string(b)
}
