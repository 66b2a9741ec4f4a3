package service

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const instrumentsListing = `[
	{"instId":"BTC-USDT","minSize":"0.1","lotSize":"0.1","tickSize":"0.1","contractValue":"0.001","contractType":"linear"},
	{"instId":"SEI-USDT","minSize":"1","lotSize":"1","tickSize":"0.0001","contractValue":"1","contractType":"linear"},
	{"instId":"BROKEN-USDT","minSize":"1","lotSize":"0","tickSize":"0.01","contractValue":"1","contractType":"linear"}
]`

type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Body     string
	Header   http.Header
}

type fakeExchange struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]func(recordedRequest) (int, string)
}

func newFakeExchange(t *testing.T) *fakeExchange {
	t.Helper()
	f := &fakeExchange{handlers: make(map[string]func(recordedRequest) (int, string))}
	f.ok(instrumentsPath, instrumentsListing)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec := recordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Body:     string(b),
			Header:   r.Header.Clone(),
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		h, ok := f.handlers[r.URL.Path]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"404","msg":"not found"}`))
			return
		}
		status, body := h(rec)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeExchange) handle(path string, h func(recordedRequest) (int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

// ok отвечает успешным конвертом с данными data.
func (f *fakeExchange) ok(path, data string) {
	f.handle(path, func(recordedRequest) (int, string) {
		return http.StatusOK, fmt.Sprintf(`{"code":"0","msg":"","data":%s}`, data)
	})
}

func (f *fakeExchange) fail(path string, status int, code, msg string) {
	f.handle(path, func(recordedRequest) (int, string) {
		return status, fmt.Sprintf(`{"code":%q,"msg":%q,"data":null}`, code, msg)
	})
}

func (f *fakeExchange) calls(path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

var fixedNow = time.UnixMilli(1700000000000)

func newTestClient(f *fakeExchange, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(f.srv.URL),
		WithClock(func() time.Time { return fixedNow }),
		WithNonce(func() string { return "nonce-1" }),
	}
	return New(Config{
		APIKey:     "key",
		SecretKey:  "secret",
		Passphrase: "pass",
	}, append(base, opts...)...)
}
