package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringBody(s string) BodyFunc {
	return func() (io.Reader, string, error) {
		return strings.NewReader(s), "application/soap+xml", nil
	}
}

// refusedURL returns a URL nothing listens on
func refusedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr + "/as4"
}

func TestDefaultHTTPSConfig(t *testing.T) {
	config := DefaultHTTPSConfig()
	assert.Equal(t, uint16(TLS12), config.MinTLSVersion)
	assert.Equal(t, uint16(TLS13), config.MaxTLSVersion)
	assert.Equal(t, 30*time.Second, config.Timeout)
	for _, suite := range config.CipherSuites {
		assert.NotEmpty(t, tls.CipherSuiteName(suite))
	}
}

func TestNewHTTPSClient_NilConfig(t *testing.T) {
	client := NewHTTPSClient(nil)
	require.NotNil(t, client.client)
	assert.Equal(t, DefaultHTTPSConfig().Timeout, client.client.Timeout)
	tr, ok := client.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, uint16(TLS12), tr.TLSClientConfig.MinVersion)
}

func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/soap+xml", r.Header.Get("Content-Type"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "<env/>", string(body))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	client := NewHTTPSClient(nil, WithHTTPClient(srv.Client()))
	resp, err := client.Post(context.Background(), srv.URL, strings.NewReader("<env/>"), "application/soap+xml")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "<ok/>", string(resp.Body))

	_, err = client.Post(context.Background(), "://bad", strings.NewReader(""), "text/plain")
	assert.Error(t, err)
}

func TestSendWithRetry_ConnectionRefused(t *testing.T) {
	client := NewHTTPSClient(nil)
	built := 0
	body := func() (io.Reader, string, error) {
		built++
		return strings.NewReader("x"), "text/plain", nil
	}

	resp, attempts, err := client.SendWithRetry(context.Background(), refusedURL(t), body, RetryPolicy{MaxRetries: 2, Interval: time.Millisecond})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Nil(t, resp)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, built, "every attempt gets a fresh body")
}

func TestSendWithRetry_RecoversAfterEmptyError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<signal/>"))
	}))
	defer srv.Close()

	client := NewHTTPSClient(nil, WithHTTPClient(srv.Client()))
	resp, attempts, err := client.SendWithRetry(context.Background(), srv.URL, stringBody("x"), RetryPolicy{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "<signal/>", string(resp.Body))
}

func TestSendWithRetry_ErrorWithBodyIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<fault/>"))
	}))
	defer srv.Close()

	client := NewHTTPSClient(nil, WithHTTPClient(srv.Client()))
	resp, attempts, err := client.SendWithRetry(context.Background(), srv.URL, stringBody("x"), RetryPolicy{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSendWithRetry_CustomRetryOn(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>proxy error</html>"))
	}))
	defer srv.Close()

	client := NewHTTPSClient(nil, WithHTTPClient(srv.Client()))
	policy := RetryPolicy{
		MaxRetries: 1,
		RetryOn:    func(r *Response) bool { return !r.OK() },
	}
	resp, attempts, err := client.SendWithRetry(context.Background(), srv.URL, stringBody("x"), policy)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int32(2), hits.Load())
	require.NotNil(t, resp, "last response is kept on exhaustion")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "<html>proxy error</html>", string(resp.Body))
}

func TestPost_OversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := []byte(strings.Repeat("x", 1<<16))
		for written := 0; written <= MaxResponseSize; written += len(chunk) {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewHTTPSClient(nil, WithHTTPClient(srv.Client()))
	_, err := client.Post(context.Background(), srv.URL, strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestSendWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	client := NewHTTPSClient(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, attempts, err := client.SendWithRetry(ctx, refusedURL(t), stringBody("x"), RetryPolicy{MaxRetries: 5, Interval: time.Hour})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSendWithRetry_BodyError(t *testing.T) {
	client := NewHTTPSClient(nil)
	failing := func() (io.Reader, string, error) { return nil, "", io.ErrUnexpectedEOF }

	_, attempts, err := client.SendWithRetry(context.Background(), "http://127.0.0.1:1", failing, RetryPolicy{MaxRetries: 2})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, 0, attempts)
}
