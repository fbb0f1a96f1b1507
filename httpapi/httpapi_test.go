package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/stretchr/testify/require"
)

func stubFactory(out []byte, contentType string, err error) SessionFactory {
	return func(_ context.Context, _ SampleRequest) ([]byte, string, error) {
		return out, contentType, err
	}
}

func TestServeHTTPRoutesInRegistrationOrder(t *testing.T) {
	s := New(stubFactory([]byte("rendered"), "text/plain", nil), stubFactory([]byte("pprofbytes"), "application/octet-stream", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(`{"numberOfSamples":1,"timeInterval":"5ms"}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "rendered", rec.Body.String())
}

func TestServeHTTPHealth(t *testing.T) {
	s := New(stubFactory(nil, "", nil), stubFactory(nil, "", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestServeHTTPUnknownRouteIs404WithExample(t *testing.T) {
	s := New(stubFactory(nil, "", nil), stubFactory(nil, "", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "curl")
}

func TestServeHTTPDebugProfileClampsAndForcesPprof(t *testing.T) {
	var captured SampleRequest
	s := New(stubFactory(nil, "", nil), func(_ context.Context, r SampleRequest) ([]byte, string, error) {
		captured = r
		return []byte("p"), "application/octet-stream", nil
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/profile?seconds=99999&rate=99999", nil)
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pprof", captured.Format)
	// Both parameters clamp to 1000: 1000 s at a 1 ms interval.
	require.Equal(t, "1ms", captured.TimeInterval)
	require.Equal(t, 1000*1000, captured.NumberOfSamples)
}

func TestServeHTTPSampleCompressesWhenAcceptEncodingGzip(t *testing.T) {
	s := New(stubFactory([]byte("rendered output"), "text/plain", nil), stubFactory(nil, "", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(`{"numberOfSamples":1,"timeInterval":"5ms"}`))
	req.Header.Set("Accept-Encoding", "gzip")
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	require.Equal(t, "rendered output", string(body))
}

func TestServeHTTPDebugProfileNeverCompressed(t *testing.T) {
	s := New(stubFactory(nil, "", nil), stubFactory([]byte("already-gzipped"), "application/octet-stream", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/profile", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Content-Encoding"))
	require.Equal(t, "already-gzipped", rec.Body.String())
}

func TestServeHTTPSampleRejectsBadInterval(t *testing.T) {
	s := New(stubFactory([]byte("x"), "text/plain", nil), stubFactory(nil, "", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(`{"timeInterval":"5fortnights"}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
