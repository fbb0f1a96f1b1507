package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

// TestRouterTriesHandlersInRegistrationOrder is spec.md §8 property 8,
// verbatim: a single handler on "/hello" claims the request, and on
// "/clash/on/this/slug" the first of two handlers declines (Unhandled)
// before the second claims it.
func TestRouterTriesHandlersInRegistrationOrder(t *testing.T) {
	rt := NewRouter(notFound)
	rt.Handle("/hello", func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("world"))
		return nil
	})

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "world", rec.Body.String())

	rt.Handle("/clash/on/this/slug", func(w http.ResponseWriter, _ *http.Request) error {
		return Unhandled
	})
	rt.Handle("/clash/on/this/slug", func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hi"))
		return nil
	})

	rec = httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clash/on/this/slug", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hi", rec.Body.String())
}

func TestRouterFallsThroughToNotFound(t *testing.T) {
	rt := NewRouter(notFound)
	rt.Handle("/only-unhandled", func(http.ResponseWriter, *http.Request) error {
		return Unhandled
	})

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/only-unhandled", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/never-registered", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
