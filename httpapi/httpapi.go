// Package httpapi is a thin HTTP front-end over a recorder.Session: it
// accepts one-off sampling requests and serves perf-script, pprof, or
// collapsed output over the wire (spec.md §6, "external collaborator,
// specified for completeness").
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ordo-one/swift-profile-recorder/internal/render"
	"github.com/ordo-one/swift-profile-recorder/internal/symbolize"
)

// SessionFactory builds and runs a recorder.Session for exactly
// numberOfSamples rounds spaced by interval, writing to a renderer
// selected by format, and returns the rendered bytes. It is injected
// rather than imported directly so httpapi has no import-cycle-forcing
// dependency on the root package; cmd/sprserver supplies the real
// implementation backed by recorder.Session.
type SessionFactory func(ctx context.Context, req SampleRequest) ([]byte, string, error)

// SampleRequest is the decoded body of POST /, /sample, /samples.
type SampleRequest struct {
	NumberOfSamples int    `json:"numberOfSamples"`
	TimeInterval    string `json:"timeInterval"`
	Format          string `json:"format"`
	Symbolizer      string `json:"symbolizer"`
}

const defaultFormat = "perf-script"

// Server is the route table described in spec.md §6, built on top of
// Router: each of its five routes is registered as a HandlerFunc that
// declines (returns Unhandled) when the request method doesn't match,
// so Router's registration-order fallthrough also covers the common
// case of exactly one handler per path claiming on method.
type Server struct {
	router  *Router
	sample  SessionFactory
	pprof   SessionFactory
	started time.Time
	limiter *requestLimiter
}

// defaultSampleRateLimit bounds how many sampling requests Server
// accepts per defaultSampleRateWindow; each one pauses every thread in
// the process once per round, so an unthrottled client can itself
// become a denial-of-service vector against the profiled process.
const (
	defaultSampleRateLimit  = 10
	defaultSampleRateWindow = time.Second
)

// New builds a Server. sample renders the format requested in a
// POST body; pprofProfile always renders pprof, used by
// GET /debug/pprof/profile.
func New(sample, pprofProfile SessionFactory) *Server {
	s := &Server{
		sample:  sample,
		pprof:   pprofProfile,
		started: time.Now(),
		limiter: newRequestLimiter(defaultSampleRateLimit, defaultSampleRateWindow),
	}
	s.router = NewRouter(s.handleNotFound)
	s.router.Handle("/", onlyMethod(http.MethodPost, s.handleSample))
	s.router.Handle("/sample", onlyMethod(http.MethodPost, s.handleSample))
	s.router.Handle("/samples", onlyMethod(http.MethodPost, s.handleSample))
	s.router.Handle("/debug/pprof/profile", onlyMethod(http.MethodGet, s.handleDebugProfile))
	s.router.Handle("/health", onlyMethod(http.MethodGet, s.handleHealth))
	return s
}

// onlyMethod adapts an http.HandlerFunc into a Router HandlerFunc that
// declines any request whose method doesn't match want, so two
// differently-methoded handlers can share a path the way spec.md §8
// property 8 describes.
func onlyMethod(want string, h http.HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != want {
			return Unhandled
		}
		h(w, r)
		return nil
	}
}

// ServeHTTP delegates to the underlying Router, which tries each
// registered handler for the request's path in registration order
// until one claims it (spec.md §8 property 8). No match falls through
// to a 404 with an example invocation.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "no such route: %s %s\n\ntry:\n  curl -X POST %s://%s/sample -d '{\"numberOfSamples\":5,\"timeInterval\":\"10ms\"}'\n",
		r.Method, r.URL.Path, schemeOf(r), r.Host)
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow() {
		http.Error(w, "too many sampling requests", http.StatusTooManyRequests)
		return
	}
	var req SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Format == "" {
		req.Format = defaultFormat
	}
	if req.NumberOfSamples <= 0 {
		req.NumberOfSamples = 1
	}
	if req.TimeInterval == "" {
		req.TimeInterval = "10ms"
	}
	if _, err := parseTimeInterval(req.TimeInterval); err != nil {
		http.Error(w, fmt.Sprintf("bad timeInterval: %v", err), http.StatusBadRequest)
		return
	}

	out, contentType, err := s.sample(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, r, contentType, out)
}

func (s *Server) handleDebugProfile(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow() {
		http.Error(w, "too many sampling requests", http.StatusTooManyRequests)
		return
	}
	seconds := clamp(queryInt(r, "seconds", 30), 1, 1000)
	rate := clamp(queryInt(r, "rate", 100), 1, 1000)

	interval := time.Second / time.Duration(rate)
	numSamples := int(time.Duration(seconds) * time.Second / interval)
	if numSamples < 1 {
		numSamples = 1
	}

	req := SampleRequest{
		NumberOfSamples: numSamples,
		TimeInterval:    interval.String(),
		Format:          "pprof",
	}
	out, contentType, err := s.pprof(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, r, contentType, out)
}

// writeBody writes out as the response body, gzip-compressing it with
// klauspost/compress when the client advertises gzip support and the
// content isn't already compressed (pprof's application/octet-stream
// is a gzipped protobuf per github.com/google/pprof/profile.Write).
// perf-script and collapsed output are plain text and otherwise go out
// uncompressed, which matters for the larger full-process captures
// these formats produce.
func writeBody(w http.ResponseWriter, r *http.Request, contentType string, out []byte) {
	w.Header().Set("Content-Type", contentType)
	if contentType == "application/octet-stream" || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		_, _ = w.Write(out)
		return
	}
	w.Header().Set("Content-Encoding", "gzip")
	gw := gzip.NewWriter(w)
	_, _ = gw.Write(out)
	_ = gw.Close()
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RendererFor maps a requested format name to a fresh render.Renderer.
// Unknown names fall back to perf-script, matching spec.md §6's stated
// default.
func RendererFor(format string) render.Renderer {
	switch format {
	case "pprof":
		return render.NewPprof()
	case "collapsed":
		return render.NewCollapsed()
	default:
		return render.NewPerf()
	}
}

// BackendFor maps the "symbolizer" request field to a concrete
// symbolize.Backend. Unrecognized values, including the empty string,
// select the native backend.
func BackendFor(name string) symbolize.Backend {
	if name == "fake" {
		return symbolize.NewFakeBackend()
	}
	return symbolize.NewNativeBackend()
}
