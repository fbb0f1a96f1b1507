// Command sprserver embeds the recorder as a standalone HTTP service:
// a client POSTs a sampling request and gets back perf-script, pprof,
// or collapsed output for the running process (spec.md §6). Its
// startup shape -- logrus formatting, flag parsing, signal-based
// shutdown -- follows native-profiler/alloc-profiler.go's main().
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	recorder "github.com/ordo-one/swift-profile-recorder"
	"github.com/ordo-one/swift-profile-recorder/httpapi"
)

const shutdownGrace = 5 * time.Second

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02T15:04:05Z",
		DisableLevelTruncation: true,
	})

	listenURLFlag := flag.String("listen", "", "override SPR_SERVER_URL / SPR_SERVER_URL_PATTERN")
	flag.Parse()

	listenURL := resolveListenURL()
	if *listenURLFlag != "" {
		listenURL = substituteTokens(*listenURLFlag)
	}

	ln, err := listen(listenURL)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("sprserver listening on %s (%s)", ln.Addr(), listenURL)

	srv := httpapi.New(sampleHandler, sampleHandler)
	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logrus.Error(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

var spoolSeq atomic.Int64

// sampleHandler implements httpapi.SessionFactory: it runs a
// recorder.Session for the requested round count and interval against a
// scratch spool file, then replays that spool through the requested
// render.Renderer with a live symbolizer (see replay.go).
func sampleHandler(ctx context.Context, req httpapi.SampleRequest) ([]byte, string, error) {
	interval, err := httpapi.ParseTimeInterval(req.TimeInterval)
	if err != nil {
		return nil, "", err
	}

	spoolPath := filepath.Join(os.TempDir(), fmt.Sprintf("sprserver-%d-%d.spr", os.Getpid(), spoolSeq.Add(1)))
	defer os.Remove(spoolPath)

	sess, err := recorder.New(
		recorder.WithSpoolPath(spoolPath),
		recorder.WithRounds(req.NumberOfSamples),
		recorder.WithInterval(interval),
	)
	if err != nil {
		return nil, "", err
	}
	if err := sess.Run(ctx); err != nil {
		return nil, "", err
	}

	return replaySpool(ctx, spoolPath, sess.Arch(), req.Format, req.Symbolizer)
}
