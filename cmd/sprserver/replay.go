package main

import (
	"context"
	"io"

	"github.com/ordo-one/swift-profile-recorder/httpapi"
	"github.com/ordo-one/swift-profile-recorder/internal/render"
	"github.com/ordo-one/swift-profile-recorder/internal/spool"
	"github.com/ordo-one/swift-profile-recorder/internal/symbolize"
)

// replaySpool reads every sample back out of spoolPath, symbolizes and
// renders each one through a fresh render.Renderer, and returns the
// finished output plus its HTTP content type. This is the post-pass
// spec.md §5 describes ("the renderer observes samples in spool order"):
// symbolization and rendering happen here, never inside
// recorder.Session.Run.
func replaySpool(ctx context.Context, spoolPath, arch, format, symbolizerName string) ([]byte, string, error) {
	mappings, err := symbolize.ReadSelfMaps()
	if err != nil {
		return nil, "", err
	}
	backend := httpapi.BackendFor(symbolizerName)
	if err := backend.Start(ctx); err != nil {
		return nil, "", err
	}
	defer backend.Shutdown()

	sym := symbolize.NewSymbolizer(symbolize.NewMappingTable(mappings), backend, 0)

	r, err := spool.Open(spoolPath)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()

	renderer := httpapi.RendererFor(format)
	cfg := render.Config{Arch: arch}

	var out []byte
	for {
		sample, err := r.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, "", err
		}
		chunk, err := renderer.ConsumeSample(ctx, sample, cfg, sym)
		if err != nil {
			return nil, "", err
		}
		out = append(out, chunk...)
	}
	final, err := renderer.Finalise(render.SampleConfig{}, cfg, sym)
	if err != nil {
		return nil, "", err
	}
	out = append(out, final...)
	return out, contentTypeFor(format), nil
}

func contentTypeFor(format string) string {
	if format == "pprof" {
		return "application/octet-stream"
	}
	return "text/plain; charset=utf-8"
}
