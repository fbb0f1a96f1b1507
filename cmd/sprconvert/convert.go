package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ordo-one/swift-profile-recorder/internal/lineproto"
	"github.com/ordo-one/swift-profile-recorder/internal/render"
	"github.com/ordo-one/swift-profile-recorder/internal/spool"
	"github.com/ordo-one/swift-profile-recorder/internal/symbolize"
)

type convertOptions struct {
	in         string
	inFormat   string
	out        string
	format     string
	symbolizer string
	arch       string
}

func newConvertCommand() *cobra.Command {
	o := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "convert a recorded spool file into perf-script, pprof, or collapsed output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, o)
		},
	}
	cmd.Flags().StringVarP(&o.in, "in", "i", "samples.spr", "input file to read")
	cmd.Flags().StringVar(&o.inFormat, "in-format", "spool", "input format: spool, or ipline (a line-oriented {\"ip\":\"0x..\"} sidecar, one synthetic sample)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "-", "output file, or - for stdout")
	cmd.Flags().StringVarP(&o.format, "format", "f", "perf-script", "output format: perf-script, pprof, or collapsed")
	cmd.Flags().StringVar(&o.symbolizer, "symbolizer", "native", "symbolizer backend: native, external:<cmd>, or fake")
	cmd.Flags().StringVar(&o.arch, "arch", runtime.GOARCH, "architecture for renderer IP fixup")
	return cmd
}

func runConvert(cmd *cobra.Command, o *convertOptions) error {
	backend, err := backendFromFlag(o.symbolizer)
	if err != nil {
		return err
	}

	mappings, err := symbolize.ReadSelfMaps()
	if err != nil {
		return fmt.Errorf("reading self maps: %w", err)
	}
	ctx := cmd.Context()
	if err := backend.Start(ctx); err != nil {
		return fmt.Errorf("starting symbolizer backend: %w", err)
	}
	defer backend.Shutdown()
	sym := symbolize.NewSymbolizer(symbolize.NewMappingTable(mappings), backend, 0)

	next, closeIn, err := sampleSourceFromFlag(o.inFormat, o.in)
	if err != nil {
		return err
	}
	defer closeIn()

	renderer := rendererFromFlag(o.format)
	cfg := render.Config{Arch: o.arch}

	w, closeOut, err := outputWriter(o.out)
	if err != nil {
		return err
	}
	defer closeOut()

	for {
		sample, err := next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		chunk, err := renderer.ConsumeSample(ctx, sample, cfg, sym)
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	final, err := renderer.Finalise(render.SampleConfig{}, cfg, sym)
	if err != nil {
		return err
	}
	_, err = w.Write(final)
	return err
}

// sampleSourceFromFlag opens path per format and returns a pull-style
// iterator of spool.Sample plus its closer. "spool" reads the binary
// record format Session.Run produces; "ipline" reads the line-oriented
// {"ip":"0x..","sp":"0x.."} sidecar format (spec.md §6) one line at a
// time with internal/lineproto.ParseIPLine and synthesizes a single
// sample (PID 0, TID 0) whose frames are every successfully parsed IP,
// in file order -- there is no thread or round structure in that format,
// only a flat sequence of addresses.
func sampleSourceFromFlag(format, path string) (func() (spool.Sample, error), func(), error) {
	switch format {
	case "", "spool":
		r, err := spool.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return r.Next, func() { r.Close() }, nil
	case "ipline":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		sample, parseErr := readIPLineSidecar(f)
		done := false
		next := func() (spool.Sample, error) {
			if done || parseErr != nil {
				if parseErr != nil {
					return spool.Sample{}, parseErr
				}
				return spool.Sample{}, io.EOF
			}
			done = true
			return sample, nil
		}
		return next, func() { f.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("sprconvert: unsupported --in-format %q", format)
	}
}

func readIPLineSidecar(f *os.File) (spool.Sample, error) {
	sample := spool.Sample{
		ThreadName: "ipline",
		TimeSec:    time.Now().Unix(),
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		ip, ok := lineproto.ParseIPLine(scanner.Bytes())
		if !ok {
			continue
		}
		sample.Frames = append(sample.Frames, spool.StackFrame{IP: ip, SP: spool.SentinelSP})
	}
	if err := scanner.Err(); err != nil {
		return spool.Sample{}, err
	}
	return sample, nil
}

// backendFromFlag parses --symbolizer. "native" and "fake" select the
// matching in-process backend; "external:<command> [args...]" spawns
// command as a subprocess symbolizer (internal/symbolize.ExternalBackend).
func backendFromFlag(name string) (symbolize.Backend, error) {
	switch {
	case name == "native" || name == "":
		return symbolize.NewNativeBackend(), nil
	case name == "fake":
		return symbolize.NewFakeBackend(), nil
	case strings.HasPrefix(name, "external:"):
		fields := strings.Fields(strings.TrimPrefix(name, "external:"))
		if len(fields) == 0 {
			return nil, fmt.Errorf("sprconvert: --symbolizer external: requires a command")
		}
		return symbolize.NewExternalBackend(fields[0], fields[1:]), nil
	default:
		return nil, fmt.Errorf("sprconvert: unsupported --symbolizer %q", name)
	}
}

func rendererFromFlag(format string) render.Renderer {
	switch format {
	case "pprof":
		return render.NewPprof()
	case "collapsed":
		return render.NewCollapsed()
	default:
		return render.NewPerf()
	}
}

func outputWriter(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
