//go:build linux

package symbolize

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// ReadSelfMaps snapshots the current process's loaded shared objects from
// /proc/self/maps into the Mapping form this package expects. It is
// called once per sampling session (spec.md §3: mappings are
// snapshot-once per run) — re-reading mid-session would violate that
// invariant.
func ReadSelfMaps() ([]Mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("symbolize: read self maps: %w", err)
	}
	defer f.Close()

	var out []Mapping
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m, ok, err := parseMapsLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("symbolize: parse maps line: %w", err)
		}
		if ok {
			out = append(out, m)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("symbolize: scan self maps: %w", err)
	}
	return out, nil
}

// parseMapsLine parses one /proc/<pid>/maps line, e.g.:
//
//	7f2c1a000000-7f2c1a021000 r-xp 00000000 08:01 123456 /lib/x86_64-linux-gnu/libfoo.so
//
// ok is false for anonymous mappings (no backing path), which carry no
// symbols and are never candidates for symbolization.
func parseMapsLine(line string) (m Mapping, ok bool, err error) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return Mapping{}, false, nil
	}
	path := fields[5]
	if path == "" || strings.HasPrefix(path, "[") {
		return Mapping{}, false, nil
	}

	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return Mapping{}, false, fmt.Errorf("bad address range %q", fields[0])
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Mapping{}, false, fmt.Errorf("bad start address %q: %w", addrs[0], err)
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return Mapping{}, false, fmt.Errorf("bad end address %q: %w", addrs[1], err)
	}
	fileOffset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Mapping{}, false, fmt.Errorf("bad file offset %q: %w", fields[2], err)
	}

	// The slide is the amount added to a file-virtual address to obtain
	// the runtime address. For the common case of a segment mapped at
	// its natural file offset, slide = start - fileOffset.
	slide := start - fileOffset

	return Mapping{
		Path:  path,
		Arch:  runtime.GOARCH,
		Slide: slide,
		Start: start,
		End:   end,
	}, true, nil
}
