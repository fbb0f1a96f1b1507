package spool

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrIO wraps an underlying I/O failure while reading or writing a spool
// file. Per spec.md §7, this is fatal for the session; the partial spool
// is retained rather than deleted so it can be inspected afterwards.
type ErrIO struct {
	Op  string
	Err error
}

func (e *ErrIO) Error() string { return fmt.Sprintf("spool: %s: %v", e.Op, e.Err) }
func (e *ErrIO) Unwrap() error { return e.Err }

// magic identifies a spool file; it is not a stable wire format (spec.md
// §6), just a private sanity check against opening the wrong file.
const magic = uint32(0x53505230) // "SPR0"

// Writer appends Sample records to a single spool file. A Writer must
// only ever be used by one goroutine at a time (spec.md §5: "single
// writer ... never concurrent").
type Writer struct {
	f   *os.File
	buf *bufio.Writer
}

// Create creates a new spool file at path, truncating any existing file.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, &ErrIO{Op: "create", Err: err}
	}
	w := &Writer{f: f, buf: bufio.NewWriter(f)}
	if err := binary.Write(w.buf, binary.LittleEndian, magic); err != nil {
		f.Close()
		return nil, &ErrIO{Op: "write header", Err: err}
	}
	return w, nil
}

// truncatedFlag is the lone bit currently defined in a record's flags
// byte; the rest are reserved.
const truncatedFlag = byte(1 << 0)

// Append writes one Sample record, length-prefixed per spec.md §6: a
// fixed header {pid, tid, name_len, time_sec, time_nsec, frame_count,
// flags}, then the name bytes, then frame_count {ip, sp} pairs.
func (w *Writer) Append(s Sample) error {
	if len(s.ThreadName) > MaxThreadNameLen {
		s.ThreadName = s.ThreadName[:MaxThreadNameLen]
	}
	var hdr [4 + 8 + 2 + 8 + 4 + 4 + 1]byte
	binary.LittleEndian.PutUint32(hdr[0:4], s.PID)
	binary.LittleEndian.PutUint64(hdr[4:12], s.TID)
	binary.LittleEndian.PutUint16(hdr[12:14], uint16(len(s.ThreadName)))
	binary.LittleEndian.PutUint64(hdr[14:22], uint64(s.TimeSec))
	binary.LittleEndian.PutUint32(hdr[22:26], s.TimeNsec)
	binary.LittleEndian.PutUint32(hdr[26:30], uint32(len(s.Frames)))
	if s.Truncated {
		hdr[30] = truncatedFlag
	}
	if _, err := w.buf.Write(hdr[:]); err != nil {
		return &ErrIO{Op: "write header", Err: err}
	}
	if _, err := w.buf.WriteString(s.ThreadName); err != nil {
		return &ErrIO{Op: "write name", Err: err}
	}
	for _, fr := range s.Frames {
		var fb [16]byte
		binary.LittleEndian.PutUint64(fb[0:8], fr.IP)
		binary.LittleEndian.PutUint64(fb[8:16], fr.SP)
		if _, err := w.buf.Write(fb[:]); err != nil {
			return &ErrIO{Op: "write frame", Err: err}
		}
	}
	return nil
}

// Flush flushes any buffered writes to the underlying file without
// closing it, so the spool remains readable by the post-pass if the
// orchestrator crashes mid-run (spec.md §3 invariant).
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return &ErrIO{Op: "flush", Err: err}
	}
	return nil
}

// Close flushes and closes the spool file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return &ErrIO{Op: "close", Err: err}
	}
	return nil
}

// Reader streams Sample records back out of a spool file written by
// Writer. A Reader must only ever be used by one goroutine at a time.
type Reader struct {
	r *bufio.Reader
	f *os.File
}

// Open opens path for reading and validates its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ErrIO{Op: "open", Err: err}
	}
	r := &Reader{r: bufio.NewReader(f), f: f}
	var got uint32
	if err := binary.Read(r.r, binary.LittleEndian, &got); err != nil {
		f.Close()
		return nil, &ErrIO{Op: "read header", Err: err}
	}
	if got != magic {
		f.Close()
		return nil, &ErrIO{Op: "read header", Err: errors.New("not a spool file")}
	}
	return r, nil
}

// Next reads the next Sample record, or io.EOF when the spool is
// exhausted.
func (r *Reader) Next() (Sample, error) {
	var hdr [4 + 8 + 2 + 8 + 4 + 4 + 1]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF {
			return Sample{}, io.EOF
		}
		return Sample{}, &ErrIO{Op: "read header", Err: err}
	}
	s := Sample{
		PID:       binary.LittleEndian.Uint32(hdr[0:4]),
		TID:       binary.LittleEndian.Uint64(hdr[4:12]),
		TimeSec:   int64(binary.LittleEndian.Uint64(hdr[14:22])),
		TimeNsec:  binary.LittleEndian.Uint32(hdr[22:26]),
		Truncated: hdr[30]&truncatedFlag != 0,
	}
	nameLen := binary.LittleEndian.Uint16(hdr[12:14])
	frameCount := binary.LittleEndian.Uint32(hdr[26:30])

	if nameLen > 0 {
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r.r, nameBuf); err != nil {
			return Sample{}, &ErrIO{Op: "read name", Err: err}
		}
		s.ThreadName = string(nameBuf)
	}

	if frameCount > 0 {
		s.Frames = make([]StackFrame, frameCount)
		var fb [16]byte
		for i := range s.Frames {
			if _, err := io.ReadFull(r.r, fb[:]); err != nil {
				return Sample{}, &ErrIO{Op: "read frame", Err: err}
			}
			s.Frames[i] = StackFrame{
				IP: binary.LittleEndian.Uint64(fb[0:8]),
				SP: binary.LittleEndian.Uint64(fb[8:16]),
			}
		}
	}
	return s, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
