package spool

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.spool")

	want := []Sample{
		{PID: 100, TID: 1, ThreadName: "main", TimeSec: 4, TimeNsec: 5, Frames: []StackFrame{
			{IP: 0x1000, SP: 0x7ffe0000},
			{IP: 0x2000, SP: 0x7ffe0008},
		}},
		{PID: 100, TID: 2, ThreadName: "worker-0", TimeSec: 5, TimeNsec: 0},
		{PID: 100, TID: 3, ThreadName: "worker-1", TimeSec: 6, TimeNsec: 987654321, Truncated: true, Frames: []StackFrame{
			{IP: 0x3000, SP: SentinelSP},
		}},
	}

	w, err := Create(path)
	require.NoError(t, err)
	for _, s := range want {
		require.NoError(t, w.Append(s))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var got []Sample
	for {
		s, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, s)
	}

	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].PID, got[i].PID)
		require.Equal(t, want[i].TID, got[i].TID)
		require.Equal(t, want[i].ThreadName, got[i].ThreadName)
		require.Equal(t, want[i].TimeSec, got[i].TimeSec)
		require.Equal(t, want[i].TimeNsec, got[i].TimeNsec)
		require.Equal(t, want[i].Truncated, got[i].Truncated)
		require.Equal(t, want[i].Frames, got[i].Frames)
	}
}

func TestEmptySpoolReadsCleanEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.spool")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notaspool.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello, world, this is not a spool"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
}
