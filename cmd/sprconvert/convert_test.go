package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	f, err := os.CreateTemp(t.TempDir(), "ipline-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestSampleSourceIPLineCollectsEveryParsedIP(t *testing.T) {
	path := writeTempFile(t, `{"ip":"0x10","sp":"0x20"}
{"extra":true,"ip":"0x11"}
not json, skipped
{"ip":"0x12","note":["a","b"]}
`)

	next, closeIn, err := sampleSourceFromFlag("ipline", path)
	require.NoError(t, err)
	defer closeIn()

	sample, err := next()
	require.NoError(t, err)
	require.Len(t, sample.Frames, 3)
	require.Equal(t, uint64(0x10), sample.Frames[0].IP)
	require.Equal(t, uint64(0x11), sample.Frames[1].IP)
	require.Equal(t, uint64(0x12), sample.Frames[2].IP)

	_, err = next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSampleSourceUnsupportedFormat(t *testing.T) {
	_, _, err := sampleSourceFromFlag("bogus", "unused")
	require.Error(t, err)
}
