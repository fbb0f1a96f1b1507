//go:build linux

package symbolize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMapsLine(t *testing.T) {
	m, ok, err := parseMapsLine("7f2c1a000000-7f2c1a021000 r-xp 00000000 08:01 123456 /lib/x86_64-linux-gnu/libfoo.so")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/lib/x86_64-linux-gnu/libfoo.so", m.Path)
	require.Equal(t, uint64(0x7f2c1a000000), m.Start)
	require.Equal(t, uint64(0x7f2c1a021000), m.End)
	require.Equal(t, uint64(0x7f2c1a000000), m.Slide)
}

func TestParseMapsLineSkipsAnonymous(t *testing.T) {
	_, ok, err := parseMapsLine("7f2c1a000000-7f2c1a021000 rw-p 00000000 00:00 0 ")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = parseMapsLine("7ffdef000000-7ffdef021000 rw-p 00000000 00:00 0 [stack]")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadSelfMapsFindsOwnBinary(t *testing.T) {
	mappings, err := ReadSelfMaps()
	require.NoError(t, err)
	require.NotEmpty(t, mappings)
}
