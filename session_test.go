//go:build linux

package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ordo-one/swift-profile-recorder/internal/spool"
)

func TestSessionRequiresSpoolPath(t *testing.T) {
	_, err := New()
	require.Error(t, err)
}

func TestSessionRunProducesSpool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.spr")

	s, err := New(
		WithSpoolPath(path),
		WithRounds(3),
		WithInterval(time.Millisecond),
	)
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, 3, s.Stats().RoundsCompleted)

	_, err = os.Stat(path)
	require.NoError(t, err)

	r, err := spool.Open(path)
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for {
		_, err := r.Next()
		if err != nil {
			break
		}
		count++
	}
	require.Greater(t, count, 0)
}

func TestSessionRunStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.spr")

	s, err := New(
		WithSpoolPath(path),
		WithRounds(0),
		WithInterval(time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
}
