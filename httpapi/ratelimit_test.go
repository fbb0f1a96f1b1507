package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestLimiterCapsWithinWindow(t *testing.T) {
	l := newRequestLimiter(2, time.Hour)

	require.True(t, l.allow())
	require.True(t, l.allow())
	require.False(t, l.allow())
}

func TestRequestLimiterResetsAfterWindow(t *testing.T) {
	l := newRequestLimiter(1, time.Millisecond)
	require.True(t, l.allow())
	time.Sleep(5 * time.Millisecond)
	require.True(t, l.allow())
}
