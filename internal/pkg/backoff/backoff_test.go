package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayZeroAttempt(t *testing.T) {
	require.Equal(t, time.Duration(0), Delay(100*time.Millisecond, 0))
	require.Equal(t, time.Duration(0), Delay(100*time.Millisecond, -1))
}

func TestDelayGrows(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		d := Delay(base, attempt)
		expected := base * time.Duration(1<<uint(attempt-1))
		require.GreaterOrEqual(t, d, expected*3/4, "attempt %d", attempt)
		require.LessOrEqual(t, d, expected*5/4, "attempt %d", attempt)
	}
}

func TestDelayCapped(t *testing.T) {
	d := Delay(time.Second, 25)
	require.LessOrEqual(t, d, 30*time.Second*5/4)
	require.GreaterOrEqual(t, d, 30*time.Second*3/4)
}
