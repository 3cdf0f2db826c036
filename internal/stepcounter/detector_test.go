package stepcounter

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/motion"
)

var epoch = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func TestDetectorDebounceExample(t *testing.T) {
	d := New(DefaultConfig())

	require.Equal(t, 1, d.Feed(motion.Sample{X: 1, Y: 1, Z: 1, T: at(0)}))
	require.Equal(t, 1, d.Steps())

	require.Equal(t, 0, d.Feed(motion.Sample{X: 1, Y: 1, Z: 1, T: at(50)}))
	require.Equal(t, 1, d.Steps())

	require.Equal(t, 1, d.Feed(motion.Sample{X: 1, Y: 1, Z: 1, T: at(150)}))
	require.Equal(t, 2, d.Steps())
}

func TestDetectorDebounceBoundaryIsExclusive(t *testing.T) {
	d := New(DefaultConfig())
	d.Feed(motion.Sample{Z: 1.5, T: at(0)})
	require.Equal(t, 0, d.Feed(motion.Sample{Z: 1.5, T: at(100)}))
	require.Equal(t, 1, d.Feed(motion.Sample{Z: 1.5, T: at(101)}))
}

func TestDetectorLargeMagnitudeCountsMultipleSteps(t *testing.T) {
	d := New(DefaultConfig())
	require.Equal(t, 3, d.Feed(motion.Sample{Z: 3.7, T: at(0)}))
	require.Equal(t, 3, d.Steps())
}

func TestDetectorIgnoresBelowThresholdAtAnyOffset(t *testing.T) {
	d := New(DefaultConfig())
	d.Feed(motion.Sample{Z: 2, T: at(0)})
	last, ok := d.LastStep()
	require.True(t, ok)

	for _, offset := range []int{0, 1, 50, 100, 101, 5000} {
		require.Equal(t, 0, d.Feed(motion.Sample{Z: 1.2, T: at(offset)}))
		require.Equal(t, 1, d.Steps())
		gotLast, _ := d.LastStep()
		require.Equal(t, last, gotLast)
	}
}

func TestDetectorRejectsNonFinite(t *testing.T) {
	d := New(DefaultConfig())
	require.Equal(t, 0, d.Feed(motion.Sample{X: math.Inf(1), T: at(0)}))
	require.Equal(t, 0, d.Feed(motion.Sample{X: math.NaN(), T: at(200)}))
	require.Zero(t, d.Steps())
}

func TestDetectorResetKeepsConfig(t *testing.T) {
	cfg := Config{Threshold: 2, MinStepDelay: 300 * time.Millisecond}
	d := New(cfg)
	d.Feed(motion.Sample{Z: 4.5, T: at(0)})
	require.Equal(t, 2, d.Steps())

	d.Reset()
	require.Zero(t, d.Steps())
	_, ok := d.LastStep()
	require.False(t, ok)
	require.Equal(t, cfg, d.Config())

	require.Equal(t, 2, d.Feed(motion.Sample{Z: 4.5, T: at(10)}), "debounce restarts after reset")
}

func TestNewAppliesDefaults(t *testing.T) {
	require.Equal(t, DefaultConfig(), New(Config{}).Config())
}

func TestDetectorCountNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	d := New(DefaultConfig())
	prev := 0
	ts := 0
	for i := 0; i < 2000; i++ {
		// timestamps occasionally go backwards to exercise out-of-order delivery
		ts += rng.IntN(120) - 10
		s := motion.Sample{
			X: rng.NormFloat64(),
			Y: rng.NormFloat64(),
			Z: rng.NormFloat64() + 1,
			T: at(ts),
		}
		d.Feed(s)
		require.GreaterOrEqual(t, d.Steps(), prev)
		require.GreaterOrEqual(t, d.Steps(), 0)
		prev = d.Steps()
	}
}
