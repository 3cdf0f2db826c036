package motion

import (
	"math/rand"
	"sync"
)

// NoiseSource produces a synthetic walking signal in g units: resting gravity
// on the z axis with small jitter and a heel-strike impulse every Cadence reads.
type NoiseSource struct {
	Cadence int
	Peak    float64

	mu    sync.Mutex
	reads int
}

// NewNoiseSource constructs a NoiseSource. Non-positive arguments fall back to
// one impulse every five reads at 1.5 g.
func NewNoiseSource(cadence int, peak float64) *NoiseSource {
	if cadence <= 0 {
		cadence = 5
	}
	if peak <= 0 {
		peak = 1.5
	}
	return &NoiseSource{Cadence: cadence, Peak: peak}
}

// Read returns the next synthetic reading.
func (n *NoiseSource) Read() (float64, float64, float64, error) {
	n.mu.Lock()
	n.reads++
	impulse := n.reads%n.Cadence == 0
	n.mu.Unlock()

	jitter := (rand.Float64() - 0.5) * 0.1
	if impulse {
		return jitter, jitter, n.Peak, nil
	}
	return jitter, jitter, 1 + jitter, nil
}
