// Package motion abstracts the device accelerometer as a cancellable stream of
// timestamped tri-axial samples.
package motion

import (
	"math"
	"time"
)

// DefaultInterval is the sampling period used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Sample is a single accelerometer reading.
type Sample struct {
	X float64
	Y float64
	Z float64
	T time.Time
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Sampler delivers samples to a subscriber until the subscription is cancelled.
// A Sampler must support being subscribed to and cancelled any number of times.
type Sampler interface {
	Subscribe(fn func(Sample)) (Subscription, error)
	SetSampleInterval(d time.Duration)
}

// Subscription is the handle returned by Subscribe.
//
// Cancel blocks until no further callback can be delivered and is safe to call
// more than once. It must not be called from inside the callback.
type Subscription interface {
	Cancel()
}
