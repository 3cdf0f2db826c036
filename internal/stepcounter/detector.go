// Package stepcounter turns a stream of accelerometer samples into a step
// count using a magnitude threshold with a minimum inter-step delay.
package stepcounter

import (
	"math"
	"time"

	"example.com/fittrack/internal/motion"
)

const (
	// DefaultThreshold is the magnitude, in sensor units, a sample must exceed.
	DefaultThreshold = 1.2
	// DefaultMinStepDelay is the debounce between accepted step events.
	DefaultMinStepDelay = 100 * time.Millisecond
)

// Config tunes the detector. Zero values fall back to the defaults.
type Config struct {
	Threshold    float64
	MinStepDelay time.Duration
}

// DefaultConfig returns the stock threshold and debounce.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, MinStepDelay: DefaultMinStepDelay}
}

// Detector accumulates steps. It is not safe for concurrent use; the owning
// session serialises calls.
type Detector struct {
	cfg      Config
	steps    int
	lastStep time.Time
	stepped  bool
}

// New constructs a Detector.
func New(cfg Config) *Detector {
	if cfg.Threshold <= 0 || math.IsNaN(cfg.Threshold) {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinStepDelay <= 0 {
		cfg.MinStepDelay = DefaultMinStepDelay
	}
	return &Detector{cfg: cfg}
}

// Feed processes one sample and returns the number of steps it added.
//
// A sample counts when its magnitude exceeds the threshold and more than
// MinStepDelay has passed since the last accepted step. A magnitude well above
// the threshold counts floor(m/threshold) steps.
func (d *Detector) Feed(s motion.Sample) int {
	m := s.Magnitude()
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= d.cfg.Threshold {
		return 0
	}
	if d.stepped && s.T.Sub(d.lastStep) <= d.cfg.MinStepDelay {
		return 0
	}

	n := int(math.Floor(m / d.cfg.Threshold))
	d.steps += n
	d.lastStep = s.T
	d.stepped = true
	return n
}

// Steps returns the cumulative count since construction or the last Reset.
func (d *Detector) Steps() int {
	return d.steps
}

// LastStep returns the timestamp of the last accepted step, if any.
func (d *Detector) LastStep() (time.Time, bool) {
	return d.lastStep, d.stepped
}

// Reset zeroes the count and the last-step timestamp. Configuration is kept.
func (d *Detector) Reset() {
	d.steps = 0
	d.lastStep = time.Time{}
	d.stepped = false
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}
