package motion

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Source reads the current acceleration from a device.
type Source interface {
	Read() (x, y, z float64, err error)
}

// Checker is implemented by sources that can report permission or
// availability problems before sampling starts.
type Checker interface {
	Check() error
}

// Option configures a TickerSampler.
type Option func(*TickerSampler)

// WithLogger overrides the logger used to report read errors.
func WithLogger(logger *log.Logger) Option {
	return func(s *TickerSampler) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to timestamp samples.
func WithClock(now func() time.Time) Option {
	return func(s *TickerSampler) {
		s.now = now
	}
}

// TickerSampler polls a Source on a fixed interval.
type TickerSampler struct {
	source Source
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	interval time.Duration
}

// NewTickerSampler constructs a TickerSampler reading from source.
func NewTickerSampler(source Source, interval time.Duration, opts ...Option) *TickerSampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &TickerSampler{
		source:   source,
		interval: interval,
		now:      time.Now,
		logger:   log.New(log.Writer(), "[motion] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSampleInterval changes the polling period. It applies to subscriptions
// created afterwards.
func (s *TickerSampler) SetSampleInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Subscribe starts polling the source and delivering samples to fn.
func (s *TickerSampler) Subscribe(fn func(Sample)) (Subscription, error) {
	if fn == nil {
		return nil, errors.New("motion: nil sample callback")
	}
	if checker, ok := s.source.(Checker); ok {
		if err := checker.Check(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	sub := &tickerSubscription{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run(interval, fn, sub)
	return sub, nil
}

func (s *TickerSampler) run(interval time.Duration, fn func(Sample), sub *tickerSubscription) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		close(sub.done)
	}()

	for {
		select {
		case <-sub.quit:
			return
		case <-ticker.C:
		}

		x, y, z, err := s.source.Read()
		if err != nil {
			s.logger.Printf("sensor read error: %v", err)
			continue
		}

		select {
		case <-sub.quit:
			return
		default:
		}
		fn(Sample{X: x, Y: y, Z: z, T: s.now()})
	}
}

type tickerSubscription struct {
	once sync.Once
	quit chan struct{}
	done chan struct{}
}

func (t *tickerSubscription) Cancel() {
	t.once.Do(func() { close(t.quit) })
	<-t.done
}
