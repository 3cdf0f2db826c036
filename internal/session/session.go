// Package session composes the step detector and the session timer into one
// user-facing tracked activity.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/fittrack/internal/apperrors"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/stepcounter"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateConfiguring State = "configuring"
	StateActive      State = "active"
	StateFinished    State = "finished"
	StateDiscarded   State = "discarded"
)

// Recorder receives finished sessions. *domain.Store implements it.
type Recorder interface {
	AddActivity(ctx context.Context, a domain.NewActivity) (domain.ActivityRecord, domain.WriteResult, error)
	DailySteps() int
	UpdateDailySteps(ctx context.Context, steps int) (domain.WriteResult, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger overrides the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for record dates.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithTimerTick sets the timer period. A value <= 0 disables the background
// ticker; the owner then drives the timer through Timer().Tick.
func WithTimerTick(d time.Duration) Option {
	return func(s *Session) {
		s.timer = NewTimer(d)
	}
}

// WithDetectorConfig overrides the step detector threshold and debounce.
func WithDetectorConfig(cfg stepcounter.Config) Option {
	return func(s *Session) {
		s.detector = stepcounter.New(cfg)
	}
}

// WithSampleInterval sets the interval requested from the sampler on start.
func WithSampleInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval = d
	}
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	SessionID    string `json:"sessionId"`
	ActivityType string `json:"activityType"`
	State        State  `json:"state"`
	Running      bool   `json:"running"`
	Elapsed      int    `json:"elapsedSeconds"`
	Duration     string `json:"duration"`
	Steps        int    `json:"steps"`
	Calories     int    `json:"calories"`
}

// FinishResult reports the record produced by Finish and both writes it caused.
type FinishResult struct {
	Record     domain.ActivityRecord `json:"record"`
	Activity   domain.WriteResult    `json:"activity"`
	DailySteps domain.WriteResult    `json:"dailySteps"`
	TotalSteps int                   `json:"totalDailySteps"`
}

// Session is one tracked activity. User operations are serialised by ops;
// mu guards the fields shared with sample delivery. A subscription is never
// cancelled while mu is held, since delivery may be waiting on it.
type Session struct {
	sampler  motion.Sampler
	recorder Recorder
	interval time.Duration
	now      func() time.Time
	logger   *log.Logger

	ops sync.Mutex

	mu           sync.Mutex
	id           string
	activityType string
	state        State
	running      bool
	gen          uint64
	sub          motion.Subscription
	timer        *Timer
	detector     *stepcounter.Detector
}

// New constructs a Session in the configuring state with activity type walking.
func New(sampler motion.Sampler, recorder Recorder, opts ...Option) *Session {
	s := &Session{
		sampler:      sampler,
		recorder:     recorder,
		interval:     motion.DefaultInterval,
		now:          time.Now,
		logger:       log.New(log.Writer(), "[session] ", log.LstdFlags|log.Lshortfile),
		id:           uuid.NewString(),
		activityType: domain.ActivityWalking,
		state:        StateConfiguring,
		timer:        NewTimer(time.Second),
		detector:     stepcounter.New(stepcounter.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timer exposes the session timer.
func (s *Session) Timer() *Timer {
	return s.timer
}

// SetActivityType changes the type while no time has elapsed.
func (s *Session) SetActivityType(activityType string) error {
	activityType = strings.ToLower(strings.TrimSpace(activityType))
	if activityType == "" {
		return fmt.Errorf("%w: activity type is required", apperrors.ErrInvalidFormInput)
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDiscarded {
		return apperrors.ErrSessionClosed
	}
	if s.timer.Elapsed() > 0 {
		return apperrors.ErrActivityTypeLocked
	}
	s.activityType = activityType
	return nil
}

// Start begins or resumes tracking. Starting a running session is a no-op.
func (s *Session) Start() error {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.start()
}

// Stop pauses tracking. Steps and elapsed time are kept and the session can
// be resumed with Start. No sample or tick reaches the session after Stop
// returns.
func (s *Session) Stop() error {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.stop()
}

// Toggle stops a running session and starts a stopped one.
func (s *Session) Toggle() error {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return s.stop()
	}
	return s.start()
}

func (s *Session) start() error {
	s.mu.Lock()
	if s.state == StateDiscarded {
		s.mu.Unlock()
		return apperrors.ErrSessionClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.sampler.SetSampleInterval(s.interval)
	sub, err := s.sampler.Subscribe(func(sample motion.Sample) {
		s.onSample(gen, sample)
	})
	if err != nil {
		s.logger.Printf("subscribe to motion sampler failed: %v", err)
		return fmt.Errorf("start session: %w", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.running = true
	s.state = StateActive
	s.timer.Start()
	s.mu.Unlock()
	return nil
}

func (s *Session) stop() error {
	s.mu.Lock()
	if s.state == StateDiscarded {
		s.mu.Unlock()
		return apperrors.ErrSessionClosed
	}
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	sub := s.detachLocked()
	s.timer.Stop()
	s.mu.Unlock()

	cancel(sub)
	return nil
}

// Reset discards accumulated steps and time and returns to configuring. The
// activity type is kept.
func (s *Session) Reset() error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.state == StateDiscarded {
		s.mu.Unlock()
		return apperrors.ErrSessionClosed
	}
	sub := s.detachLocked()
	s.resetLocked()
	s.mu.Unlock()

	cancel(sub)
	return nil
}

// Finish converts the session into an activity record, adds its steps to the
// daily counter and resets the session. It fails with ErrNothingToFinish and
// changes nothing when no time has elapsed.
//
// Persistence failures are returned alongside a populated result: the record
// is already part of the aggregate. If the aggregate rejects the record the
// session is left stopped and resumable.
func (s *Session) Finish(ctx context.Context) (FinishResult, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.state == StateDiscarded {
		s.mu.Unlock()
		return FinishResult{}, apperrors.ErrSessionClosed
	}
	if s.timer.Elapsed() == 0 {
		s.mu.Unlock()
		return FinishResult{}, apperrors.ErrNothingToFinish
	}
	sub := s.detachLocked()
	s.timer.Stop()
	elapsed := s.timer.Elapsed()
	steps := s.detector.Steps()
	activityType := s.activityType
	sessionID := s.id
	s.state = StateFinished
	s.mu.Unlock()

	cancel(sub)

	rec, activityRes, activityErr := s.recorder.AddActivity(ctx, domain.NewActivity{
		Date:      s.now(),
		Type:      activityType,
		Duration:  domain.FormatDuration(elapsed),
		Calories:  CaloriesBurned(activityType, elapsed),
		Steps:     steps,
		Source:    domain.SourceSession,
		SessionID: sessionID,
	})
	if !activityRes.Applied {
		s.mu.Lock()
		s.state = StateActive
		s.mu.Unlock()
		return FinishResult{}, activityErr
	}

	total := s.recorder.DailySteps() + steps
	stepsRes, stepsErr := s.recorder.UpdateDailySteps(ctx, total)

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	observability.RecordSessionFinished(activityType)
	s.logger.Printf("session %s finished: type=%s duration=%s steps=%d calories=%d", sessionID, rec.Type, rec.Duration, rec.Steps, rec.Calories)

	return FinishResult{
		Record:     rec,
		Activity:   activityRes,
		DailySteps: stepsRes,
		TotalSteps: total,
	}, errors.Join(activityErr, stepsErr)
}

// Close tears the session down. Later operations return ErrSessionClosed.
func (s *Session) Close() error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	if s.state == StateDiscarded {
		s.mu.Unlock()
		return nil
	}
	sub := s.detachLocked()
	s.timer.Reset()
	s.detector.Reset()
	s.state = StateDiscarded
	s.mu.Unlock()

	cancel(sub)
	return nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := s.timer.Elapsed()
	return Snapshot{
		SessionID:    s.id,
		ActivityType: s.activityType,
		State:        s.state,
		Running:      s.running,
		Elapsed:      elapsed,
		Duration:     domain.FormatDuration(elapsed),
		Steps:        s.detector.Steps(),
		Calories:     CaloriesBurned(s.activityType, elapsed),
	}
}

func (s *Session) onSample(gen uint64, sample motion.Sample) {
	s.mu.Lock()
	if gen != s.gen || !s.running {
		s.mu.Unlock()
		return
	}
	added := s.detector.Feed(sample)
	s.mu.Unlock()
	observability.RecordStepsDetected(added)
}

// detachLocked stops sample delivery to this session. The returned
// subscription must be cancelled after mu is released.
func (s *Session) detachLocked() motion.Subscription {
	sub := s.sub
	s.sub = nil
	s.running = false
	s.gen++
	return sub
}

func (s *Session) resetLocked() {
	s.timer.Reset()
	s.detector.Reset()
	s.state = StateConfiguring
	s.id = uuid.NewString()
}

func cancel(sub motion.Subscription) {
	if sub != nil {
		sub.Cancel()
	}
}
