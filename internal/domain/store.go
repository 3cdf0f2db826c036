package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"example.com/fittrack/internal/apperrors"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/observability"
)

// Storage keys used with the Gateway.
const (
	KeyActivities  = "activities"
	KeyDailySteps  = "dailySteps"
	KeyDailyGoal   = "dailyGoal"
	KeyUserProfile = "userProfile"
)

// Default reminder time for the daily goal notification.
const (
	DefaultReminderHour   = 20
	DefaultReminderMinute = 0
)

// Gateway is a durable key to string-value store.
type Gateway interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Notifier schedules the daily goal reminder. Implementations cancel any
// previously scheduled reminder first.
type Notifier interface {
	ScheduleDailyGoalReminder(ctx context.Context, goal, hour, minute int) error
}

// EventSink receives change events after they are applied in memory.
type EventSink interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// WriteResult distinguishes a change applied in memory from one that also
// reached durable storage.
type WriteResult struct {
	Applied   bool `json:"applied"`
	Persisted bool `json:"persisted"`
}

// Snapshot is a copy of the aggregate state.
type Snapshot struct {
	Activities  []ActivityRecord
	DailySteps  int
	DailyGoal   int
	UserProfile *UserProfile
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the collaborator signalled on goal changes.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithEventSink sets the sink for change events.
func WithEventSink(sink EventSink) Option {
	return func(s *Store) {
		s.events = sink
	}
}

// WithLogger overrides the logger used for persistence warnings.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for ids and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithReminderTime sets the local time of the daily goal reminder.
func WithReminderTime(hour, minute int) Option {
	return func(s *Store) {
		s.reminderHour = hour
		s.reminderMinute = minute
	}
}

// Store is the fitness aggregate: activity history, daily step counter, daily
// goal and user profile. Every mutation is applied in memory and then written
// through to the Gateway before the call returns. A failed write is reported
// but never rolled back; the in-memory state stays authoritative.
type Store struct {
	gateway  Gateway
	notifier Notifier
	events   EventSink
	logger   *log.Logger
	now      func() time.Time

	reminderHour   int
	reminderMinute int

	mu         sync.Mutex
	activities []ActivityRecord
	dailySteps int
	dailyGoal  int
	profile    *UserProfile
	lastID     int64
	// keys whose last write-through failed
	dirty map[string]bool
}

// NewStore constructs a Store holding default state. Call Load to hydrate it.
func NewStore(gateway Gateway, opts ...Option) *Store {
	s := &Store{
		gateway:        gateway,
		logger:         log.New(log.Writer(), "[store] ", log.LstdFlags|log.Lshortfile),
		now:            time.Now,
		reminderHour:   DefaultReminderHour,
		reminderMinute: DefaultReminderMinute,
		activities:     []ActivityRecord{},
		dailyGoal:      DefaultDailyGoal,
		dirty:          map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load hydrates the aggregate from the Gateway. Keys that are missing keep
// their defaults. Keys that cannot be read or decoded also keep their defaults
// and are reported in the returned error, which wraps ErrPersistenceReadFailed;
// the store is usable either way.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	if raw, ok, err := s.read(ctx, KeyActivities); err != nil {
		errs = append(errs, err)
	} else if ok {
		var list []ActivityRecord
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			errs = append(errs, s.readFailure(KeyActivities, err))
		} else {
			if list == nil {
				list = []ActivityRecord{}
			}
			s.activities = list
			for _, a := range list {
				if a.ID > s.lastID {
					s.lastID = a.ID
				}
			}
		}
	}

	if raw, ok, err := s.read(ctx, KeyDailySteps); err != nil {
		errs = append(errs, err)
	} else if ok {
		steps, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || steps < 0 {
			errs = append(errs, s.readFailure(KeyDailySteps, fmt.Errorf("bad value %q", raw)))
		} else {
			s.dailySteps = steps
		}
	}

	if raw, ok, err := s.read(ctx, KeyDailyGoal); err != nil {
		errs = append(errs, err)
	} else if ok {
		goal, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || goal <= 0 {
			errs = append(errs, s.readFailure(KeyDailyGoal, fmt.Errorf("bad value %q", raw)))
		} else {
			s.dailyGoal = goal
		}
	}

	if raw, ok, err := s.read(ctx, KeyUserProfile); err != nil {
		errs = append(errs, err)
	} else if ok {
		var profile *UserProfile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			errs = append(errs, s.readFailure(KeyUserProfile, err))
		} else {
			s.profile = profile
		}
	}

	observability.SetAggregate(s.dailySteps, s.dailyGoal, len(s.activities))
	return errors.Join(errs...)
}

func (s *Store) read(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.gateway.Get(ctx, key)
	if err != nil {
		return "", false, s.readFailure(key, err)
	}
	return raw, ok, nil
}

func (s *Store) readFailure(key string, err error) error {
	observability.RecordReadFailure(key)
	s.logger.Printf("hydrate %s failed, using default: %v", key, err)
	return fmt.Errorf("%w: %s: %w", apperrors.ErrPersistenceReadFailed, key, err)
}

// Snapshot returns a deep copy of the aggregate.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Activities: append([]ActivityRecord(nil), s.activities...),
		DailySteps: s.dailySteps,
		DailyGoal:  s.dailyGoal,
	}
	if s.profile != nil {
		p := *s.profile
		snap.UserProfile = &p
	}
	return snap
}

// Activities returns the history in insertion order.
func (s *Store) Activities() []ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActivityRecord(nil), s.activities...)
}

// DailySteps returns the daily step counter.
func (s *Store) DailySteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailySteps
}

// DailyGoal returns the daily step goal.
func (s *Store) DailyGoal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyGoal
}

// UserProfile returns the profile, if one has been set.
func (s *Store) UserProfile() (UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return UserProfile{}, false
	}
	return *s.profile, true
}

// AddActivity assigns a time-derived id, strictly increasing within the
// process, appends the record and persists the full history.
func (s *Store) AddActivity(ctx context.Context, a NewActivity) (ActivityRecord, WriteResult, error) {
	if err := a.Validate(); err != nil {
		return ActivityRecord{}, WriteResult{}, err
	}

	s.mu.Lock()
	rec := a.record(s.nextID())
	s.activities = append(s.activities, rec)
	res, err := s.persistActivities(ctx)
	observability.SetAggregate(s.dailySteps, s.dailyGoal, len(s.activities))
	s.mu.Unlock()

	if res.Persisted {
		observability.RecordActivityPersisted(s.now())
	}
	s.emit(ctx, events.TypeActivityRecorded, events.ActivityRecorded{
		ActivityID:   rec.ID,
		SessionID:    a.SessionID,
		ActivityType: rec.Type,
		Date:         rec.Date,
		Duration:     rec.Duration,
		Calories:     rec.Calories,
		Steps:        rec.Steps,
		Source:       a.Source,
		Persisted:    res.Persisted,
		Version:      events.Version,
	})
	return rec, res, err
}

// UpdateDailySteps replaces the daily step counter.
func (s *Store) UpdateDailySteps(ctx context.Context, steps int) (WriteResult, error) {
	if steps < 0 {
		return WriteResult{}, fmt.Errorf("%w: daily steps must be >= 0", apperrors.ErrInvalidFormInput)
	}

	s.mu.Lock()
	s.dailySteps = steps
	res, err := s.persist(ctx, KeyDailySteps, strconv.Itoa(steps))
	observability.SetAggregate(s.dailySteps, s.dailyGoal, len(s.activities))
	s.mu.Unlock()

	s.emit(ctx, events.TypeDailyStepsUpdated, events.DailyStepsUpdated{
		DailySteps: steps,
		OccurredAt: s.now().UTC(),
		Version:    events.Version,
	})
	return res, err
}

// UpdateDailyGoal replaces the goal, persists it and asks the notifier to
// reschedule the reminder. A scheduling failure is logged and does not fail
// the update.
func (s *Store) UpdateDailyGoal(ctx context.Context, goal int) (WriteResult, error) {
	if goal <= 0 {
		return WriteResult{}, fmt.Errorf("%w: goal must be > 0", apperrors.ErrInvalidGoalValue)
	}

	s.mu.Lock()
	s.dailyGoal = goal
	res, err := s.persist(ctx, KeyDailyGoal, strconv.Itoa(goal))
	observability.SetAggregate(s.dailySteps, s.dailyGoal, len(s.activities))
	s.mu.Unlock()

	if s.notifier != nil {
		if nerr := s.notifier.ScheduleDailyGoalReminder(ctx, goal, s.reminderHour, s.reminderMinute); nerr != nil {
			s.logger.Printf("schedule goal reminder failed: %v", nerr)
		}
	}
	s.emit(ctx, events.TypeDailyGoalUpdated, events.DailyGoalUpdated{
		DailyGoal:  goal,
		OccurredAt: s.now().UTC(),
		Version:    events.Version,
	})
	return res, err
}

// UpdateUserProfile replaces the profile wholesale.
func (s *Store) UpdateUserProfile(ctx context.Context, profile UserProfile) (WriteResult, error) {
	s.mu.Lock()
	p := profile
	s.profile = &p
	res, err := s.persistProfile(ctx)
	s.mu.Unlock()

	s.emit(ctx, events.TypeProfileUpdated, events.ProfileUpdated{
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		OccurredAt: s.now().UTC(),
		Version:    events.Version,
	})
	return res, err
}

// UpdateUserImage merges only the image into the profile. Without an existing
// profile the result is a partial profile holding just the image.
func (s *Store) UpdateUserImage(ctx context.Context, uri string) (WriteResult, error) {
	s.mu.Lock()
	var merged UserProfile
	if s.profile != nil {
		merged = *s.profile
	}
	merged.Image = uri
	s.profile = &merged
	res, err := s.persistProfile(ctx)
	s.mu.Unlock()

	s.emit(ctx, events.TypeProfileUpdated, events.ProfileUpdated{
		FirstName:  merged.FirstName,
		LastName:   merged.LastName,
		ImageOnly:  true,
		OccurredAt: s.now().UTC(),
		Version:    events.Version,
	})
	return res, err
}

// Flush retries the keys whose write-through failed. Keys that were only
// loaded, including ones that failed to hydrate, are left untouched so a
// store that could not read its state never overwrites it with defaults.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.dirty[KeyActivities] {
		_, err := s.persistActivities(ctx)
		errs = append(errs, err)
	}
	if s.dirty[KeyDailySteps] {
		_, err := s.persist(ctx, KeyDailySteps, strconv.Itoa(s.dailySteps))
		errs = append(errs, err)
	}
	if s.dirty[KeyDailyGoal] {
		_, err := s.persist(ctx, KeyDailyGoal, strconv.Itoa(s.dailyGoal))
		errs = append(errs, err)
	}
	if s.dirty[KeyUserProfile] {
		_, err := s.persistProfile(ctx)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Dirty reports whether a key holds changes that have not reached the Gateway.
func (s *Store) Dirty(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[key]
}

func (s *Store) persistActivities(ctx context.Context) (WriteResult, error) {
	body, err := json.Marshal(s.activities)
	if err != nil {
		s.dirty[KeyActivities] = true
		return WriteResult{Applied: true}, fmt.Errorf("%w: %s: %w", apperrors.ErrPersistenceWriteFailed, KeyActivities, err)
	}
	return s.persist(ctx, KeyActivities, string(body))
}

func (s *Store) persistProfile(ctx context.Context) (WriteResult, error) {
	body, err := json.Marshal(s.profile)
	if err != nil {
		s.dirty[KeyUserProfile] = true
		return WriteResult{Applied: true}, fmt.Errorf("%w: %s: %w", apperrors.ErrPersistenceWriteFailed, KeyUserProfile, err)
	}
	return s.persist(ctx, KeyUserProfile, string(body))
}

// persist must be called with s.mu held so writes reach the gateway in
// mutation order.
func (s *Store) persist(ctx context.Context, key, value string) (WriteResult, error) {
	if err := s.gateway.Set(ctx, key, value); err != nil {
		s.dirty[key] = true
		observability.RecordWriteFailure(key)
		s.logger.Printf("write-through %s failed, keeping in-memory state: %v", key, err)
		return WriteResult{Applied: true}, fmt.Errorf("%w: %s: %w", apperrors.ErrPersistenceWriteFailed, key, err)
	}
	delete(s.dirty, key)
	return WriteResult{Applied: true, Persisted: true}, nil
}

func (s *Store) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) emit(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, eventType, payload)
}
