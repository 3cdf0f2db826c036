// Package app constructs the tracker from configuration and owns its
// lifecycle: one aggregate, one live session, and their collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/consumer"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
	"example.com/fittrack/internal/notify"
	"example.com/fittrack/internal/outbox"
	"example.com/fittrack/internal/persistence"
	"example.com/fittrack/internal/session"
	"example.com/fittrack/internal/stepcounter"
)

// App holds the wired components. Fields are read-only after New.
type App struct {
	Config  config.Config
	Store   *domain.Store
	Service *domain.Service
	Session *session.Session
	// Hub is set when the motion source is push.
	Hub *motion.Hub
	// Outbox is nil when no Kafka brokers are configured.
	Outbox *outbox.Dispatcher

	scheduler    *notify.Scheduler
	producer     *outbox.KafkaProducer
	stopOutbox   context.CancelFunc
	closeGateway func()
	logger       *log.Logger
}

type options struct {
	logger   *log.Logger
	notifier domain.Notifier
	sampler  motion.Sampler
}

// Option customises New.
type Option func(*options)

// WithLogger overrides the application logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNotifier replaces the reminder scheduler, e.g. with notify.NoopNotifier
// for short-lived commands.
func WithNotifier(n domain.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithSampler overrides the sampler chosen from Config.MotionSource.
func WithSampler(s motion.Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// New opens storage, hydrates the aggregate and wires the session. Storage
// read failures are logged and leave defaults in place; they do not fail New.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{logger: log.New(log.Writer(), "[app] ", log.LstdFlags|log.Lshortfile)}
	for _, opt := range opts {
		opt(&o)
	}

	gateway, closeGateway, err := persistence.Open(ctx, persistence.Options{
		Driver:      cfg.StoreDriver,
		SQLitePath:  cfg.SQLitePath,
		PostgresURL: cfg.PostgresURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{Config: cfg, closeGateway: closeGateway, logger: o.logger}

	var sink domain.EventSink = outbox.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = outbox.NewKafkaProducer(cfg.KafkaBrokers)
		a.Outbox = outbox.NewDispatcher(a.producer, cfg.ActivityTopic, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithCapacity(cfg.OutboxCapacity))
		runCtx, cancel := context.WithCancel(context.Background())
		a.stopOutbox = cancel
		go a.Outbox.Start(runCtx)
		sink = a.Outbox
	}

	notifier := o.notifier
	if notifier == nil {
		a.scheduler = notify.NewScheduler(notify.Multi{
			notify.LogDeliverer{Logger: o.logger},
			notify.EventDeliverer{Events: sink},
		})
		notifier = a.scheduler
	}

	a.Store = domain.NewStore(gateway,
		domain.WithNotifier(notifier),
		domain.WithEventSink(sink),
		domain.WithReminderTime(cfg.ReminderHour, cfg.ReminderMinute),
	)
	if err := a.Store.Load(ctx); err != nil {
		a.logger.Printf("warning: %v", err)
	}
	a.Service = domain.NewService(a.Store)

	if a.scheduler != nil {
		if err := a.scheduler.ScheduleDailyGoalReminder(ctx, a.Store.DailyGoal(), cfg.ReminderHour, cfg.ReminderMinute); err != nil {
			a.logger.Printf("warning: schedule reminder: %v", err)
		}
	}

	sampler := o.sampler
	if sampler == nil {
		sampler, err = a.newSampler(cfg)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}

	a.Session = session.New(sampler, a.Store,
		session.WithTimerTick(cfg.TimerTick),
		session.WithSampleInterval(cfg.SampleInterval),
		session.WithDetectorConfig(stepcounter.Config{
			Threshold:    cfg.StepThreshold,
			MinStepDelay: cfg.StepMinDelay,
		}),
	)
	return a, nil
}

func (a *App) newSampler(cfg config.Config) (motion.Sampler, error) {
	switch cfg.MotionSource {
	case config.MotionSimulated, "":
		return motion.NewTickerSampler(motion.NewNoiseSource(0, 0), cfg.SampleInterval), nil
	case config.MotionPush:
		a.Hub = motion.NewHub()
		return a.Hub, nil
	case config.MotionKafka:
		return consumer.NewSampler(consumer.KafkaReaderFactory{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.MotionTopic,
			GroupID: cfg.MotionGroupID,
		}), nil
	default:
		return nil, fmt.Errorf("unknown motion source %q", cfg.MotionSource)
	}
}

// Close tears the session down, flushes the aggregate and the outbox, then
// releases connections. Every step runs even if an earlier one fails.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Session != nil {
		errs = append(errs, a.Session.Close())
	}
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	if a.Store != nil {
		if err := a.Store.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush store: %w", err))
		}
	}
	if a.Outbox != nil {
		a.stopOutbox()
		a.Outbox.Wait()
		if err := a.Outbox.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush outbox: %w", err))
		}
		if stats := a.Outbox.Stats(); stats.Queued > 0 || stats.DeadLetters > 0 {
			a.logger.Printf("outbox closed with %d queued and %d dead letters", stats.Queued, stats.DeadLetters)
		}
		errs = append(errs, a.producer.Close())
	}
	if a.closeGateway != nil {
		a.closeGateway()
	}
	return errors.Join(errs...)
}
