package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/fittrack/internal/apperrors"
	"example.com/fittrack/internal/motion"
)

// ReaderFactory opens a fresh Reader for each subscription.
type ReaderFactory interface {
	NewReader() Reader
}

// KafkaReaderFactory builds consumer-group readers for a sample topic.
type KafkaReaderFactory struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader returns a kafka.Reader positioned at the group's committed offset.
func (f KafkaReaderFactory) NewReader() Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     f.Brokers,
		Topic:       f.Topic,
		GroupID:     f.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     250 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
}

// Sampler is a motion.Sampler fed by a Kafka topic. The producer governs the
// sample rate.
type Sampler struct {
	factory ReaderFactory
	opts    []Option
}

// NewSampler constructs a Sampler. Options apply to each subscription's processor.
func NewSampler(factory ReaderFactory, opts ...Option) *Sampler {
	return &Sampler{factory: factory, opts: opts}
}

// SetSampleInterval is a no-op.
func (s *Sampler) SetSampleInterval(time.Duration) {}

// Subscribe starts consuming and calls fn for every decoded sample.
func (s *Sampler) Subscribe(fn func(motion.Sample)) (motion.Subscription, error) {
	if s.factory == nil {
		return nil, apperrors.ErrSensorUnavailable
	}
	reader := s.factory.NewReader()
	if reader == nil {
		return nil, apperrors.ErrSensorUnavailable
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	processor := NewProcessor(reader, HandlerFunc(func(_ context.Context, msg Message) error {
		fn(msg.Sample)
		return nil
	}), s.opts...)

	go func() {
		defer close(sub.done)
		defer func() {
			if err := reader.Close(); err != nil {
				processor.logger.Printf("close reader: %v", err)
			}
		}()
		if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			processor.logger.Printf("motion consumer stopped: %v", err)
		}
	}()
	return sub, nil
}

type subscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the processor and waits for it to exit.
func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}
