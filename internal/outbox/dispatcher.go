// Package outbox queues aggregate change events in process and delivers them
// to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Message is one queued event.
type Message struct {
	EventID      int64
	EventType    string
	Topic        string
	PartitionKey string
	Payload      json.RawMessage
	OccurredAt   time.Time
	Attempts     int
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Queued      int `json:"queued"`
	DeadLetters int `json:"deadLetters"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithCapacity bounds the queue. Events emitted while it is full are dropped
// and counted.
func WithCapacity(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithMaxAttempts sets how many deliveries a message gets before it is parked
// as a dead letter.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// Dispatcher buffers events and drains them to Kafka in batches. Emit never
// blocks on the broker, so aggregate mutations are not slowed by it.
type Dispatcher struct {
	producer     messageWriter
	topic        string
	pollInterval time.Duration
	batchSize    int
	capacity     int
	maxAttempts  int
	logger       *log.Logger
	now          func() time.Time

	mu          sync.Mutex
	queue       []Message
	deadLetters []Message
	nextID      int64

	deliverMu        sync.Mutex
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher publishing to topic.
func NewDispatcher(producer messageWriter, topic string, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	d := &Dispatcher{
		producer:         producer,
		topic:            topic,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		capacity:         1024,
		maxAttempts:      5,
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags|log.Lshortfile),
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit queues an event. Payloads that cannot be encoded, and events emitted
// while the queue is full, are logged and dropped.
func (d *Dispatcher) Emit(_ context.Context, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Printf("encode %s event: %v", eventType, err)
		droppedCounter.Inc()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) >= d.capacity {
		droppedCounter.Inc()
		d.logger.Printf("queue full (%d), dropping %s event", d.capacity, eventType)
		return
	}
	d.nextID++
	d.queue = append(d.queue, Message{
		EventID:      d.nextID,
		EventType:    eventType,
		Topic:        d.topic,
		PartitionKey: eventType,
		Payload:      body,
		OccurredAt:   d.now().UTC(),
	})
	queueDepth.Set(float64(len(d.queue)))
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("outbox dispatcher error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// Flush delivers queued batches until the queue is empty or a delivery fails.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for {
		if d.Stats().Queued == 0 {
			return nil
		}
		if err := d.processBatch(ctx); err != nil {
			return err
		}
	}
}

// Stats reports queue and dead letter sizes.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Queued: len(d.queue), DeadLetters: len(d.deadLetters)}
}

// Requeue moves every dead letter back onto the queue with a fresh attempt
// budget and returns how many were moved.
func (d *Dispatcher) Requeue() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	moved := 0
	for _, msg := range d.deadLetters {
		if len(d.queue) >= d.capacity {
			break
		}
		msg.Attempts = 0
		d.queue = append(d.queue, msg)
		moved++
	}
	d.deadLetters = d.deadLetters[moved:]
	if len(d.deadLetters) == 0 {
		d.deadLetters = nil
	}
	requeuedCounter.Add(float64(moved))
	queueDepth.Set(float64(len(d.queue)))
	deadLetterGauge.Set(float64(len(d.deadLetters)))
	return moved
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	start := time.Now()

	messages := d.claim()
	if len(messages) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	if err := d.deliver(ctx, messages); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.release(messages)
		return err
	}

	deliveredCounter.Add(float64(len(messages)))
	return nil
}

func (d *Dispatcher) claim() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := min(d.batchSize, len(d.queue))
	if n == 0 {
		return nil
	}
	batch := append([]Message(nil), d.queue[:n]...)
	d.queue = d.queue[n:]
	queueDepth.Set(float64(len(d.queue)))
	return batch
}

// release puts a failed batch back at the head of the queue, parking the
// messages that ran out of attempts.
func (d *Dispatcher) release(messages []Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	retry := make([]Message, 0, len(messages))
	for _, msg := range messages {
		msg.Attempts++
		if msg.Attempts >= d.maxAttempts {
			d.deadLetters = append(d.deadLetters, msg)
			deadLetterCounter.WithLabelValues(msg.EventType).Inc()
			d.logger.Printf("event %d (%s) parked after %d attempts", msg.EventID, msg.EventType, msg.Attempts)
			continue
		}
		retry = append(retry, msg)
	}
	d.queue = append(retry, d.queue...)
	queueDepth.Set(float64(len(d.queue)))
	deadLetterGauge.Set(float64(len(d.deadLetters)))
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	order := make([]string, 0, 1)

	for _, msg := range messages {
		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: []byte(msg.Payload),
			Time:  msg.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
			},
		}
		if _, ok := batches[msg.Topic]; !ok {
			order = append(order, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range order {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return err
		}
	}
	return nil
}
