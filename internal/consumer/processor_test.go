package consumer

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/apperrors"
	"example.com/fittrack/internal/motion"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:     "motion_samples",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Value:     []byte(`{"x":0.1,"y":-0.2,"z":1.3,"t":1741165200123}`),
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, int64(10), handler.last.Offset)
	require.InDelta(t, 1.3, handler.last.Sample.Z, 1e-9)
	require.InDelta(t, -0.2, handler.last.Sample.Y, 1e-9)
	require.Equal(t, int64(1741165200123), handler.last.Sample.T.UnixMilli())
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{{Topic: "motion_samples", Offset: 20, Value: []byte(`{"x":0,"y":0,"z":1}`)}},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedSamples(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: "motion_samples", Offset: 1, Value: []byte(`not json`)},
			{Topic: "motion_samples", Offset: 2, Value: []byte(`{"x":1,"y":2}`)},
			{Topic: "motion_samples", Offset: 3, Value: []byte(`{"x":0,"y":0,"z":1}`)},
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(context.Background()), context.Canceled)

	require.Equal(t, 1, handler.calls, "only the well-formed sample reaches the handler")
	require.Equal(t, 3, reader.commitCalls)
	require.Equal(t, int64(3), handler.last.Offset)
}

func TestDecodeFallsBackToMessageTime(t *testing.T) {
	at := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	msg, err := decodeMessage(kafka.Message{Time: at, Value: []byte(`{"x":0,"y":0,"z":0}`)})
	require.NoError(t, err)
	require.True(t, msg.Sample.T.Equal(at))
}

func TestSamplerDeliversUntilCancelled(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: "motion_samples", Value: []byte(`{"x":0,"y":0,"z":1.5,"t":1}`)},
			{Topic: "motion_samples", Value: []byte(`{"x":0,"y":0,"z":0.9,"t":2}`)},
		},
	}
	factory := &stubFactory{reader: reader}
	sampler := NewSampler(factory, WithLogger(log.New(testWriter{t}, "", 0)))
	sampler.SetSampleInterval(time.Millisecond)

	var mu sync.Mutex
	var got []motion.Sample
	sub, err := sampler.Subscribe(func(s motion.Sample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)

	sub.Cancel()
	sub.Cancel()
	require.True(t, reader.closed)
	require.InDelta(t, 1.5, got[0].Z, 1e-9)
}

func TestSamplerWithoutReaderIsUnavailable(t *testing.T) {
	_, err := NewSampler(nil).Subscribe(func(motion.Sample) {})
	require.ErrorIs(t, err, apperrors.ErrSensorUnavailable)
}

type stubFactory struct {
	reader *stubReader
}

func (f *stubFactory) NewReader() Reader { return f.reader }

// stubReader serves messages in order, then returns after() or blocks until
// the context is done.
type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	closed      bool
	after       func() error
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
