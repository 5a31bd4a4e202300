package producer

import (
	"context"
	stderrors "errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/kafka"
	"github.com/kbukum/imgprep/logger"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	fails  []error
	calls  int
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.calls++
	if len(w.fails) > 0 {
		err := w.fails[0]
		w.fails = w.fails[1:]
		return err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Stats() kafkago.WriterStats {
	return kafkago.WriterStats{Messages: int64(len(w.msgs)), Topic: "imgprep.runs"}
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(NewWithWriter(kafka.Config{}, w, logger.Nop()), logger.Nop())

	e := kafka.NewEvent(kafka.EventRunCompleted, "imgprep", "run-7", map[string]interface{}{"routed": 3})
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "run-7" {
		t.Errorf("key = %q, want subject", msg.Key)
	}
	got, err := kafka.ParseEvent(msg.Value)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != kafka.EventRunCompleted || got.Data["routed"] != 3.0 {
		t.Errorf("decoded = %+v", got)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event-type"] != kafka.EventRunCompleted || headers["content-type"] != "application/json" {
		t.Errorf("headers = %v", headers)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: err=%v closed=%v", err, w.closed)
	}
}

func TestPartitionKey_FallsBackToID(t *testing.T) {
	e := kafka.Event{ID: "evt-1"}
	if got := partitionKey(e); got != "evt-1" {
		t.Errorf("key = %q", got)
	}
}

func TestProducer_RetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{fails: []error{stderrors.New("dial tcp: connection refused")}}
	p := NewWithWriter(kafka.Config{Retries: 3}, w, logger.Nop())
	if err := p.WriteMessages(context.Background(), kafkago.Message{Value: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if w.calls != 2 {
		t.Errorf("calls = %d, want 2", w.calls)
	}
	if got := p.Stats().Messages; got != 1 {
		t.Errorf("stats messages = %d", got)
	}
}

func TestProducer_RejectedEventStops(t *testing.T) {
	w := &fakeWriter{fails: []error{kafkago.MessageSizeTooLarge}}
	p := NewWithWriter(kafka.Config{Retries: 3}, w, logger.Nop())
	err := p.WriteMessages(context.Background(), kafkago.Message{})
	if !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Fatalf("expected USAGE error, got %v", err)
	}
	if w.calls != 1 {
		t.Errorf("calls = %d, want 1", w.calls)
	}
}

func TestProducer_ExhaustedRetriesAreIO(t *testing.T) {
	down := kafkago.LeaderNotAvailable
	w := &fakeWriter{fails: []error{down, down, down}}
	p := NewWithWriter(kafka.Config{Retries: 3}, w, logger.Nop())
	err := p.WriteMessages(context.Background(), kafkago.Message{})
	if !errors.HasCode(err, errors.ErrCodeIO) || !stderrors.Is(err, down) {
		t.Fatalf("expected IO wrapping the broker error, got %v", err)
	}
	if w.calls != 3 {
		t.Errorf("calls = %d, want 3", w.calls)
	}
}

func TestProducer_WriteAfterClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(kafka.Config{}, w, logger.Nop())
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := p.WriteMessages(context.Background(), kafkago.Message{}); !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Fatalf("expected USAGE error, got %v", err)
	}
}

func TestNewProducer_Disabled(t *testing.T) {
	if _, err := NewProducer(kafka.Config{}, logger.Nop()); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestNewProducer_Lazy(t *testing.T) {
	p, err := NewProducer(kafka.Config{Enabled: true, Brokers: []string{"127.0.0.1:1"}}, logger.Nop())
	if err != nil {
		t.Fatalf("construction must not dial: %v", err)
	}
	if p.Topic() != kafka.DefaultTopic {
		t.Errorf("topic = %q", p.Topic())
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
