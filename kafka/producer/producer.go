package producer

import (
	"context"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/kafka"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/resilience"
)

// Writer is the part of kafka-go's Writer the producer drives.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.WriterStats
	Close() error
}

// Producer wraps a kafka-go Writer with TLS/SASL, retries and imgprep logging.
type Producer struct {
	writer Writer
	cfg    kafka.Config
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewProducer validates cfg and creates a producer. The underlying writer
// connects on first use, so a broker that is down at startup does not fail
// construction.
func NewProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, errors.InvalidInput("events.enabled", "publishing is disabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("kafka")
	}

	p := &Producer{cfg: cfg, log: log.WithComponent("kafka.producer")}
	if err := p.initWriter(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewWithWriter creates a producer over an existing writer.
func NewWithWriter(cfg kafka.Config, w Writer, log *logger.Logger) *Producer {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Producer{writer: w, cfg: cfg, log: log.WithComponent("kafka.producer")}
}

func (p *Producer) initWriter() error {
	w, err := kafka.NewWriter(p.cfg, p.log)
	if err != nil {
		return err
	}
	p.writer = w
	p.log.Debug("kafka producer initialized", logger.Fields(
		"brokers", p.cfg.Brokers,
		"topic", p.cfg.Topic,
		"compression", p.cfg.Compression,
	))
	return nil
}

// Topic is the topic the producer writes to.
func (p *Producer) Topic() string { return p.cfg.Topic }

// WriteMessages sends messages, retrying retryable failures with backoff.
// The error after the last attempt is classified by kafka.Classify.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return errors.Usage("kafka producer", "write after close")
	}

	policy := resilience.Policy{
		Attempts:  p.cfg.Retries,
		Initial:   100 * time.Millisecond,
		Max:       time.Second,
		Retryable: kafka.Retryable,
	}.Logged(p.log, "kafka write")
	err := resilience.DoErr(ctx, policy, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return kafka.Classify(p.cfg.Topic, err)
}

// Stats returns the writer's counters since the last call.
func (p *Producer) Stats() kafkago.WriterStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.writer == nil {
		return kafkago.WriterStats{}
	}
	return p.writer.Stats()
}

// Close flushes and shuts down the producer. Safe to call multiple times.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.writer == nil {
		return nil
	}
	st := p.writer.Stats()
	p.log.Debug("kafka producer closing", logger.Fields(
		"messages", st.Messages,
		"errors", st.Errors,
		"retries", st.Retries,
		logger.FieldDuration, st.WriteTime.Max.Milliseconds(),
	))
	return p.writer.Close()
}
