package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/segmentio/kafka-go"
)

// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer
}

// Kafka is a Messaging implementation backed by kafka-go. Offsets are
// committed after the handler returns, even on error, so one poisoned message
// cannot stall a partition; handlers own their retries.
type Kafka struct {
	cfg KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafka constructs a Kafka client. Connections are opened lazily.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}
	return &Kafka{cfg: cfg, writers: map[string]*kafka.Writer{}}, nil
}

// Publish writes msg to topic and waits for the broker ack.
func (k *Kafka) Publish(ctx context.Context, topic string, msg Outgoing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	w, err := k.writer(topic)
	if err != nil {
		return err
	}

	km := kafka.Message{Key: []byte(msg.Key), Value: msg.Body}
	for hk, hv := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: hk, Value: []byte(hv)})
	}

	if err := w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	//nolint:staticcheck // WriterConfig keeps Dialer support for SASL/TLS
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  k.cfg.Brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer:   k.cfg.Dialer,
	})
	k.writers[topic] = w
	return w, nil
}

// Consume reads topic as the group named by WithGroup until ctx is done.
func (k *Kafka) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	if err := validateConsume(topic, h); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrGroupRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.cfg.Brokers,
		GroupID:  co.group,
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   k.cfg.Dialer,
	})
	defer reader.Close()

	sem := make(chan struct{}, co.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("messaging: kafka fetch: %w", err)
		}

		sem <- struct{}{}
		wg.Go(func() {
			defer func() { <-sem }()

			if err := safeHandle(ctx, DriverKafka, h, decodeKafka(m)); err != nil {
				slog.WarnContext(ctx, "kafka handler failed, committing anyway", "topic", m.Topic, "offset", m.Offset, "error", err)
			}
			if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "kafka commit failed", "topic", m.Topic, "offset", m.Offset, "error", err)
			}
		})
	}
}

// Close flushes and closes all writers.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true

	var errs []error
	for _, w := range k.writers {
		errs = append(errs, w.Close())
	}
	k.writers = nil
	return errors.Join(errs...)
}

func decodeKafka(m kafka.Message) Message {
	out := Message{
		ID:        m.Topic + "/" + strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10),
		Topic:     m.Topic,
		Key:       string(m.Key),
		Body:      m.Value,
		Timestamp: m.Time,
		Attempt:   1,
	}

	if len(m.Headers) > 0 {
		out.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			out.Headers[hdr.Key] = string(hdr.Value)
		}
	}

	return out
}
