package messaging

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

var (
	// ErrNSQProducerAddrRequired is returned when publishing without a producer address.
	ErrNSQProducerAddrRequired = errors.New("messaging: nsq producer address is required")
	// ErrNSQConsumerAddrsRequired is returned when consuming without nsqd or lookupd addresses.
	ErrNSQConsumerAddrsRequired = errors.New("messaging: nsq consumer nsqd/lookupd addresses are required")
)

// NSQConfig configures the NSQ implementation.
type NSQConfig struct {
	ProducerAddr string
	NSQDAddrs    []string
	LookupdAddrs []string
	MaxAttempts  uint16
	RequeueDelay time.Duration
}

// NSQ is a Messaging implementation backed by go-nsq.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer

	mu        sync.Mutex
	consumers []*nsq.Consumer
	closed    bool
}

// nsqEnvelope carries headers, which NSQ does not support natively.
// JSON bodies are embedded as is; anything else is base64 encoded in Raw.
type nsqEnvelope struct {
	Key     string            `json:"key,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	JSON    json.RawMessage   `json:"json,omitempty"`
	Raw     []byte            `json:"raw,omitempty"`
}

// NewNSQ constructs an NSQ client. The producer is created only when
// ProducerAddr is set.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	n := &NSQ{cfg: cfg}

	if cfg.ProducerAddr != "" {
		p, err := nsq.NewProducer(cfg.ProducerAddr, nsq.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("messaging: nsq new producer: %w", err)
		}
		p.SetLoggerLevel(nsq.LogLevelError)
		n.producer = p
	}

	return n, nil
}

// Publish sends msg to an NSQ topic wrapped in a JSON envelope.
func (n *NSQ) Publish(ctx context.Context, topic string, msg Outgoing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if n.producer == nil {
		return ErrNSQProducerAddrRequired
	}

	body, err := encodeNSQ(msg)
	if err != nil {
		return err
	}

	if err := n.producer.Publish(topic, body); err != nil {
		return fmt.Errorf("messaging: nsq publish: %w", err)
	}
	return nil
}

// Consume reads topic on the channel named by WithGroup until ctx is done.
// A handler error requeues the message until MaxAttempts is reached.
func (n *NSQ) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	if err := validateConsume(topic, h); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrGroupRequired
	}
	if len(n.cfg.NSQDAddrs) == 0 && len(n.cfg.LookupdAddrs) == 0 {
		return ErrNSQConsumerAddrsRequired
	}

	ccfg := nsq.NewConfig()
	ccfg.MaxInFlight = co.concurrency
	if n.cfg.MaxAttempts > 0 {
		ccfg.MaxAttempts = n.cfg.MaxAttempts
	}

	consumer, err := nsq.NewConsumer(topic, co.group, ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq new consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()

		decoded := decodeNSQ(topic, m)
		if err := safeHandle(ctx, DriverNSQ, h, decoded); err != nil {
			m.Requeue(n.cfg.RequeueDelay)
			return nil
		}
		m.Finish()
		return nil
	}), co.concurrency)

	if err := n.track(consumer); err != nil {
		consumer.Stop()
		return err
	}

	if len(n.cfg.LookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.LookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.NSQDAddrs)
	}
	if err != nil {
		consumer.Stop()
		<-consumer.StopChan
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func (n *NSQ) track(c *nsq.Consumer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.consumers = append(n.consumers, c)
	return nil
}

// Close stops consumers and the producer.
func (n *NSQ) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	consumers := n.consumers
	n.consumers = nil
	n.mu.Unlock()

	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

func encodeNSQ(msg Outgoing) ([]byte, error) {
	env := nsqEnvelope{Key: msg.Key, Headers: msg.Headers}
	if json.Valid(msg.Body) {
		env.JSON = msg.Body
	} else {
		env.Raw = msg.Body
	}
	return json.Marshal(env)
}

// decodeNSQ unwraps the envelope. A body that is not an envelope is passed
// through untouched so producers outside this package still work.
func decodeNSQ(topic string, m *nsq.Message) Message {
	out := Message{
		ID:        hex.EncodeToString(m.ID[:]),
		Topic:     topic,
		Body:      m.Body,
		Timestamp: time.Unix(0, m.Timestamp),
		Attempt:   int(m.Attempts),
	}

	var env nsqEnvelope
	if err := json.Unmarshal(m.Body, &env); err != nil || (env.JSON == nil && env.Raw == nil) {
		return out
	}

	out.Key = env.Key
	out.Headers = env.Headers
	out.Body = env.Raw
	if env.JSON != nil {
		out.Body = env.JSON
	}
	return out
}
