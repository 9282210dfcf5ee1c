package kafka

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"sodap/core"
	"sodap/crypto"
	"sodap/observability"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventMessage is the JSON value of each published record.
type EventMessage struct {
	Height     uint64            `json:"height"`
	TxHash     string            `json:"txHash"`
	Operation  string            `json:"operation"`
	Sender     string            `json:"sender"`
	Position   int               `json:"position"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

// Publisher forwards committed ledger events to a Kafka topic. Records are
// keyed by store address so one store's events stay ordered on a partition.
// Publishing is asynchronous; a full buffer drops the event and counts it.
type Publisher struct {
	w      messageWriter
	inbox  chan kafka.Message
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

// NewPublisher builds a publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, buf int, logger *slog.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf, logger)
}

func newPublisher(w messageWriter, buf int, logger *slog.Logger) *Publisher {
	if buf <= 0 {
		buf = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		w:      w,
		inbox:  make(chan kafka.Message, buf),
		logger: logger.With(slog.String("component", "kafka")),
		done:   make(chan struct{}),
	}
}

// Start runs the delivery loop until ctx is cancelled or Close is called,
// flushing whatever is still buffered before returning.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					p.write(m)
				}
				_ = p.w.Close()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		observability.Events().RecordDrop("kafka")
		p.logger.Error("kafka write failed", slog.String("key", string(m.Key)), slog.String("error", err.Error()))
	}
}

// Close stops accepting events. Buffered events are still flushed.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.inbox) })
}

// WaitClosed blocks until the delivery loop exits.
func (p *Publisher) WaitClosed() { <-p.done }

// Hook adapts the publisher to a ledger commit hook.
func (p *Publisher) Hook() core.CommitHook {
	return func(res *core.Result) {
		for _, m := range Messages(res) {
			p.enqueue(m)
		}
	}
}

func (p *Publisher) enqueue(m kafka.Message) {
	defer func() {
		// Publishing after Close drops the event instead of panicking.
		if recover() != nil {
			observability.Events().RecordDrop("kafka")
		}
	}()
	select {
	case p.inbox <- m:
	default:
		observability.Events().RecordDrop("kafka")
		p.logger.Warn("kafka buffer full, dropping event", slog.String("key", string(m.Key)))
	}
}

// Messages renders the events of a committed result as Kafka records.
func Messages(res *core.Result) []kafka.Message {
	if res == nil {
		return nil
	}
	txHash := "0x" + hex.EncodeToString(res.Hash[:])
	out := make([]kafka.Message, 0, len(res.Events))
	for i, evt := range res.Events {
		if evt == nil {
			continue
		}
		value, err := json.Marshal(EventMessage{
			Height:     res.Height,
			TxHash:     txHash,
			Operation:  res.Type.String(),
			Sender:     crypto.FormatCredential(res.Sender),
			Position:   i,
			Type:       evt.Type,
			Attributes: evt.Attributes,
			Timestamp:  res.Timestamp,
		})
		if err != nil {
			continue
		}
		key := evt.Attribute("store")
		if key == "" {
			key = txHash
		}
		out = append(out, kafka.Message{
			Key:   []byte(key),
			Value: value,
			Time:  time.Unix(res.Timestamp, 0).UTC(),
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(evt.Type)},
				{Key: "height", Value: []byte(strconv.FormatUint(res.Height, 10))},
			},
		})
	}
	return out
}
