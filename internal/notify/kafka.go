package notify

import (
	"context"
	"time"

	"blofin_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Envelope: сообщение в топике событий.
type Envelope struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

const (
	EventExecution = "execution"
	EventFill      = "fill"
	EventFailure   = "failure"
)

// MessageWriter: часть kafka.Writer, которая нужна отправителю.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka публикует события, ключ сообщения: символ.
type Kafka struct {
	w MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
}

func NewKafka(w MessageWriter) *Kafka { return &Kafka{w: w} }

func (k *Kafka) NotifyExecution(ctx context.Context, res *models.ExecutionResult) error {
	return k.publish(ctx, res.InstID, Envelope{Type: EventExecution, At: res.FinishedAt, Data: res})
}

func (k *Kafka) NotifyFill(ctx context.Context, ev models.FillEvent) error {
	return k.publish(ctx, ev.InstID, Envelope{Type: EventFill, At: ev.At, Data: ev})
}

func (k *Kafka) NotifyFailure(ctx context.Context, ev models.FailureEvent) error {
	return k.publish(ctx, ev.InstID, Envelope{Type: EventFailure, At: ev.At, Data: ev})
}

func (k *Kafka) publish(ctx context.Context, key string, env Envelope) error {
	value, err := sonic.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "kafka: marshal %s", env.Type)
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return errors.Wrapf(err, "kafka: write %s", env.Type)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
