// Package firehose mirrors every persisted message onto a kafka topic so
// downstream consumers (archival, analytics) can tail the conversation
// stream without touching the primary store.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/kralgram/kralgram/store"
)

const writeTimeout = 3 * time.Second

// record is the topic value. Keyed by room so one room stays on one
// partition.
type record struct {
	ID        string  `json:"id"`
	RoomID    string  `json:"room_id"`
	SenderID  string  `json:"sender_id"`
	Content   string  `json:"content"`
	Kind      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type Writer struct {
	kw       *kafka.Writer
	maxBytes int
}

// NewWriter builds a kafka writer for the given brokers and topic. maxBytes
// bounds a single record; oversized messages are rejected, not truncated.
func NewWriter(brokers []string, topic string, maxBytes int) *Writer {
	return &Writer{
		kw: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.Hash{},
			Dialer: &kafka.Dialer{
				Timeout:   writeTimeout,
				DualStack: true,
			},
		}),
		maxBytes: maxBytes,
	}
}

// Publish writes one persisted message to the topic. Callers treat failures
// as non-fatal: the message is already durable in the primary store.
func (w *Writer) Publish(ctx context.Context, m *store.Message) error {
	value, err := json.Marshal(&record{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Kind:      m.Kind,
		Timestamp: float64(m.CreateTime.UnixNano()) / 1e9,
	})
	if err != nil {
		return fmt.Errorf("error marshal message %s: %v", m.ID, err)
	}
	if len(value) > w.maxBytes {
		return fmt.Errorf("firehose: msg exceeds max limit: %d bytes", w.maxBytes)
	}

	ctx2, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := w.kw.WriteMessages(ctx2, kafka.Message{
		Key:   []byte(m.RoomID),
		Value: value,
	}); err != nil {
		return fmt.Errorf("error write to kafka: %v", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.kw.Close()
}
