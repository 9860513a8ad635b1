package securityevent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes security events to a Kafka topic for downstream
// anomaly pipelines.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaSink creates a Kafka sink writing to the given topic.
// Returns (nil, nil) when brokers or topic are unset, so callers can wire it
// unconditionally. Call Close when shutting down.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{writer: writer, topic: topic}, nil
}

type kafkaEvent struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Type      string    `json:"type"`
	SubjectID string    `json:"subject_id"`
	SessionID string    `json:"session_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Record serializes the event as JSON and writes it to the topic. Keyed by
// subject so one subject's events stay ordered within a partition. Uses the
// request context with a short timeout so a slow broker does not block
// callers indefinitely.
func (s *KafkaSink) Record(ctx context.Context, e Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	payload, err := json.Marshal(kafkaEvent{
		ID: e.ID, Severity: e.Severity, Type: e.Type,
		SubjectID: e.SubjectID, SessionID: e.SessionID,
		IP: e.IP, Detail: e.Detail, At: e.At,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.SubjectID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
