// Package kafka reads the event stream from a Kafka topic with a consumer
// group. Records are keyed by aggregate id, so one aggregate's events stay in
// one partition and arrive in order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postquery/infrastructure/messaging"
	"postquery/pkg/logger"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// Source wraps a kafka-go consumer group reader. Offsets are committed
// explicitly, one record at a time.
type Source struct {
	reader *kafkago.Reader
}

func NewSource(cfg Config) (*Source, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka group id is required")
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafkago.FirstOffset,
		// zero means commits are synchronous
		CommitInterval: 0,
		Logger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), zap.String("component", "kafka"))
		}),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...), zap.String("component", "kafka"))
		}),
	})

	logger.Info("Kafka source configured",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
	)
	return &Source{reader: reader}, nil
}

func (s *Source) Fetch(ctx context.Context) (messaging.Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return messaging.Message{}, err
	}
	return toMessage(m), nil
}

func (s *Source) Commit(ctx context.Context, msg messaging.Message) error {
	m, ok := msg.Handle.(kafkago.Message)
	if !ok {
		return errors.New("message was not fetched from kafka")
	}
	return s.reader.CommitMessages(ctx, m)
}

func (s *Source) Close() error {
	return s.reader.Close()
}

func toMessage(m kafkago.Message) messaging.Message {
	return messaging.Message{
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.Partition,
		Offset:    m.Offset,
		Handle:    m,
	}
}

var _ messaging.Source = (*Source)(nil)
