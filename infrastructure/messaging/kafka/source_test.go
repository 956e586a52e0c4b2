package kafka

import (
	"context"
	"testing"

	"postquery/infrastructure/messaging"

	kafkago "github.com/segmentio/kafka-go"
)

func TestNewSourceValidatesConfig(t *testing.T) {
	valid := Config{Brokers: []string{"localhost:9092"}, Topic: "SocialMediaPostEvents", GroupID: "SM_Consumer"}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no brokers", func(c *Config) { c.Brokers = nil }, true},
		{"no topic", func(c *Config) { c.Topic = "" }, true},
		{"no group", func(c *Config) { c.GroupID = "" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			src, err := NewSource(cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewSource() error = %v, wantErr %v", err, tc.wantErr)
			}
			if src != nil {
				src.Close()
			}
		})
	}
}

func TestToMessageKeepsHandle(t *testing.T) {
	m := kafkago.Message{Key: []byte("P1"), Value: []byte(`{}`), Partition: 2, Offset: 41}
	msg := toMessage(m)
	if msg.Partition != 2 || msg.Offset != 41 || string(msg.Key) != "P1" {
		t.Errorf("message = %+v", msg)
	}
	if _, ok := msg.Handle.(kafkago.Message); !ok {
		t.Errorf("Handle = %T, want kafka.Message", msg.Handle)
	}
}

func TestCommitRejectsForeignMessage(t *testing.T) {
	src, err := NewSource(Config{Brokers: []string{"localhost:9092"}, Topic: "t", GroupID: "g"})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	defer src.Close()

	if err := src.Commit(context.Background(), messaging.Message{Handle: int64(3)}); err == nil {
		t.Error("Commit() accepted a message from another source")
	}
}
