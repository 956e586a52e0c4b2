// Package messaging feeds the write side's event stream into the projector.
package messaging

import (
	"context"
	"fmt"
)

// Message is one record fetched from a Source.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	// Handle is source specific and passed back on Commit.
	Handle any
}

func (m Message) String() string {
	return fmt.Sprintf("partition=%d offset=%d", m.Partition, m.Offset)
}

// Source is an ordered, committable stream of records. Fetch blocks until a
// record is available or ctx ends. A Source is used by one goroutine.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	// Commit marks msg and everything before it in its partition as done.
	Commit(ctx context.Context, msg Message) error
	Close() error
}
