package po

import "time"

// ProjectionVersionPO records the last event version applied per aggregate.
// Rows outlive the aggregate so re-delivered events of a deleted post stay
// no-ops.
type ProjectionVersionPO struct {
	AggregateID string    `gorm:"primaryKey;size:64"`
	Version     int64     `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ProjectionVersionPO) TableName() string {
	return "projection_versions"
}

// EventLogPO is one record of the write side's ordered event log.
type EventLogPO struct {
	Position  int64     `gorm:"primaryKey;autoIncrement"`
	Type      string    `gorm:"size:100;index;not null"`
	Data      []byte    `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
}

func (EventLogPO) TableName() string {
	return "event_log"
}

// SubscriptionPositionPO is the committed read position of one consumer.
type SubscriptionPositionPO struct {
	SubscriptionID string    `gorm:"primaryKey;size:100"`
	Position       int64     `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (SubscriptionPositionPO) TableName() string {
	return "subscription_positions"
}
