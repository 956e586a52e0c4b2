package rdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"postquery/infrastructure/persistence/rdb/po"

	eventbus "github.com/jilio/ebu"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventLogStore keeps the write side's event log and the consumers' read
// positions in the read model database. Positions are assigned by the
// database and start at 1.
type EventLogStore struct {
	db *gorm.DB
}

func NewEventLogStore(db *gorm.DB) *EventLogStore {
	return &EventLogStore{db: db}
}

// Save appends event and sets its Position.
func (s *EventLogStore) Save(ctx context.Context, event *eventbus.StoredEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	record := &po.EventLogPO{
		Type:      event.Type,
		Data:      []byte(event.Data),
		Timestamp: event.Timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}
	event.Position = record.Position
	return nil
}

// Load returns events with from <= position <= to in order; to == -1 means
// no upper bound.
func (s *EventLogStore) Load(ctx context.Context, from, to int64) ([]*eventbus.StoredEvent, error) {
	query := s.db.WithContext(ctx).Where("position >= ?", from)
	if to != -1 {
		query = query.Where("position <= ?", to)
	}

	var records []po.EventLogPO
	if err := query.Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	events := make([]*eventbus.StoredEvent, len(records))
	for i, r := range records {
		events[i] = &eventbus.StoredEvent{
			Position:  r.Position,
			Type:      r.Type,
			Data:      r.Data,
			Timestamp: r.Timestamp,
		}
	}
	return events, nil
}

func (s *EventLogStore) GetPosition(ctx context.Context) (int64, error) {
	var position sql.NullInt64
	row := s.db.WithContext(ctx).Model(&po.EventLogPO{}).Select("MAX(position)").Row()
	if err := row.Scan(&position); err != nil {
		return 0, err
	}
	return position.Int64, nil
}

func (s *EventLogStore) SaveSubscriptionPosition(ctx context.Context, subscriptionID string, position int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
		}).
		Create(&po.SubscriptionPositionPO{SubscriptionID: subscriptionID, Position: position}).Error
}

// LoadSubscriptionPosition returns 0 for a subscription that never committed.
func (s *EventLogStore) LoadSubscriptionPosition(ctx context.Context, subscriptionID string) (int64, error) {
	var positionPO po.SubscriptionPositionPO
	err := s.db.WithContext(ctx).First(&positionPO, "subscription_id = ?", subscriptionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return positionPO.Position, nil
}

var _ eventbus.EventStore = (*EventLogStore)(nil)
