package order

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const TopicOrderCreated = "order.created"

type OutboxEvent struct {
	ID        uint            `gorm:"primaryKey"`
	EventID   string          `gorm:"uniqueIndex;not null"`
	Topic     string          `gorm:"not null"`
	Key       string          `gorm:"not null"`
	Payload   json.RawMessage `gorm:"type:jsonb"`
	CreatedAt time.Time
	SentAt    *time.Time
}

type OrderCreatedPayload struct {
	OrderID uint `json:"order_id"`
	UserID  uint `json:"user_id"`
}

// insertOutboxEvent writes an event row inside the caller's transaction so
// that it commits together with the domain change it announces.
func insertOutboxEvent(tx *gorm.DB, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return tx.Create(&OutboxEvent{
		EventID: eventID,
		Topic:   topic,
		Key:     key,
		Payload: data,
	}).Error
}

func (s *OrderStorage) FetchPendingEvents(limit int) ([]OutboxEvent, error) {
	var events []OutboxEvent
	err := s.db.Where("sent_at IS NULL").Order("id").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OrderStorage) MarkEventSent(id uint) error {
	now := time.Now()
	return s.db.Model(&OutboxEvent{}).Where("id = ?", id).Update("sent_at", &now).Error
}
