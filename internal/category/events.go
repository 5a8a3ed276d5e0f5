package category

import (
	"context"
	"time"
)

const (
	EventCategoryCreated     = "CategoryCreated"
	EventCategoryUpdated     = "CategoryUpdated"
	EventCategoryDeleted     = "CategoryDeleted"
	EventCategoryMoved       = "CategoryMoved"
	EventCategoryTreeRebuilt = "CategoryTreeRebuilt"
)

// Event announces a committed change to a merchant's tree.
type Event struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	MerchantID string    `json:"merchant_id"`
	CategoryID string    `json:"category_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}
