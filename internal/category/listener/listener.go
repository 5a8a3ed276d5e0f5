package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-category-service/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of broker.KafkaConsumer the listener needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// InvalidationListener keeps a replica's in-process cache coherent with
// mutations committed by other replicas. Each replica reads the category
// topic under its own consumer group so it sees every event.
type InvalidationListener struct {
	reader MessageReader
	cache  cache.Cache
	logger logger.ZapLogger
	retry  time.Duration
}

func NewInvalidationListener(reader MessageReader, c cache.Cache, log logger.ZapLogger) *InvalidationListener {
	return &InvalidationListener{
		reader: reader,
		cache:  c,
		logger: log,
		retry:  time.Second,
	}
}

func (l *InvalidationListener) Start(ctx context.Context) {
	l.logger.Info("Starting category invalidation listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping category invalidation listener")
			return
		default:
			msg, err := l.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.retry)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *InvalidationListener) processMessage(ctx context.Context, value []byte) {
	var event category.Event
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}
	if event.MerchantID == "" {
		return
	}

	switch event.EventType {
	case category.EventCategoryCreated,
		category.EventCategoryUpdated,
		category.EventCategoryDeleted,
		category.EventCategoryMoved,
		category.EventCategoryTreeRebuilt:
	default:
		return
	}

	for _, pattern := range category.InvalidationPatterns(event.MerchantID) {
		if err := l.cache.Clear(ctx, pattern); err != nil {
			l.logger.Warn("Failed to invalidate category cache",
				zap.String("event_type", event.EventType),
				zap.String("pattern", pattern),
				zap.Error(err),
			)
		}
	}
	l.logger.Debug("Invalidated category cache",
		zap.String("event_type", event.EventType),
		zap.String("merchant_id", event.MerchantID),
	)
}
