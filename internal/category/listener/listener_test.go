package listener

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-category-service/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueReader hands out queued messages, then blocks until cancelled.
type queueReader struct {
	msgs chan kafka.Message
}

func (q *queueReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-q.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func event(t *testing.T, eventType, merchantID string) kafka.Message {
	t.Helper()
	data, err := json.Marshal(category.Event{EventType: eventType, MerchantID: merchantID})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(merchantID), Value: data}
}

func TestInvalidationListener(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)
	require.NoError(t, c.Set(ctx, category.TreeKey("m1"), []byte("[]"), time.Hour))
	require.NoError(t, c.Set(ctx, category.NodeKey("m1", "a"), []byte("{}"), time.Hour))
	require.NoError(t, c.Set(ctx, category.TreeKey("m2"), []byte("[]"), time.Hour))

	reader := &queueReader{msgs: make(chan kafka.Message, 4)}
	reader.msgs <- kafka.Message{Value: []byte("not json")}
	reader.msgs <- event(t, "SomethingElse", "m2")
	reader.msgs <- event(t, category.EventCategoryMoved, "m1")

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		NewInvalidationListener(reader, c, logger.NewNop()).Start(runCtx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, category.TreeKey("m1"))
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	_, ok, _ := c.Get(ctx, category.NodeKey("m1", "a"))
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, category.TreeKey("m2"))
	assert.True(t, ok)
}
