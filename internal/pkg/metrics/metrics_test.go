package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("test")

	c.ObserveOperation("insert", time.Now(), nil)
	c.ObserveOperation("insert", time.Now(), errors.New("boom"))
	c.CacheOutcome("tree", "hit")
	c.EventPublished("CategoryCreated", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheRequests.WithLabelValues("tree", "hit")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_category_operations_total"))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveOperation("insert", time.Now(), nil)
		c.CacheOutcome("tree", "miss")
		c.EventPublished("CategoryCreated", nil)
	})
}
