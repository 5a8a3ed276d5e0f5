package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/category/dto"
	"github.com/fekuna/omnipos-category-service/internal/category/nestedset"
	"github.com/fekuna/omnipos-category-service/internal/model"
	"github.com/fekuna/omnipos-category-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-category-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-category-service/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, c *model.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockRepository) FindByID(ctx context.Context, merchantID, id string) (*model.Category, error) {
	args := m.Called(ctx, merchantID, id)
	c, _ := args.Get(0).(*model.Category)
	return c, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, c *model.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockRepository) Delete(ctx context.Context, merchantID, id string) (int, error) {
	args := m.Called(ctx, merchantID, id)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) PromoteToRoot(ctx context.Context, merchantID, id string) (*model.Category, error) {
	args := m.Called(ctx, merchantID, id)
	c, _ := args.Get(0).(*model.Category)
	return c, args.Error(1)
}

func (m *mockRepository) Move(ctx context.Context, merchantID, id string, parentID *string) (*model.Category, error) {
	args := m.Called(ctx, merchantID, id, parentID)
	c, _ := args.Get(0).(*model.Category)
	return c, args.Error(1)
}

func (m *mockRepository) Rebuild(ctx context.Context, merchantID string, forest []*nestedset.Node) error {
	return m.Called(ctx, merchantID, forest).Error(0)
}

func (m *mockRepository) Repair(ctx context.Context, merchantID string) error {
	return m.Called(ctx, merchantID).Error(0)
}

func (m *mockRepository) FindAll(ctx context.Context, merchantID string) ([]model.Category, error) {
	args := m.Called(ctx, merchantID)
	rows, _ := args.Get(0).([]model.Category)
	return rows, args.Error(1)
}

func (m *mockRepository) FindSubtree(ctx context.Context, merchantID, id string) ([]model.Category, error) {
	args := m.Called(ctx, merchantID, id)
	rows, _ := args.Get(0).([]model.Category)
	return rows, args.Error(1)
}

func (m *mockRepository) FindDescendants(ctx context.Context, merchantID, id string) ([]model.Category, error) {
	args := m.Called(ctx, merchantID, id)
	rows, _ := args.Get(0).([]model.Category)
	return rows, args.Error(1)
}

func (m *mockRepository) FindAncestors(ctx context.Context, merchantID, id string) ([]model.Category, error) {
	args := m.Called(ctx, merchantID, id)
	rows, _ := args.Get(0).([]model.Category)
	return rows, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

// brokenCache fails every call, like Redis behind an open breaker.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Delete(context.Context, string) error { return errCacheDown }
func (brokenCache) Clear(context.Context, string) error  { return errCacheDown }

const merchant = "m1"

func ptr[T any](v T) *T { return &v }

// sample is a(b(d,e),c) as rows ordered by lft.
func sample() []model.Category {
	row := func(id string, parent *string, lft, rgt, depth int) model.Category {
		return model.Category{
			BaseModel:  model.BaseModel{ID: id},
			MerchantID: merchant,
			ParentID:   parent,
			Name:       id,
			Slug:       id,
			Lft:        lft,
			Rgt:        rgt,
			Depth:      depth,
			IsActive:   true,
		}
	}
	return []model.Category{
		row("a", nil, 1, 10, 0),
		row("b", ptr("a"), 2, 7, 1),
		row("d", ptr("b"), 3, 4, 2),
		row("e", ptr("b"), 5, 6, 2),
		row("c", ptr("a"), 8, 9, 1),
	}
}

type fixture struct {
	repo      *mockRepository
	publisher *mockPublisher
	cache     *cache.MemoryCache
	metrics   *metrics.Collector
	uc        category.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      new(mockRepository),
		publisher: new(mockPublisher),
		cache:     cache.NewMemoryCache(0),
		metrics:   metrics.NewCollector("test"),
	}
	f.uc = NewCategoryUseCase(f.repo, f.cache, f.publisher, f.metrics, logger.NewNop(), Config{})
	return f
}

func (f *fixture) expectEvent(eventType string) {
	f.publisher.On("Publish", mock.Anything, merchant, mock.MatchedBy(func(b []byte) bool {
		var e category.Event
		return json.Unmarshal(b, &e) == nil && e.EventType == eventType && e.MerchantID == merchant
	})).Return(nil).Once()
}

func TestCreateCategory(t *testing.T) {
	t.Run("derives slug and publishes", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Insert", mock.Anything, mock.MatchedBy(func(c *model.Category) bool {
			return c.Slug == "mens-shoes" && c.MerchantID == merchant && c.ID != "" && c.IsActive
		})).Return(nil).Once()
		f.expectEvent(category.EventCategoryCreated)

		cat, err := f.uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{
			MerchantID: merchant,
			Name:       "Men's Shoes",
		})
		require.NoError(t, err)
		assert.Equal(t, "mens-shoes", cat.Slug)
		assert.Nil(t, cat.Description)
		f.repo.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("CreateCategory", "ok")))
	})

	t.Run("invalid input never reaches storage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{MerchantID: merchant})
		assert.True(t, category.IsValidation(err))

		_, err = f.uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{MerchantID: merchant, Name: "???"})
		assert.True(t, category.IsValidation(err))

		f.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("repository error is returned and nothing is published", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Insert", mock.Anything, mock.Anything).Return(category.NotFound("Insert", "ghost")).Once()

		_, err := f.uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{
			MerchantID: merchant,
			ParentID:   ptr("ghost"),
			Name:       "Orphan",
		})
		assert.True(t, category.IsNotFound(err))
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("CreateCategory", "error")))
	})

	t.Run("publish failure does not fail the mutation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, merchant, mock.Anything).Return(errors.New("broker down")).Once()

		_, err := f.uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{MerchantID: merchant, Name: "Shoes"})
		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues(category.EventCategoryCreated, "error")))
	})
}

func TestGetFullTreeCaching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindAll", mock.Anything, merchant).Return(sample(), nil).Twice()

	tree, err := f.uc.GetFullTree(ctx, merchant)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Children, 2)
	assert.Len(t, tree[0].Children[0].Children, 2)

	// Second read is served from cache.
	cached, err := f.uc.GetFullTree(ctx, merchant)
	require.NoError(t, err)
	assert.Equal(t, tree, cached)
	f.repo.AssertNumberOfCalls(t, "FindAll", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheRequests.WithLabelValues("tree", "hit")))

	// A committed mutation evicts it.
	f.repo.On("Delete", mock.Anything, merchant, "c").Return(1, nil).Once()
	f.expectEvent(category.EventCategoryDeleted)
	require.NoError(t, f.uc.DeleteCategory(ctx, merchant, "c"))

	_, err = f.uc.GetFullTree(ctx, merchant)
	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "FindAll", 2)
}

func TestInvalidationIsPerMerchant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, category.TreeKey("other"), []byte("[]"), time.Hour))
	require.NoError(t, f.cache.Set(ctx, category.TreeKey(merchant), []byte("[]"), time.Hour))
	require.NoError(t, f.cache.Set(ctx, category.NodeKey(merchant, "a"), []byte("{}"), time.Hour))

	f.repo.On("Repair", mock.Anything, merchant).Return(nil).Once()
	f.expectEvent(category.EventCategoryTreeRebuilt)
	require.NoError(t, f.uc.RepairTree(ctx, merchant))

	_, ok, _ := f.cache.Get(ctx, category.TreeKey("other"))
	assert.True(t, ok)
	_, ok, _ = f.cache.Get(ctx, category.TreeKey(merchant))
	assert.False(t, ok)
	_, ok, _ = f.cache.Get(ctx, category.NodeKey(merchant, "a"))
	assert.False(t, ok)
}

func TestFailedMutationKeepsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, category.TreeKey(merchant), []byte("[]"), time.Hour))

	f.repo.On("PromoteToRoot", mock.Anything, merchant, "x").Return(nil, category.NotFound("PromoteToRoot", "x")).Once()
	_, err := f.uc.PromoteToRoot(ctx, merchant, "x")
	assert.True(t, category.IsNotFound(err))

	_, ok, _ := f.cache.Get(ctx, category.TreeKey(merchant))
	assert.True(t, ok)
}

func TestReadsSurviveCacheOutage(t *testing.T) {
	repo := new(mockRepository)
	m := metrics.NewCollector("test")
	uc := NewCategoryUseCase(repo, brokenCache{}, nil, m, logger.NewNop(), Config{})
	ctx := context.Background()

	repo.On("FindAll", mock.Anything, merchant).Return(sample(), nil)
	tree, err := uc.GetFullTree(ctx, merchant)
	require.NoError(t, err)
	assert.Len(t, tree, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("tree", "error")))

	// Mutations still commit when invalidation fails.
	repo.On("Delete", mock.Anything, merchant, "c").Return(1, nil).Once()
	assert.NoError(t, uc.DeleteCategory(ctx, merchant, "c"))
}

func TestGetCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := sample()

	f.repo.On("FindByID", mock.Anything, merchant, "b").Return(&rows[1], nil).Once()
	f.repo.On("FindByID", mock.Anything, merchant, "zz").Return(nil, nil).Once()

	cat, err := f.uc.GetCategory(ctx, merchant, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", cat.ID)

	_, err = f.uc.GetCategory(ctx, merchant, "zz")
	assert.True(t, category.IsNotFound(err))

	// Misses are not cached.
	_, ok, _ := f.cache.Get(ctx, category.NodeKey(merchant, "zz"))
	assert.False(t, ok)
}

func TestUpdateCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := sample()

	f.repo.On("FindByID", mock.Anything, merchant, "b").Return(&rows[1], nil).Once()
	f.repo.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Category) bool {
		return c.ID == "b" && c.Name == "Boots" && c.Slug == "winter-boots" && !c.IsActive && c.Lft == 2
	})).Return(nil).Once()
	f.expectEvent(category.EventCategoryUpdated)

	cat, err := f.uc.UpdateCategory(ctx, &dto.UpdateCategoryInput{
		ID:         "b",
		MerchantID: merchant,
		Name:       "Boots",
		Slug:       "Winter Boots",
		IsActive:   ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "winter-boots", cat.Slug)
	f.repo.AssertExpectations(t)

	f.repo.On("FindByID", mock.Anything, merchant, "zz").Return(nil, nil).Once()
	_, err = f.uc.UpdateCategory(ctx, &dto.UpdateCategoryInput{ID: "zz", MerchantID: merchant, Name: "x"})
	assert.True(t, category.IsNotFound(err))
}

func TestUpdateCategoryKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := sample()
	rows[2].IsActive = false

	f.repo.On("FindByID", mock.Anything, merchant, "d").Return(&rows[2], nil).Once()
	f.repo.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Category) bool {
		return c.ID == "d" && c.Name == "Sandals" && !c.IsActive
	})).Return(nil).Once()
	f.expectEvent(category.EventCategoryUpdated)

	cat, err := f.uc.UpdateCategory(ctx, &dto.UpdateCategoryInput{ID: "d", MerchantID: merchant, Name: "Sandals"})
	require.NoError(t, err)
	assert.False(t, cat.IsActive)

	f.repo.On("FindByID", mock.Anything, merchant, "d").Return(cat, nil).Once()
	f.repo.On("Update", mock.Anything, mock.MatchedBy(func(c *model.Category) bool {
		return c.ID == "d" && c.IsActive
	})).Return(nil).Once()
	f.expectEvent(category.EventCategoryUpdated)

	cat, err = f.uc.UpdateCategory(ctx, &dto.UpdateCategoryInput{ID: "d", MerchantID: merchant, Name: "Sandals", IsActive: ptr(true)})
	require.NoError(t, err)
	assert.True(t, cat.IsActive)
	f.repo.AssertExpectations(t)
}

func TestMoveCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := sample()

	f.repo.On("Move", mock.Anything, merchant, "c", ptr("b")).Return(&rows[4], nil).Once()
	f.expectEvent(category.EventCategoryMoved)
	_, err := f.uc.MoveCategory(ctx, &dto.MoveCategoryInput{ID: "c", MerchantID: merchant, ParentID: ptr("b")})
	require.NoError(t, err)

	_, err = f.uc.MoveCategory(ctx, &dto.MoveCategoryInput{MerchantID: merchant})
	assert.True(t, category.IsValidation(err))
	f.repo.AssertExpectations(t)
}

func TestRebuildFromAdjacency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.On("Rebuild", mock.Anything, merchant, mock.MatchedBy(func(forest []*nestedset.Node) bool {
		return len(forest) == 1 && forest[0].ID == "a" && len(forest[0].Children) == 2
	})).Return(nil).Once()
	f.expectEvent(category.EventCategoryTreeRebuilt)

	err := f.uc.RebuildFromAdjacency(ctx, &dto.RebuildInput{
		MerchantID: merchant,
		Forest:     category.TreeToAdjacency(category.BuildTree(sample())),
	})
	require.NoError(t, err)

	err = f.uc.RebuildFromAdjacency(ctx, &dto.RebuildInput{
		MerchantID: merchant,
		Forest:     []dto.ForestNode{{ID: "a", Children: []dto.ForestNode{{ID: ""}}}},
	})
	assert.True(t, category.IsValidation(err))
	f.repo.AssertExpectations(t)
}

func TestSubtreeQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := sample()

	f.repo.On("FindSubtree", mock.Anything, merchant, "b").Return(rows[1:4], nil).Once()
	sub, err := f.uc.GetSubtree(ctx, merchant, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", sub.ID)
	assert.Len(t, sub.Children, 2)

	f.repo.On("FindDescendants", mock.Anything, merchant, "a").Return(rows[1:], nil).Once()
	desc, err := f.uc.GetDescendants(ctx, merchant, "a")
	require.NoError(t, err)
	assert.Len(t, desc, 4)

	f.repo.On("FindAncestors", mock.Anything, merchant, "d").Return(rows[:2], nil).Once()
	anc, err := f.uc.GetAncestors(ctx, merchant, "d")
	require.NoError(t, err)
	assert.Equal(t, "a", anc[0].ID)

	f.repo.On("FindSubtree", mock.Anything, merchant, "zz").Return(nil, category.NotFound("FindSubtree", "zz")).Once()
	_, err = f.uc.GetSubtree(ctx, merchant, "zz")
	assert.True(t, category.IsNotFound(err))
}

func TestCheckIntegrity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.On("FindAll", mock.Anything, merchant).Return(sample(), nil).Once()
	report, err := f.uc.CheckIntegrity(ctx, merchant)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 5, report.Nodes)

	broken := sample()
	broken[4].Rgt = 11
	f.repo.On("FindAll", mock.Anything, "m2").Return(broken, nil).Once()
	report, err = f.uc.CheckIntegrity(ctx, "m2")
	require.NoError(t, err)
	assert.False(t, report.Healthy())
}
