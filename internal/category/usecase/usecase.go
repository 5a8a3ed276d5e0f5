package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/category/dto"
	"github.com/fekuna/omnipos-category-service/internal/category/nestedset"
	"github.com/fekuna/omnipos-category-service/internal/model"
	"github.com/fekuna/omnipos-category-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-category-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-category-service/internal/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Config struct {
	TreeTTL time.Duration
	NodeTTL time.Duration
}

type categoryUseCase struct {
	repo      category.Repository
	cache     cache.Cache
	publisher category.EventPublisher
	metrics   *metrics.Collector
	logger    logger.ZapLogger
	tracer    trace.Tracer
	validate  *validator.Validate
	cfg       Config
}

// NewCategoryUseCase wires the tree store. cache, publisher and metrics may
// be nil; reads then always hit the repository and no events are sent.
func NewCategoryUseCase(
	repo category.Repository,
	c cache.Cache,
	publisher category.EventPublisher,
	m *metrics.Collector,
	log logger.ZapLogger,
	cfg Config,
) category.UseCase {
	if cfg.TreeTTL <= 0 {
		cfg.TreeTTL = 6 * time.Hour
	}
	if cfg.NodeTTL <= 0 {
		cfg.NodeTTL = 30 * time.Minute
	}
	return &categoryUseCase{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		metrics:   m,
		logger:    log,
		tracer:    otel.Tracer("github.com/fekuna/omnipos-category-service/internal/category/usecase"),
		validate:  validator.New(),
		cfg:       cfg,
	}
}

// start opens a span and returns the function that closes it and records
// the outcome in metrics.
func (uc *categoryUseCase) start(ctx context.Context, op, merchantID, id string) (context.Context, func(*error)) {
	began := time.Now()
	attrs := []attribute.KeyValue{attribute.String("merchant_id", merchantID)}
	if id != "" {
		attrs = append(attrs, attribute.String("category_id", id))
	}
	ctx, span := uc.tracer.Start(ctx, "category."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		err := *errp
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		uc.metrics.ObserveOperation(op, began, err)
	}
}

func (uc *categoryUseCase) normalizeSlug(op, raw, name string) (string, error) {
	source := raw
	if source == "" {
		source = name
	}
	s := slug.Make(source)
	if s == "" {
		return "", category.Validation(op, fmt.Errorf("cannot derive a slug from %q", source))
	}
	return s, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (cat *model.Category, err error) {
	const op = "CreateCategory"
	ctx, end := uc.start(ctx, op, input.MerchantID, "")
	defer end(&err)

	if err := uc.validate.StructCtx(ctx, input); err != nil {
		return nil, category.Validation(op, err)
	}
	s, err := uc.normalizeSlug(op, input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cat = &model.Category{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		MerchantID:  input.MerchantID,
		ParentID:    input.ParentID,
		Name:        input.Name,
		Slug:        s,
		Description: optional(input.Description),
		ImageURL:    optional(input.ImageURL),
		IsActive:    true,
	}

	if err := uc.repo.Insert(ctx, cat); err != nil {
		uc.logger.Error("failed to insert category", zap.String("merchant_id", input.MerchantID), zap.Error(err))
		return nil, err
	}

	uc.afterCommit(ctx, category.EventCategoryCreated, cat.MerchantID, cat.ID)
	return cat, nil
}

func (uc *categoryUseCase) GetCategory(ctx context.Context, merchantID, id string) (cat *model.Category, err error) {
	const op = "GetCategory"
	ctx, end := uc.start(ctx, op, merchantID, id)
	defer end(&err)

	return readThrough(ctx, uc, "node", category.NodeKey(merchantID, id), uc.cfg.NodeTTL, func() (*model.Category, error) {
		c, err := uc.repo.FindByID(ctx, merchantID, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, category.NotFound(op, id)
		}
		return c, nil
	})
}

func (uc *categoryUseCase) UpdateCategory(ctx context.Context, input *dto.UpdateCategoryInput) (cat *model.Category, err error) {
	const op = "UpdateCategory"
	ctx, end := uc.start(ctx, op, input.MerchantID, input.ID)
	defer end(&err)

	if err := uc.validate.StructCtx(ctx, input); err != nil {
		return nil, category.Validation(op, err)
	}
	s, err := uc.normalizeSlug(op, input.Slug, input.Name)
	if err != nil {
		return nil, err
	}

	cat, err = uc.repo.FindByID(ctx, input.MerchantID, input.ID)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, category.NotFound(op, input.ID)
	}

	cat.Name = input.Name
	cat.Slug = s
	cat.Description = optional(input.Description)
	cat.ImageURL = optional(input.ImageURL)
	if input.IsActive != nil {
		cat.IsActive = *input.IsActive
	}
	cat.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, cat); err != nil {
		uc.logger.Error("failed to update category", zap.String("category_id", input.ID), zap.Error(err))
		return nil, err
	}

	// Tree payloads embed names, so a rename evicts them too.
	uc.afterCommit(ctx, category.EventCategoryUpdated, cat.MerchantID, cat.ID)
	return cat, nil
}

func (uc *categoryUseCase) DeleteCategory(ctx context.Context, merchantID, id string) (err error) {
	const op = "DeleteCategory"
	ctx, end := uc.start(ctx, op, merchantID, id)
	defer end(&err)

	removed, err := uc.repo.Delete(ctx, merchantID, id)
	if err != nil {
		uc.logger.Error("failed to delete category", zap.String("category_id", id), zap.Error(err))
		return err
	}

	uc.logger.Info("category subtree deleted", zap.String("category_id", id), zap.Int("removed", removed))
	uc.afterCommit(ctx, category.EventCategoryDeleted, merchantID, id)
	return nil
}

func (uc *categoryUseCase) PromoteToRoot(ctx context.Context, merchantID, id string) (cat *model.Category, err error) {
	const op = "PromoteToRoot"
	ctx, end := uc.start(ctx, op, merchantID, id)
	defer end(&err)

	cat, err = uc.repo.PromoteToRoot(ctx, merchantID, id)
	if err != nil {
		uc.logger.Error("failed to promote category", zap.String("category_id", id), zap.Error(err))
		return nil, err
	}

	uc.afterCommit(ctx, category.EventCategoryMoved, merchantID, id)
	return cat, nil
}

func (uc *categoryUseCase) MoveCategory(ctx context.Context, input *dto.MoveCategoryInput) (cat *model.Category, err error) {
	const op = "MoveCategory"
	ctx, end := uc.start(ctx, op, input.MerchantID, input.ID)
	defer end(&err)

	if err := uc.validate.StructCtx(ctx, input); err != nil {
		return nil, category.Validation(op, err)
	}

	cat, err = uc.repo.Move(ctx, input.MerchantID, input.ID, input.ParentID)
	if err != nil {
		uc.logger.Error("failed to move category", zap.String("category_id", input.ID), zap.Error(err))
		return nil, err
	}

	uc.afterCommit(ctx, category.EventCategoryMoved, input.MerchantID, input.ID)
	return cat, nil
}

func (uc *categoryUseCase) RebuildFromAdjacency(ctx context.Context, input *dto.RebuildInput) (err error) {
	const op = "RebuildFromAdjacency"
	ctx, end := uc.start(ctx, op, input.MerchantID, "")
	defer end(&err)

	if err := uc.validate.StructCtx(ctx, input); err != nil {
		return category.Validation(op, err)
	}

	if err := uc.repo.Rebuild(ctx, input.MerchantID, category.ForestFromDTO(input.Forest)); err != nil {
		uc.logger.Error("failed to rebuild category tree", zap.String("merchant_id", input.MerchantID), zap.Error(err))
		return err
	}

	uc.afterCommit(ctx, category.EventCategoryTreeRebuilt, input.MerchantID, "")
	return nil
}

func (uc *categoryUseCase) RepairTree(ctx context.Context, merchantID string) (err error) {
	const op = "RepairTree"
	ctx, end := uc.start(ctx, op, merchantID, "")
	defer end(&err)

	if err := uc.repo.Repair(ctx, merchantID); err != nil {
		uc.logger.Error("failed to repair category tree", zap.String("merchant_id", merchantID), zap.Error(err))
		return err
	}

	uc.afterCommit(ctx, category.EventCategoryTreeRebuilt, merchantID, "")
	return nil
}

func (uc *categoryUseCase) GetFullTree(ctx context.Context, merchantID string) (tree []model.Category, err error) {
	const op = "GetFullTree"
	ctx, end := uc.start(ctx, op, merchantID, "")
	defer end(&err)

	return readThrough(ctx, uc, "tree", category.TreeKey(merchantID), uc.cfg.TreeTTL, func() ([]model.Category, error) {
		rows, err := uc.repo.FindAll(ctx, merchantID)
		if err != nil {
			return nil, err
		}
		return category.BuildTree(rows), nil
	})
}

func (uc *categoryUseCase) GetSubtree(ctx context.Context, merchantID, id string) (root *model.Category, err error) {
	const op = "GetSubtree"
	ctx, end := uc.start(ctx, op, merchantID, id)
	defer end(&err)

	return readThrough(ctx, uc, "subtree", category.SubtreeKey(merchantID, id), uc.cfg.NodeTTL, func() (*model.Category, error) {
		rows, err := uc.repo.FindSubtree(ctx, merchantID, id)
		if err != nil {
			return nil, err
		}
		tree := category.BuildTree(rows)
		if len(tree) != 1 {
			return nil, fmt.Errorf("subtree of %s has %d roots", id, len(tree))
		}
		return &tree[0], nil
	})
}

func (uc *categoryUseCase) GetDescendants(ctx context.Context, merchantID, id string) (list []model.Category, err error) {
	const op = "GetDescendants"
	ctx, end := uc.start(ctx, op, merchantID, id)
	defer end(&err)

	return readThrough(ctx, uc, "descendants", category.DescendantsKey(merchantID, id), uc.cfg.NodeTTL, func() ([]model.Category, error) {
		return uc.repo.FindDescendants(ctx, merchantID, id)
	})
}

func (uc *categoryUseCase) GetAncestors(ctx context.Context, merchantID, id string) (list []model.Category, err error) {
	const op = "GetAncestors"
	ctx, end := uc.start(ctx, op, merchantID, id)
	defer end(&err)

	return readThrough(ctx, uc, "ancestors", category.AncestorsKey(merchantID, id), uc.cfg.NodeTTL, func() ([]model.Category, error) {
		return uc.repo.FindAncestors(ctx, merchantID, id)
	})
}

// CheckIntegrity always reads storage; a cached tree could hide drift.
func (uc *categoryUseCase) CheckIntegrity(ctx context.Context, merchantID string) (report *dto.IntegrityReport, err error) {
	const op = "CheckIntegrity"
	ctx, end := uc.start(ctx, op, merchantID, "")
	defer end(&err)

	rows, err := uc.repo.FindAll(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	report = &dto.IntegrityReport{MerchantID: merchantID, Nodes: len(rows), Violations: []dto.Violation{}}
	for _, v := range nestedset.Verify(category.Positions(rows)) {
		report.Violations = append(report.Violations, dto.Violation{ID: v.ID, Reason: v.Reason})
	}
	if !report.Healthy() {
		uc.logger.Warn("category tree integrity violations",
			zap.String("merchant_id", merchantID),
			zap.Int("violations", len(report.Violations)),
		)
	}
	return report, nil
}

// afterCommit runs only once a mutation has committed: it evicts every
// cached read of the merchant's tree and announces the change. Neither step
// can fail the mutation.
func (uc *categoryUseCase) afterCommit(ctx context.Context, eventType, merchantID, categoryID string) {
	uc.invalidate(ctx, merchantID)
	uc.publish(ctx, eventType, merchantID, categoryID)
}

func (uc *categoryUseCase) invalidate(ctx context.Context, merchantID string) {
	if uc.cache == nil {
		return
	}
	for _, pattern := range category.InvalidationPatterns(merchantID) {
		if err := uc.cache.Clear(ctx, pattern); err != nil {
			uc.logger.Warn("failed to invalidate category cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (uc *categoryUseCase) publish(ctx context.Context, eventType, merchantID, categoryID string) {
	if uc.publisher == nil {
		return
	}
	data, err := json.Marshal(category.Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		MerchantID: merchantID,
		CategoryID: categoryID,
		Timestamp:  time.Now().UTC(),
	})
	if err == nil {
		err = uc.publisher.Publish(ctx, merchantID, data)
	}
	uc.metrics.EventPublished(eventType, err)
	if err != nil {
		uc.logger.Error("failed to publish category event",
			zap.String("event_type", eventType),
			zap.String("merchant_id", merchantID),
			zap.Error(err),
		)
	}
}

// readThrough serves key from cache or loads and stores it. Cache failures
// are logged and treated as misses.
func readThrough[T any](ctx context.Context, uc *categoryUseCase, kind, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if uc.cache != nil {
		data, ok, err := uc.cache.Get(ctx, key)
		switch {
		case err != nil:
			uc.metrics.CacheOutcome(kind, "error")
			uc.logger.Warn("category cache read failed, falling back to storage", zap.String("key", key), zap.Error(err))
		case ok:
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				uc.metrics.CacheOutcome(kind, "hit")
				return v, nil
			}
			uc.metrics.CacheOutcome(kind, "error")
		default:
			uc.metrics.CacheOutcome(kind, "miss")
		}
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(v); err == nil {
			if err := uc.cache.Set(ctx, key, data, ttl); err != nil {
				uc.logger.Warn("failed to cache category read", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return v, nil
}
