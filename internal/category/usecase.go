package category

import (
	"context"

	"github.com/fekuna/omnipos-category-service/internal/category/dto"
	"github.com/fekuna/omnipos-category-service/internal/model"
)

type UseCase interface {
	CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error)
	GetCategory(ctx context.Context, merchantID, id string) (*model.Category, error)
	UpdateCategory(ctx context.Context, input *dto.UpdateCategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, merchantID, id string) error
	PromoteToRoot(ctx context.Context, merchantID, id string) (*model.Category, error)
	MoveCategory(ctx context.Context, input *dto.MoveCategoryInput) (*model.Category, error)
	RebuildFromAdjacency(ctx context.Context, input *dto.RebuildInput) error
	RepairTree(ctx context.Context, merchantID string) error

	GetFullTree(ctx context.Context, merchantID string) ([]model.Category, error)
	GetSubtree(ctx context.Context, merchantID, id string) (*model.Category, error)
	GetDescendants(ctx context.Context, merchantID, id string) ([]model.Category, error)
	GetAncestors(ctx context.Context, merchantID, id string) ([]model.Category, error)
	CheckIntegrity(ctx context.Context, merchantID string) (*dto.IntegrityReport, error)
}
