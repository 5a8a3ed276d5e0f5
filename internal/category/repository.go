package category

import (
	"context"

	"github.com/fekuna/omnipos-category-service/internal/category/nestedset"
	"github.com/fekuna/omnipos-category-service/internal/model"
)

// Repository stores one nested-set forest per merchant. Structural methods
// run in a single transaction each and leave the tree untouched on error.
type Repository interface {
	// Insert places c as the last child of c.ParentID, or as the last root
	// when ParentID is nil, and fills in Lft, Rgt and Depth.
	Insert(ctx context.Context, c *model.Category) error
	FindByID(ctx context.Context, merchantID, id string) (*model.Category, error)
	// Update writes descriptive fields only.
	Update(ctx context.Context, c *model.Category) error
	// Delete removes the node and its whole subtree and returns how many rows went.
	Delete(ctx context.Context, merchantID, id string) (int, error)
	PromoteToRoot(ctx context.Context, merchantID, id string) (*model.Category, error)
	Move(ctx context.Context, merchantID, id string, parentID *string) (*model.Category, error)
	Rebuild(ctx context.Context, merchantID string, forest []*nestedset.Node) error
	// Repair renumbers the forest from the stored parent_id pointers.
	Repair(ctx context.Context, merchantID string) error

	FindAll(ctx context.Context, merchantID string) ([]model.Category, error)
	FindSubtree(ctx context.Context, merchantID, id string) ([]model.Category, error)
	FindDescendants(ctx context.Context, merchantID, id string) ([]model.Category, error)
	FindAncestors(ctx context.Context, merchantID, id string) ([]model.Category, error)
}
