package dto

type CreateCategoryInput struct {
	MerchantID  string  `validate:"required"`
	ParentID    *string `validate:"omitempty,min=1"`
	Name        string  `validate:"required,max=255"`
	Slug        string  `validate:"omitempty,max=255"` // Derived from Name when empty
	Description string  `validate:"max=2000"`
	ImageURL    string  `validate:"omitempty,url"`
}

// UpdateCategoryInput changes descriptive fields only. Placement in the tree
// is changed through MoveCategoryInput or promotion.
type UpdateCategoryInput struct {
	ID          string `validate:"required"`
	MerchantID  string `validate:"required"`
	Name        string `validate:"required,max=255"`
	Slug        string `validate:"omitempty,max=255"`
	Description string `validate:"max=2000"`
	ImageURL    string `validate:"omitempty,url"`
	IsActive    *bool // nil keeps the current status
}

type MoveCategoryInput struct {
	ID         string  `validate:"required"`
	MerchantID string  `validate:"required"`
	ParentID   *string `validate:"omitempty,min=1"` // nil moves the subtree to the last root position
}

type RebuildInput struct {
	MerchantID string       `validate:"required"`
	Forest     []ForestNode `validate:"dive"`
}
