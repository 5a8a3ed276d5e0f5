package dto

// ForestNode describes the hierarchy as adjacency. Intervals are not part of
// it; they are recomputed from the nesting.
type ForestNode struct {
	ID       string       `json:"id" validate:"required"`
	ParentID *string      `json:"parent_id,omitempty"`
	Children []ForestNode `json:"children,omitempty" validate:"dive"`
}

type IntegrityReport struct {
	MerchantID string      `json:"merchant_id"`
	Nodes      int         `json:"nodes"`
	Violations []Violation `json:"violations"`
}

type Violation struct {
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (r *IntegrityReport) Healthy() bool {
	return len(r.Violations) == 0
}
