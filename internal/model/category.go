package model

type Category struct {
	BaseModel
	MerchantID  string     `db:"merchant_id" json:"merchant_id"`
	ParentID    *string    `db:"parent_id" json:"parent_id"` // Nullable, null for roots
	Name        string     `db:"name" json:"name"`
	Slug        string     `db:"slug" json:"slug"`
	Description *string    `db:"description" json:"description"`
	ImageURL    *string    `db:"image_url" json:"image_url"`
	Lft         int        `db:"lft" json:"lft"`
	Rgt         int        `db:"rgt" json:"rgt"`
	Depth       int        `db:"depth" json:"depth"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	Children    []Category `db:"-" json:"children,omitempty"` // For tree structure, not in DB
}

// Width is the size of the node's interval, twice the number of nodes in its subtree.
func (c *Category) Width() int {
	return c.Rgt - c.Lft + 1
}

func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

func (c *Category) IsLeaf() bool {
	return c.Rgt == c.Lft+1
}

// Contains reports whether o lies strictly inside c's interval.
func (c *Category) Contains(o *Category) bool {
	return c.Lft < o.Lft && o.Rgt < c.Rgt
}
