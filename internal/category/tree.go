package category

import (
	"github.com/fekuna/omnipos-category-service/internal/category/dto"
	"github.com/fekuna/omnipos-category-service/internal/category/nestedset"
	"github.com/fekuna/omnipos-category-service/internal/model"
)

// BuildTree nests rows by parent_id. Rows must be ordered by lft so children
// keep preorder. A row whose parent is not among rows becomes a top-level
// node, which lets the same function shape a subtree.
func BuildTree(rows []model.Category) []model.Category {
	present := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		present[r.ID] = struct{}{}
	}

	var roots []int
	childrenOf := make(map[string][]int)
	for i, r := range rows {
		if r.ParentID != nil {
			if _, ok := present[*r.ParentID]; ok {
				childrenOf[*r.ParentID] = append(childrenOf[*r.ParentID], i)
				continue
			}
		}
		roots = append(roots, i)
	}

	var build func(i int) model.Category
	build = func(i int) model.Category {
		c := rows[i]
		c.Children = nil
		for _, j := range childrenOf[c.ID] {
			c.Children = append(c.Children, build(j))
		}
		return c
	}

	tree := make([]model.Category, 0, len(roots))
	for _, i := range roots {
		tree = append(tree, build(i))
	}
	return tree
}

// TreeToAdjacency turns a nested tree back into the input shape of a rebuild.
func TreeToAdjacency(tree []model.Category) []dto.ForestNode {
	out := make([]dto.ForestNode, 0, len(tree))
	for _, c := range tree {
		out = append(out, dto.ForestNode{
			ID:       c.ID,
			ParentID: c.ParentID,
			Children: TreeToAdjacency(c.Children),
		})
	}
	return out
}

// ForestFromDTO converts the transport shape into the numbering input.
func ForestFromDTO(forest []dto.ForestNode) []*nestedset.Node {
	out := make([]*nestedset.Node, 0, len(forest))
	for _, f := range forest {
		out = append(out, &nestedset.Node{
			ID:       f.ID,
			ParentID: f.ParentID,
			Children: ForestFromDTO(f.Children),
		})
	}
	return out
}

// Positions projects rows onto the shape nestedset.Verify checks.
func Positions(rows []model.Category) []nestedset.Position {
	out := make([]nestedset.Position, len(rows))
	for i, r := range rows {
		out[i] = nestedset.Position{ID: r.ID, ParentID: r.ParentID, Lft: r.Lft, Rgt: r.Rgt, Depth: r.Depth}
	}
	return out
}
