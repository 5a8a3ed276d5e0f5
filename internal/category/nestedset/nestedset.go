// Package nestedset holds the interval arithmetic behind the category tree:
// preorder numbering of a forest, relabelling plans for subtree moves and an
// invariant checker. Nothing here touches storage; the repository turns the
// results into SQL.
package nestedset

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed       = errors.New("nestedset: malformed forest")
	ErrIntoOwnSubtree  = errors.New("nestedset: cannot move a node into its own subtree")
	ErrInvalidInterval = errors.New("nestedset: invalid interval")
)

// Node is one entry of a forest given as adjacency. ParentID is optional on
// input; when set it must name the enclosing node.
type Node struct {
	ID       string
	ParentID *string
	Children []*Node
}

// Position is the computed placement of a node.
type Position struct {
	ID       string
	ParentID *string
	Lft      int
	Rgt      int
	Depth    int
}

func (p Position) Width() int {
	return p.Rgt - p.Lft + 1
}

// Flat is a node known only by its parent pointer.
type Flat struct {
	ID       string
	ParentID *string
}

type frame struct {
	siblings []*Node
	next     int
	parentID *string
	depth    int
	open     int // index in the output of the node owning this sibling list, -1 for the top level
}

// Number assigns lft, rgt and depth to every node of forest in preorder,
// starting at 1. Roots follow each other in one numbering domain: the next
// sibling starts right after the previous sibling's rgt. Positions are
// returned in preorder.
//
// The walk keeps its own stack so arbitrarily deep trees cannot overflow the
// goroutine stack.
func Number(forest []*Node) ([]Position, error) {
	out := make([]Position, 0, len(forest))
	seen := make(map[string]struct{}, len(forest))
	cursor := 1

	stack := []frame{{siblings: forest, open: -1}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.siblings) {
			if top.open >= 0 {
				out[top.open].Rgt = cursor
				cursor++
			}
			stack = stack[:len(stack)-1]
			continue
		}

		n := top.siblings[top.next]
		top.next++

		if n == nil || n.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrMalformed)
		}
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("%w: node %s appears more than once", ErrMalformed, n.ID)
		}
		seen[n.ID] = struct{}{}

		switch {
		case top.parentID == nil && n.ParentID != nil:
			return nil, fmt.Errorf("%w: top-level node %s names parent %s", ErrMalformed, n.ID, *n.ParentID)
		case top.parentID != nil && n.ParentID != nil && *n.ParentID != *top.parentID:
			return nil, fmt.Errorf("%w: node %s is listed under %s but names parent %s", ErrMalformed, n.ID, *top.parentID, *n.ParentID)
		}

		out = append(out, Position{
			ID:       n.ID,
			ParentID: top.parentID,
			Lft:      cursor,
			Depth:    top.depth,
		})
		cursor++

		id := n.ID
		stack = append(stack, frame{
			siblings: n.Children,
			parentID: &id,
			depth:    top.depth + 1,
			open:     len(out) - 1,
		})
	}
	return out, nil
}

// FromParents builds a forest from parent pointers. Sibling order follows
// the order of nodes. Dangling parents and cycles are rejected.
func FromParents(nodes []Flat) ([]*Node, error) {
	byID := make(map[string]*Node, len(nodes))
	for _, f := range nodes {
		if f.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrMalformed)
		}
		if _, dup := byID[f.ID]; dup {
			return nil, fmt.Errorf("%w: node %s appears more than once", ErrMalformed, f.ID)
		}
		byID[f.ID] = &Node{ID: f.ID, ParentID: f.ParentID}
	}

	var roots []*Node
	for _, f := range nodes {
		n := byID[f.ID]
		if f.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[*f.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: node %s references missing parent %s", ErrMalformed, f.ID, *f.ParentID)
		}
		parent.Children = append(parent.Children, n)
	}

	// Anything not reachable from a root sits on a cycle.
	reached := 0
	stack := append([]*Node(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		stack = append(stack, n.Children...)
	}
	if reached != len(nodes) {
		return nil, fmt.Errorf("%w: %d nodes are part of a parent cycle", ErrMalformed, len(nodes)-reached)
	}
	return roots, nil
}

// Count returns the number of nodes in forest.
func Count(forest []*Node) int {
	n := 0
	stack := append([]*Node(nil), forest...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top == nil {
			continue
		}
		n++
		stack = append(stack, top.Children...)
	}
	return n
}
