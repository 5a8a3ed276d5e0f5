package nestedset

import (
	"fmt"
	"sort"
)

type Violation struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.ID + ": " + v.Reason
}

// Verify checks a whole numbering domain and reports every broken invariant.
// An empty result means the encoding is consistent: intervals are well
// formed and properly nested, widths match subtree sizes, depth and
// parent_id agree with containment, and labels are exactly 1..2n.
func Verify(nodes []Position) []Violation {
	sorted := append([]Position(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lft < sorted[j].Lft })

	var out []Violation
	report := func(id, format string, args ...any) {
		out = append(out, Violation{ID: id, Reason: fmt.Sprintf(format, args...)})
	}

	labels := make(map[int]string, 2*len(sorted))
	for _, n := range sorted {
		if n.Lft >= n.Rgt {
			report(n.ID, "lft %d is not below rgt %d", n.Lft, n.Rgt)
		}
		for _, l := range []int{n.Lft, n.Rgt} {
			if other, dup := labels[l]; dup {
				report(n.ID, "label %d already used by %s", l, other)
			}
			labels[l] = n.ID
		}
	}
	for l := 1; l <= 2*len(sorted); l++ {
		if _, ok := labels[l]; !ok {
			out = append(out, Violation{Reason: fmt.Sprintf("label %d is unused", l)})
		}
	}
	if len(out) > 0 {
		// Containment checks are meaningless on top of broken labels.
		return out
	}

	var stack []Position
	for i, n := range sorted {
		for len(stack) > 0 && stack[len(stack)-1].Rgt < n.Lft {
			stack = stack[:len(stack)-1]
		}

		var parent *Position
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if n.Rgt > top.Rgt {
				report(n.ID, "interval (%d, %d) partially overlaps %s (%d, %d)", n.Lft, n.Rgt, top.ID, top.Lft, top.Rgt)
			}
			parent = &top
		}

		switch {
		case parent == nil && n.ParentID != nil:
			report(n.ID, "is a root by interval but has parent %s", *n.ParentID)
		case parent != nil && n.ParentID == nil:
			report(n.ID, "is inside %s but has no parent", parent.ID)
		case parent != nil && *n.ParentID != parent.ID:
			report(n.ID, "is inside %s but has parent %s", parent.ID, *n.ParentID)
		}
		if n.Depth != len(stack) {
			report(n.ID, "depth %d, expected %d", n.Depth, len(stack))
		}

		end := sort.Search(len(sorted), func(j int) bool { return sorted[j].Lft > n.Rgt })
		if size := end - i; n.Width() != 2*size {
			report(n.ID, "width %d does not match subtree size %d", n.Width(), size)
		}

		stack = append(stack, n)
	}
	return out
}
