package nestedset

import "fmt"

// Plan relabels a whole numbering domain in one pass when a subtree
// [Lft, Rgt] changes place. Labels inside the subtree move by SubtreeShift,
// labels in [Lo, Hi] move by OtherShift, everything else keeps its label.
// Depths inside the subtree move by DepthShift.
type Plan struct {
	Lft          int
	Rgt          int
	SubtreeShift int
	Lo           int
	Hi           int
	OtherShift   int
	DepthShift   int
}

// Apply maps an old label to its new value.
func (p Plan) Apply(label int) int {
	switch {
	case label >= p.Lft && label <= p.Rgt:
		return label + p.SubtreeShift
	case label >= p.Lo && label <= p.Hi:
		return label + p.OtherShift
	default:
		return label
	}
}

// Noop reports whether applying the plan changes nothing.
func (p Plan) Noop() bool {
	return p.SubtreeShift == 0 && p.DepthShift == 0
}

func checkInterval(n Position) error {
	if n.Lft < 1 || n.Lft >= n.Rgt || n.Width()%2 != 0 {
		return fmt.Errorf("%w: node %s has (%d, %d)", ErrInvalidInterval, n.ID, n.Lft, n.Rgt)
	}
	return nil
}

// PlanPromote moves the subtree of n to the front of the domain so n becomes
// the first root with lft = 1.
func PlanPromote(n Position) (Plan, error) {
	if err := checkInterval(n); err != nil {
		return Plan{}, err
	}
	return Plan{
		Lft:          n.Lft,
		Rgt:          n.Rgt,
		SubtreeShift: 1 - n.Lft,
		Lo:           1,
		Hi:           n.Lft - 1,
		OtherShift:   n.Width(),
		DepthShift:   -n.Depth,
	}, nil
}

// PlanMove makes the subtree of n the last child of parent. With a nil
// parent the subtree becomes the last root; maxRgt is then the largest rgt
// of the domain.
func PlanMove(n Position, parent *Position, maxRgt int) (Plan, error) {
	if err := checkInterval(n); err != nil {
		return Plan{}, err
	}

	// The new parent's rgt is the insertion point. A missing parent behaves
	// like a virtual node enclosing the whole domain.
	at, depth := maxRgt+1, 0
	if parent != nil {
		if err := checkInterval(*parent); err != nil {
			return Plan{}, err
		}
		if parent.Lft >= n.Lft && parent.Lft <= n.Rgt {
			return Plan{}, ErrIntoOwnSubtree
		}
		at, depth = parent.Rgt, parent.Depth+1
	} else if maxRgt < n.Rgt {
		return Plan{}, fmt.Errorf("%w: domain end %d before node end %d", ErrInvalidInterval, maxRgt, n.Rgt)
	}

	w := n.Width()
	p := Plan{Lft: n.Lft, Rgt: n.Rgt, DepthShift: depth - n.Depth}
	if at > n.Rgt {
		p.SubtreeShift = at - n.Rgt - 1
		p.Lo, p.Hi = n.Rgt+1, at-1
		p.OtherShift = -w
	} else {
		p.SubtreeShift = at - n.Lft
		p.Lo, p.Hi = at, n.Lft-1
		p.OtherShift = w
	}
	return p, nil
}
