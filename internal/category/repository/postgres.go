package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/category/nestedset"
	"github.com/fekuna/omnipos-category-service/internal/model"
	"github.com/jmoiron/sqlx"
)

var _ category.Repository = (*PGRepository)(nil)

type PGRepository struct {
	DB    *sqlx.DB
	locks treeLocks
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func findByID(ctx context.Context, q queryer, merchantID, id string) (*model.Category, error) {
	var c model.Category
	query := q.Rebind(`SELECT * FROM categories WHERE merchant_id = ? AND id = ? LIMIT 1`)
	err := q.GetContext(ctx, &c, query, merchantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// mustFind is findByID for the write path, where a missing row is an error.
func mustFind(ctx context.Context, q queryer, op, merchantID, id string) (*model.Category, error) {
	c, err := findByID(ctx, q, merchantID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, category.NotFound(op, id)
	}
	return c, nil
}

func slugTaken(ctx context.Context, q queryer, merchantID, slug, exceptID string) (bool, error) {
	var count int
	query := q.Rebind(`SELECT COUNT(*) FROM categories WHERE merchant_id = ? AND slug = ? AND id <> ?`)
	if err := q.GetContext(ctx, &count, query, merchantID, slug, exceptID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func position(c *model.Category) nestedset.Position {
	return nestedset.Position{ID: c.ID, ParentID: c.ParentID, Lft: c.Lft, Rgt: c.Rgt, Depth: c.Depth}
}

func (r *PGRepository) Insert(ctx context.Context, c *model.Category) error {
	const op = "category.Insert"
	return r.inTreeTx(ctx, op, c.MerchantID, func(tx *sqlx.Tx) error {
		taken, err := slugTaken(ctx, tx, c.MerchantID, c.Slug, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return category.Conflict(op, c.ID, fmt.Errorf("slug %q already exists", c.Slug))
		}

		if c.ParentID != nil {
			parent, err := mustFind(ctx, tx, op, c.MerchantID, *c.ParentID)
			if err != nil {
				return err
			}

			// Widen the domain: everything ending at or after the parent's
			// rgt grows by 2, everything starting after it moves right by 2.
			// One statement so no intermediate state is ever stored.
			at := parent.Rgt
			widen := tx.Rebind(`
                UPDATE categories
                SET lft = CASE WHEN lft > ? THEN lft + 2 ELSE lft END,
                    rgt = rgt + 2
                WHERE merchant_id = ? AND rgt >= ?
            `)
			if _, err := tx.ExecContext(ctx, widen, at, c.MerchantID, at); err != nil {
				return err
			}

			c.Lft, c.Rgt, c.Depth = at, at+1, parent.Depth+1
		} else {
			// New roots are appended after the last node of the domain.
			var maxRgt int
			query := tx.Rebind(`SELECT COALESCE(MAX(rgt), 0) FROM categories WHERE merchant_id = ?`)
			if err := tx.GetContext(ctx, &maxRgt, query, c.MerchantID); err != nil {
				return err
			}
			c.Lft, c.Rgt, c.Depth = maxRgt+1, maxRgt+2, 0
		}

		query := `
            INSERT INTO categories (id, merchant_id, parent_id, name, slug, description, image_url, lft, rgt, depth, is_active, created_at, updated_at)
            VALUES (:id, :merchant_id, :parent_id, :name, :slug, :description, :image_url, :lft, :rgt, :depth, :is_active, :created_at, :updated_at)
        `
		_, err = tx.NamedExecContext(ctx, query, c)
		return err
	})
}

func (r *PGRepository) FindByID(ctx context.Context, merchantID, id string) (*model.Category, error) {
	return findByID(ctx, r.DB, merchantID, id)
}

func (r *PGRepository) Update(ctx context.Context, c *model.Category) error {
	const op = "category.Update"
	return r.inTx(ctx, op, func(tx *sqlx.Tx) error {
		taken, err := slugTaken(ctx, tx, c.MerchantID, c.Slug, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return category.Conflict(op, c.ID, fmt.Errorf("slug %q already exists", c.Slug))
		}

		query := `
            UPDATE categories
            SET name = :name,
                slug = :slug,
                description = :description,
                image_url = :image_url,
                is_active = :is_active,
                updated_at = :updated_at
            WHERE id = :id AND merchant_id = :merchant_id
        `
		res, err := tx.NamedExecContext(ctx, query, c)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return category.NotFound(op, c.ID)
		}
		return nil
	})
}

func (r *PGRepository) Delete(ctx context.Context, merchantID, id string) (int, error) {
	const op = "category.Delete"
	var removed int
	err := r.inTreeTx(ctx, op, merchantID, func(tx *sqlx.Tx) error {
		node, err := mustFind(ctx, tx, op, merchantID, id)
		if err != nil {
			return err
		}

		del := tx.Rebind(`DELETE FROM categories WHERE merchant_id = ? AND lft BETWEEN ? AND ?`)
		res, err := tx.ExecContext(ctx, del, merchantID, node.Lft, node.Rgt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(n)

		// Close the gap left by the removed span.
		width := node.Width()
		closeGap := tx.Rebind(`
            UPDATE categories
            SET lft = CASE WHEN lft > ? THEN lft - ? ELSE lft END,
                rgt = rgt - ?
            WHERE merchant_id = ? AND rgt > ?
        `)
		_, err = tx.ExecContext(ctx, closeGap, node.Rgt, width, width, merchantID, node.Rgt)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// applyPlan relabels the domain in one UPDATE. SET expressions all see the
// row's old values, so depth is decided by the old lft.
func applyPlan(ctx context.Context, tx *sqlx.Tx, merchantID string, p nestedset.Plan) error {
	query := tx.Rebind(`
        UPDATE categories
        SET depth = CASE WHEN lft BETWEEN ? AND ? THEN depth + ? ELSE depth END,
            lft = CASE WHEN lft BETWEEN ? AND ? THEN lft + ?
                       WHEN lft BETWEEN ? AND ? THEN lft + ?
                       ELSE lft END,
            rgt = CASE WHEN rgt BETWEEN ? AND ? THEN rgt + ?
                       WHEN rgt BETWEEN ? AND ? THEN rgt + ?
                       ELSE rgt END
        WHERE merchant_id = ?
          AND (lft BETWEEN ? AND ? OR lft BETWEEN ? AND ? OR rgt BETWEEN ? AND ? OR rgt BETWEEN ? AND ?)
    `)
	_, err := tx.ExecContext(ctx, query,
		p.Lft, p.Rgt, p.DepthShift,
		p.Lft, p.Rgt, p.SubtreeShift, p.Lo, p.Hi, p.OtherShift,
		p.Lft, p.Rgt, p.SubtreeShift, p.Lo, p.Hi, p.OtherShift,
		merchantID,
		p.Lft, p.Rgt, p.Lo, p.Hi, p.Lft, p.Rgt, p.Lo, p.Hi,
	)
	return err
}

func setParent(ctx context.Context, tx *sqlx.Tx, merchantID, id string, parentID *string) error {
	query := tx.Rebind(`UPDATE categories SET parent_id = ?, updated_at = ? WHERE merchant_id = ? AND id = ?`)
	_, err := tx.ExecContext(ctx, query, parentID, time.Now().UTC(), merchantID, id)
	return err
}

// PromoteToRoot detaches the node with its whole subtree and makes it the
// first root of the domain (lft = 1). Later roots move to the front too; only
// a node already at lft = 1 is left untouched.
func (r *PGRepository) PromoteToRoot(ctx context.Context, merchantID, id string) (*model.Category, error) {
	const op = "category.PromoteToRoot"
	var out *model.Category
	err := r.inTreeTx(ctx, op, merchantID, func(tx *sqlx.Tx) error {
		node, err := mustFind(ctx, tx, op, merchantID, id)
		if err != nil {
			return err
		}
		if node.Lft == 1 {
			out = node
			return nil
		}

		plan, err := nestedset.PlanPromote(position(node))
		if err != nil {
			return err
		}
		if err := applyPlan(ctx, tx, merchantID, plan); err != nil {
			return err
		}
		if err := setParent(ctx, tx, merchantID, id, nil); err != nil {
			return err
		}
		out, err = mustFind(ctx, tx, op, merchantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Move makes the node's subtree the last child of parentID, or the last root
// when parentID is nil.
func (r *PGRepository) Move(ctx context.Context, merchantID, id string, parentID *string) (*model.Category, error) {
	const op = "category.Move"
	var out *model.Category
	err := r.inTreeTx(ctx, op, merchantID, func(tx *sqlx.Tx) error {
		node, err := mustFind(ctx, tx, op, merchantID, id)
		if err != nil {
			return err
		}

		var (
			target *nestedset.Position
			maxRgt int
		)
		if parentID != nil {
			parent, err := mustFind(ctx, tx, op, merchantID, *parentID)
			if err != nil {
				return err
			}
			p := position(parent)
			target = &p
		} else {
			query := tx.Rebind(`SELECT COALESCE(MAX(rgt), 0) FROM categories WHERE merchant_id = ?`)
			if err := tx.GetContext(ctx, &maxRgt, query, merchantID); err != nil {
				return err
			}
		}

		plan, err := nestedset.PlanMove(position(node), target, maxRgt)
		if errors.Is(err, nestedset.ErrIntoOwnSubtree) {
			return category.Validation(op, err)
		}
		if err != nil {
			return err
		}
		if !plan.Noop() {
			if err := applyPlan(ctx, tx, merchantID, plan); err != nil {
				return err
			}
		}
		if err := setParent(ctx, tx, merchantID, id, parentID); err != nil {
			return err
		}
		out, err = mustFind(ctx, tx, op, merchantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rebuild renumbers the merchant's whole tree from forest. The forest must
// list exactly the stored categories.
func (r *PGRepository) Rebuild(ctx context.Context, merchantID string, forest []*nestedset.Node) error {
	const op = "category.Rebuild"

	positions, err := nestedset.Number(forest)
	if err != nil {
		return category.Validation(op, err)
	}

	return r.inTreeTx(ctx, op, merchantID, func(tx *sqlx.Tx) error {
		var ids []string
		query := tx.Rebind(`SELECT id FROM categories WHERE merchant_id = ?`)
		if err := tx.SelectContext(ctx, &ids, query, merchantID); err != nil {
			return err
		}
		if err := sameIDs(ids, positions); err != nil {
			return category.Validation(op, err)
		}
		return writePositions(ctx, tx, merchantID, positions)
	})
}

// Repair renumbers the tree from the stored parent_id pointers, keeping the
// current sibling order. It is the way back from drifted intervals.
func (r *PGRepository) Repair(ctx context.Context, merchantID string) error {
	const op = "category.Repair"
	return r.inTreeTx(ctx, op, merchantID, func(tx *sqlx.Tx) error {
		var rows []struct {
			ID       string  `db:"id"`
			ParentID *string `db:"parent_id"`
		}
		query := tx.Rebind(`SELECT id, parent_id FROM categories WHERE merchant_id = ? ORDER BY lft ASC, name ASC`)
		if err := tx.SelectContext(ctx, &rows, query, merchantID); err != nil {
			return err
		}

		flats := make([]nestedset.Flat, len(rows))
		for i, row := range rows {
			flats[i] = nestedset.Flat{ID: row.ID, ParentID: row.ParentID}
		}
		forest, err := nestedset.FromParents(flats)
		if err != nil {
			return category.Validation(op, err)
		}
		positions, err := nestedset.Number(forest)
		if err != nil {
			return category.Validation(op, err)
		}
		return writePositions(ctx, tx, merchantID, positions)
	})
}

func sameIDs(stored []string, positions []nestedset.Position) error {
	given := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		given[p.ID] = struct{}{}
	}

	var missing []string
	for _, id := range stored {
		if _, ok := given[id]; !ok {
			missing = append(missing, id)
			continue
		}
		delete(given, id)
	}
	unknown := make([]string, 0, len(given))
	for id := range given {
		unknown = append(unknown, id)
	}
	sort.Strings(missing)
	sort.Strings(unknown)

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "forest omits "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		problems = append(problems, "forest names unknown "+strings.Join(unknown, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", nestedset.ErrMalformed, strings.Join(problems, "; "))
	}
	return nil
}

func writePositions(ctx context.Context, tx *sqlx.Tx, merchantID string, positions []nestedset.Position) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
        UPDATE categories
        SET parent_id = ?, lft = ?, rgt = ?, depth = ?
        WHERE merchant_id = ? AND id = ?
    `))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, p.ParentID, p.Lft, p.Rgt, p.Depth, merchantID, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepository) FindAll(ctx context.Context, merchantID string) ([]model.Category, error) {
	var categories []model.Category
	query := r.DB.Rebind(`SELECT * FROM categories WHERE merchant_id = ? ORDER BY lft ASC`)
	if err := r.DB.SelectContext(ctx, &categories, query, merchantID); err != nil {
		return nil, err
	}
	return categories, nil
}

// The range reads join the table to itself so the anchor's interval and the
// rows it selects come from the same snapshot.

func (r *PGRepository) FindSubtree(ctx context.Context, merchantID, id string) ([]model.Category, error) {
	var categories []model.Category
	query := r.DB.Rebind(`
        SELECT c.* FROM categories c
        JOIN categories n ON n.merchant_id = c.merchant_id AND n.id = ?
        WHERE c.merchant_id = ? AND c.lft BETWEEN n.lft AND n.rgt
        ORDER BY c.lft ASC
    `)
	if err := r.DB.SelectContext(ctx, &categories, query, id, merchantID); err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, category.NotFound("category.FindSubtree", id)
	}
	return categories, nil
}

func (r *PGRepository) FindDescendants(ctx context.Context, merchantID, id string) ([]model.Category, error) {
	var categories []model.Category
	query := r.DB.Rebind(`
        SELECT c.* FROM categories c
        JOIN categories n ON n.merchant_id = c.merchant_id AND n.id = ?
        WHERE c.merchant_id = ? AND c.lft > n.lft AND c.lft < n.rgt
        ORDER BY c.lft ASC
    `)
	if err := r.DB.SelectContext(ctx, &categories, query, id, merchantID); err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return r.emptyUnlessMissing(ctx, "category.FindDescendants", merchantID, id)
	}
	return categories, nil
}

func (r *PGRepository) FindAncestors(ctx context.Context, merchantID, id string) ([]model.Category, error) {
	var categories []model.Category
	query := r.DB.Rebind(`
        SELECT c.* FROM categories c
        JOIN categories n ON n.merchant_id = c.merchant_id AND n.id = ?
        WHERE c.merchant_id = ? AND c.lft < n.lft AND c.rgt > n.rgt
        ORDER BY c.lft ASC
    `)
	if err := r.DB.SelectContext(ctx, &categories, query, id, merchantID); err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return r.emptyUnlessMissing(ctx, "category.FindAncestors", merchantID, id)
	}
	return categories, nil
}

// An empty range is either a leaf/root or an unknown id.
func (r *PGRepository) emptyUnlessMissing(ctx context.Context, op, merchantID, id string) ([]model.Category, error) {
	if _, err := mustFind(ctx, r.DB, op, merchantID, id); err != nil {
		return nil, err
	}
	return []model.Category{}, nil
}
