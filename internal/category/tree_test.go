package category

import (
	"testing"

	"github.com/fekuna/omnipos-category-service/internal/category/nestedset"
	"github.com/fekuna/omnipos-category-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func rows() []model.Category {
	row := func(id string, parent *string, lft, rgt, depth int) model.Category {
		return model.Category{BaseModel: model.BaseModel{ID: id}, ParentID: parent, Name: id, Lft: lft, Rgt: rgt, Depth: depth}
	}
	// a(b(d,e),c) f
	return []model.Category{
		row("a", nil, 1, 10, 0),
		row("b", ptr("a"), 2, 7, 1),
		row("d", ptr("b"), 3, 4, 2),
		row("e", ptr("b"), 5, 6, 2),
		row("c", ptr("a"), 8, 9, 1),
		row("f", nil, 11, 12, 0),
	}
}

func TestBuildTree(t *testing.T) {
	tree := BuildTree(rows())
	require.Len(t, tree, 2)
	assert.Equal(t, "a", tree[0].ID)
	assert.Equal(t, "f", tree[1].ID)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "b", tree[0].Children[0].ID)
	assert.Equal(t, "c", tree[0].Children[1].ID)
	assert.Len(t, tree[0].Children[0].Children, 2)
	assert.Empty(t, tree[1].Children)

	// A subtree slice whose top row has an absent parent still nests.
	sub := BuildTree(rows()[1:4])
	require.Len(t, sub, 1)
	assert.Equal(t, "b", sub[0].ID)
	assert.Len(t, sub[0].Children, 2)

	assert.Empty(t, BuildTree(nil))
}

func TestAdjacencyRoundTrip(t *testing.T) {
	forest := ForestFromDTO(TreeToAdjacency(BuildTree(rows())))
	assert.Equal(t, 6, nestedset.Count(forest))

	positions, err := nestedset.Number(forest)
	require.NoError(t, err)
	assert.Equal(t, Positions(rows()), positions)
	assert.Empty(t, nestedset.Verify(positions))
}
