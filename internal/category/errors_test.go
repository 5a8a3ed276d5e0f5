package category

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	base := errors.New("connection reset")

	err := TransactionFailure("category.Delete", base)
	assert.True(t, IsTransactionFailure(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "category.Delete: transaction failure: connection reset", err.Error())

	nf := NotFound("category.Delete", "c1")
	assert.True(t, IsNotFound(nf))
	assert.Equal(t, "category.Delete: not found (category c1)", nf.Error())

	// Typed errors raised inside a transaction keep their kind.
	assert.True(t, IsNotFound(TransactionFailure("category.Delete", nf)))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", nf)))

	assert.Nil(t, TransactionFailure("op", nil))
	assert.Equal(t, Kind(0), KindOf(base))
	assert.True(t, IsConflict(Conflict("category.Insert", "", base)))
	assert.True(t, IsValidation(Validation("category.Rebuild", base)))
}
