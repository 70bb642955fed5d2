package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	violation := &pq.Error{Code: pqUniqueViolation, Constraint: threadUniqueConstraint}

	assert.True(t, IsUniqueViolation(violation, threadUniqueConstraint))
	assert.True(t, IsUniqueViolation(violation, ""))
	assert.False(t, IsUniqueViolation(violation, "other_constraint"))
	assert.False(t, IsUniqueViolation(errors.New("plain error"), ""))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: pqForeignKeyViolation}, ""))

	wrapped := fmt.Errorf("insert failed: %w", violation)
	assert.True(t, IsUniqueViolation(wrapped, threadUniqueConstraint))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: pqForeignKeyViolation}))
	assert.False(t, IsForeignKeyViolation(&pq.Error{Code: pqUniqueViolation}))
	assert.False(t, IsForeignKeyViolation(errors.New("plain error")))
}
