package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrNotFound, "student not found")
	assert.Equal(t, "student not found", err.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestFromErrorPassesTypedErrors(t *testing.T) {
	wrapped := Wrap(sql.ErrNoRows, ErrCacheMiss.Code, ErrCacheMiss.Status, "cache miss")
	assert.Same(t, wrapped, FromError(wrapped))
	assert.True(t, errors.Is(wrapped, ErrCacheMiss))
	assert.Nil(t, FromError(nil))
}
