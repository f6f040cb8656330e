package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassflow/batchget/internal/codec"
	"github.com/glassflow/batchget/internal/models"
)

func TestCheckKey(t *testing.T) {
	requested, err := models.NewKey("test", "set", "a")
	require.NoError(t, err)
	other, err := models.NewKey("test", "set", "b")
	require.NoError(t, err)

	require.NoError(t, CheckKey(requested, codec.Entry{Key: requested}))

	err = CheckKey(requested, codec.Entry{Key: other})
	var statusErr *models.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, models.StatusKeyMismatch, statusErr.Status)
}
