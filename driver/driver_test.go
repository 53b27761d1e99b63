package driver_test

import (
	"context"
	"testing"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	_, ok := driver.Lookup("test")
	assert.False(t, ok)
	driver.Register("test", func(ctx context.Context, address string) (driver.Driver, error) {
		return nil, errors.New(errors.Connection, "unreachable: %s", address)
	})
	opener, ok := driver.Lookup("test")
	require.True(t, ok)
	_, err := opener(context.Background(), "test://localhost")
	assert.True(t, errors.Is(err, errors.Connection))
	assert.Contains(t, driver.Schemes(), "test")
}

func TestSliceCursor(t *testing.T) {
	ctx := context.Background()
	docs := model.Documents{
		model.MustDocumentFrom(map[string]any{"_id": "1"}),
		model.MustDocumentFrom(map[string]any{"_id": "2"}),
		model.MustDocumentFrom(map[string]any{"_id": "3"}),
	}
	c := driver.NewSliceCursor(docs)
	assert.Nil(t, c.Document())
	require.True(t, c.Next(ctx))
	assert.Equal(t, "1", c.Document().ID())
	rest, err := c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, rest.IDs())
	assert.False(t, c.Next(ctx))
	assert.NoError(t, c.Err())

	empty, err := driver.Drain(ctx, driver.NewSliceCursor(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestValidateCollection(t *testing.T) {
	assert.NoError(t, driver.ValidateCollection("books"))
	for _, name := range []string{"", "a/b", "a\x00b"} {
		assert.True(t, errors.Is(driver.ValidateCollection(name), errors.Validation), name)
	}
}
