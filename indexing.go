package docstore

import (
	"context"

	"github.com/autom8ter/docstore/model"
)

// CreateIndex creates the index and returns its name. Creating an index with the same keys and uniqueness as an
// existing one returns the existing name. A unique index fails with a validation error if existing documents collide.
func (c *Client) CreateIndex(ctx context.Context, collection string, index model.Index) (string, error) {
	var name string
	err := c.do(ctx, "create_index", collection, func() error {
		if err := index.Validate(); err != nil {
			return err
		}
		var err error
		name, err = c.driver.CreateIndex(ctx, collection, index.Named())
		return err
	})
	return name, err
}

// ListIndexes returns the collection's indexes by name, including the primary _id_ index
func (c *Client) ListIndexes(ctx context.Context, collection string) (map[string]model.Index, error) {
	var indexes map[string]model.Index
	err := c.do(ctx, "list_indexes", collection, func() error {
		var err error
		indexes, err = c.driver.ListIndexes(ctx, collection)
		return err
	})
	return indexes, err
}

// DropIndex removes the named index
func (c *Client) DropIndex(ctx context.Context, collection string, name string) error {
	return c.do(ctx, "drop_index", collection, func() error {
		return c.driver.DropIndex(ctx, collection, name)
	})
}
