package docstore

import (
	"context"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"github.com/segmentio/ksuid"
)

// ErrNotFound is returned by FindOne when no document matches
var ErrNotFound = errors.New(errors.NotFound, "document not found")

// FindOption configures a find
type FindOption func(o *driver.FindOptions)

// WithProjection shapes the returned documents
func WithProjection(p query.Projection) FindOption {
	return func(o *driver.FindOptions) {
		o.Projection = p
	}
}

// WithSort orders the returned documents
func WithSort(s query.Sort) FindOption {
	return func(o *driver.FindOptions) {
		o.Sort = s
	}
}

// WithSkip skips the first n matching documents
func WithSkip(n int) FindOption {
	return func(o *driver.FindOptions) {
		o.Skip = n
	}
}

// WithLimit returns at most n documents. 0 means no limit.
func WithLimit(n int) FindOption {
	return func(o *driver.FindOptions) {
		o.Limit = n
	}
}

func findOptions(opts []FindOption) (driver.FindOptions, error) {
	var o driver.FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Skip < 0 {
		return o, errors.New(errors.InvalidExpression, "skip must not be negative: %d", o.Skip)
	}
	if o.Limit < 0 {
		return o, errors.New(errors.InvalidExpression, "limit must not be negative: %d", o.Limit)
	}
	if len(o.Sort) > 0 {
		s, err := query.BuildSort(o.Sort...)
		if err != nil {
			return o, err
		}
		o.Sort = s
	}
	return o, nil
}

// assignID sets a generated identifier on documents without one
func assignID(doc *model.Document) error {
	if doc == nil || !doc.Valid() {
		return errors.New(errors.Validation, "invalid document")
	}
	if !doc.Exists(model.IDField) {
		return doc.Set(model.IDField, ksuid.New().String())
	}
	v, _ := doc.Lookup(model.IDField)
	if id, ok := v.Str(); !ok || id == "" {
		return errors.New(errors.Validation, "document '%s' must be a non-empty string: %s", model.IDField, v.String())
	}
	return nil
}

// InsertMany inserts the documents and returns their identifiers in input order. Documents without an _id are assigned one.
func (c *Client) InsertMany(ctx context.Context, collection string, docs model.Documents) ([]string, error) {
	var ids []string
	err := c.do(ctx, "insert", collection, func() error {
		for _, doc := range docs {
			if err := assignID(doc); err != nil {
				return err
			}
		}
		var err error
		ids, err = c.driver.InsertMany(ctx, collection, docs)
		return err
	})
	return ids, err
}

// InsertOne inserts the document and returns its identifier
func (c *Client) InsertOne(ctx context.Context, collection string, doc *model.Document) (string, error) {
	ids, err := c.InsertMany(ctx, collection, model.Documents{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Find returns a cursor over the documents matching the filter. A nil filter matches everything.
// The cursor must be closed, see ForEach.
func (c *Client) Find(ctx context.Context, collection string, filter query.Filter, opts ...FindOption) (driver.Cursor, error) {
	var cursor driver.Cursor
	err := c.do(ctx, "find", collection, func() error {
		o, err := findOptions(opts)
		if err != nil {
			return err
		}
		if filter == nil {
			filter = query.All()
		}
		cursor, err = c.driver.Find(ctx, collection, filter, o)
		return err
	})
	return cursor, err
}

// FindAll returns every document matching the filter
func (c *Client) FindAll(ctx context.Context, collection string, filter query.Filter, opts ...FindOption) (model.Documents, error) {
	cursor, err := c.Find(ctx, collection, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor.All(ctx)
}

// FindOne returns the first document matching the filter or ErrNotFound
func (c *Client) FindOne(ctx context.Context, collection string, filter query.Filter, opts ...FindOption) (*model.Document, error) {
	cursor, err := c.Find(ctx, collection, filter, append(opts, WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		return cursor.Document(), nil
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// ForEach calls fn with each matching document until fn returns false or an error.
// The cursor is released on every return path.
func (c *Client) ForEach(ctx context.Context, collection string, filter query.Filter, fn func(doc *model.Document) (bool, error), opts ...FindOption) error {
	cursor, err := c.Find(ctx, collection, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		next, err := fn(cursor.Document())
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
	return cursor.Err()
}

// UpdateMany applies the patch to every matching document and returns the number of documents modified.
// Each document is patched atomically. There is no atomicity across documents.
func (c *Client) UpdateMany(ctx context.Context, collection string, filter query.Filter, patch query.Patch) (int, error) {
	var modified int
	err := c.do(ctx, "update", collection, func() error {
		if err := patch.Validate(); err != nil {
			return err
		}
		if filter == nil {
			filter = query.All()
		}
		var err error
		modified, err = c.driver.UpdateMany(ctx, collection, filter, patch)
		return err
	})
	return modified, err
}

// DeleteMany removes every matching document and returns the number removed
func (c *Client) DeleteMany(ctx context.Context, collection string, filter query.Filter) (int, error) {
	var removed int
	err := c.do(ctx, "delete", collection, func() error {
		if filter == nil {
			filter = query.All()
		}
		var err error
		removed, err = c.driver.DeleteMany(ctx, collection, filter)
		return err
	})
	return removed, err
}

// Aggregate runs the pipeline over the collection. The pipeline is validated before the store is touched.
func (c *Client) Aggregate(ctx context.Context, collection string, p pipeline.Pipeline) (model.Documents, error) {
	var results model.Documents
	err := c.do(ctx, "aggregate", collection, func() error {
		if err := p.Validate(); err != nil {
			return err
		}
		var err error
		results, err = c.driver.Aggregate(ctx, collection, p)
		return err
	})
	return results, err
}
