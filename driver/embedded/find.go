package embedded

import (
	"context"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
)

// Find returns a cursor over the matching documents. Unsorted finds stream from a read transaction held
// until the cursor is exhausted or closed. Sorted finds are materialized before the cursor is returned.
func (e *Engine) Find(ctx context.Context, collection string, filter query.Filter, opts driver.FindOptions) (driver.Cursor, error) {
	if err := driver.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = query.All()
	}
	tx, err := e.db.NewTx(false)
	if err != nil {
		return nil, err
	}
	indexes, err := e.secondaryIndexes(ctx, tx, collection)
	if err != nil {
		tx.Close(ctx)
		return nil, err
	}
	src, err := optimize(indexes, filter).source(ctx, tx, collection)
	if err != nil {
		tx.Close(ctx)
		return nil, err
	}
	if len(opts.Sort) == 0 {
		return &cursor{
			tx:         tx,
			src:        src,
			filter:     filter,
			projection: opts.Projection,
			skip:       opts.Skip,
			limit:      opts.Limit,
		}, nil
	}
	docs, err := driver.Drain(ctx, &cursor{tx: tx, src: src, filter: filter})
	if err != nil {
		return nil, err
	}
	opts.Sort.Apply(docs)
	docs = window(docs, opts.Skip, opts.Limit)
	projected := make(model.Documents, 0, len(docs))
	for _, doc := range docs {
		p, err := opts.Projection.Apply(doc)
		if err != nil {
			return nil, err
		}
		projected = append(projected, p)
	}
	return driver.NewSliceCursor(projected), nil
}

func window(docs model.Documents, skip, limit int) model.Documents {
	if skip >= len(docs) {
		return model.Documents{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// Aggregate runs the pipeline in memory. A leading match stage is pushed down to the find so it can use an index.
func (e *Engine) Aggregate(ctx context.Context, collection string, p pipeline.Pipeline) (model.Documents, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var (
		filter = query.All()
		stages = p
	)
	if len(p) > 0 {
		if m, ok := p[0].(pipeline.MatchStage); ok {
			filter, stages = m.Filter, p[1:]
		}
	}
	c, err := e.Find(ctx, collection, filter, driver.FindOptions{})
	if err != nil {
		return nil, err
	}
	docs, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(docs, stages)
}

type cursor struct {
	tx         kv.Tx
	src        source
	filter     query.Filter
	projection query.Projection
	skip       int
	limit      int
	skipped    int
	returned   int
	current    *model.Document
	err        error
	released   bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.released {
		return false
	}
	if c.limit > 0 && c.returned >= c.limit {
		c.release(ctx)
		return false
	}
	for {
		doc, err := c.src.next(ctx)
		if err != nil {
			c.err = err
			c.release(ctx)
			return false
		}
		if doc == nil {
			c.release(ctx)
			return false
		}
		if !c.filter.Match(doc) {
			continue
		}
		if c.skipped < c.skip {
			c.skipped++
			continue
		}
		projected, err := c.projection.Apply(doc)
		if err != nil {
			c.err = err
			c.release(ctx)
			return false
		}
		c.current = projected
		c.returned++
		return true
	}
}

func (c *cursor) Document() *model.Document {
	return c.current
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close(ctx context.Context) error {
	c.release(ctx)
	return nil
}

func (c *cursor) All(ctx context.Context) (model.Documents, error) {
	return driver.Drain(ctx, c)
}

// release closes the source and the read transaction. Exhausted cursors release themselves.
func (c *cursor) release(ctx context.Context) {
	if c.released {
		return
	}
	c.released = true
	c.src.close()
	c.tx.Close(ctx)
}
