package driver

import (
	"context"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/internal/safe"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
)

// FindOptions are the optional parts of a find
type FindOptions struct {
	Projection query.Projection
	Sort       query.Sort
	Skip       int
	Limit      int
}

// Cursor is a lazy, single pass sequence of documents. A cursor must be closed to release its backend resources.
type Cursor interface {
	// Next advances the cursor. It returns false when the cursor is exhausted or an error occurred.
	Next(ctx context.Context) bool
	// Document returns the current document
	Document() *model.Document
	// Err returns the error that stopped the cursor, if any
	Err() error
	// Close releases the cursor. It is safe to call more than once.
	Close(ctx context.Context) error
	// All drains the cursor and closes it
	All(ctx context.Context) (model.Documents, error)
}

// Driver translates tagged queries into a backend's native representation
type Driver interface {
	// InsertMany stores the documents. Every document must carry an _id.
	InsertMany(ctx context.Context, collection string, docs model.Documents) ([]string, error)
	// Find returns a cursor over the documents matching the filter
	Find(ctx context.Context, collection string, filter query.Filter, opts FindOptions) (Cursor, error)
	// UpdateMany patches the documents matching the filter and returns the number modified
	UpdateMany(ctx context.Context, collection string, filter query.Filter, patch query.Patch) (int, error)
	// DeleteMany removes the documents matching the filter and returns the number removed
	DeleteMany(ctx context.Context, collection string, filter query.Filter) (int, error)
	// Aggregate runs the pipeline against the collection
	Aggregate(ctx context.Context, collection string, p pipeline.Pipeline) (model.Documents, error)
	// CreateIndex creates the index (if it doesn't already exist) and returns its name
	CreateIndex(ctx context.Context, collection string, index model.Index) (string, error)
	// ListIndexes returns the collection's indexes by name
	ListIndexes(ctx context.Context, collection string) (map[string]model.Index, error)
	// DropIndex drops the named index
	DropIndex(ctx context.Context, collection string, name string) error
	// DropCollection removes the collection, its documents and its indexes
	DropCollection(ctx context.Context, collection string) error
	// ListCollections returns the names of the existing collections
	ListCollections(ctx context.Context) ([]string, error)
	// SetValidator attaches a json schema that inserts and updates must satisfy. A nil schema removes it.
	SetValidator(ctx context.Context, collection string, schema []byte) error
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	// Close releases the backend
	Close(ctx context.Context) error
}

// Opener opens a driver from a connection address
type Opener func(ctx context.Context, address string) (Driver, error)

var openers = &safe.Map[Opener]{}

// Register registers a driver opener for the url scheme
func Register(scheme string, opener Opener) {
	openers.Set(scheme, opener)
}

// Lookup returns the driver opener registered for the url scheme
func Lookup(scheme string) (Opener, bool) {
	return openers.Lookup(scheme)
}

// Schemes returns the registered url schemes
func Schemes() []string {
	return openers.Keys()
}

// Drain reads every remaining document from the cursor and closes it
func Drain(ctx context.Context, c Cursor) (model.Documents, error) {
	defer c.Close(ctx)
	var docs model.Documents
	for c.Next(ctx) {
		docs = append(docs, c.Document())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

type sliceCursor struct {
	docs   model.Documents
	pos    int
	closed bool
}

// NewSliceCursor returns a cursor over materialized documents
func NewSliceCursor(docs model.Documents) Cursor {
	return &sliceCursor{docs: docs, pos: -1}
}

func (s *sliceCursor) Next(ctx context.Context) bool {
	if s.closed || s.pos+1 >= len(s.docs) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceCursor) Document() *model.Document {
	if s.pos < 0 || s.pos >= len(s.docs) {
		return nil
	}
	return s.docs[s.pos]
}

func (s *sliceCursor) Err() error {
	return nil
}

func (s *sliceCursor) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func (s *sliceCursor) All(ctx context.Context) (model.Documents, error) {
	return Drain(ctx, s)
}

// ValidateCollection returns a validation error if the collection name is unusable
func ValidateCollection(collection string) error {
	if collection == "" {
		return errors.New(errors.Validation, "empty collection name")
	}
	for _, r := range collection {
		if r == '/' || r == 0 {
			return errors.New(errors.Validation, "invalid collection name: '%s'", collection)
		}
	}
	return nil
}
