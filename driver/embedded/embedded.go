package embedded

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/kv/registry"
	"github.com/autom8ter/docstore/model"
	"github.com/xeipuuv/gojsonschema"
)

// Engine is a document engine layered on an ordered key value store
type Engine struct {
	db kv.DB
}

var _ driver.Driver = (*Engine)(nil)

// New creates an engine backed by the key value database. The engine owns the database and closes it on Close.
func New(db kv.DB) *Engine {
	return &Engine{db: db}
}

// Open opens the key value provider registered for the address scheme, ex: mem:// or badger:///tmp/data
func Open(ctx context.Context, address string) (*Engine, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "invalid address")
	}
	if !registry.Registered(u.Scheme) {
		return nil, errors.New(errors.Connection, "no key value provider registered for scheme '%s'", u.Scheme)
	}
	db, err := registry.OpenURL(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "failed to open %s", u.Scheme)
	}
	return New(db), nil
}

type collectionMeta struct {
	Name      string          `json:"name"`
	Seq       uint64          `json:"seq"`
	Validator json.RawMessage `json:"validator,omitempty"`
}

// state is everything a write needs to know about a collection
type state struct {
	meta      *collectionMeta
	indexes   []model.Index
	validator *gojsonschema.Schema
	exists    bool
}

func (e *Engine) loadState(ctx context.Context, tx kv.Tx, collection string) (*state, error) {
	s := &state{meta: &collectionMeta{Name: collection}}
	raw, err := tx.Get(ctx, collectionKey(collection))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		s.exists = true
		if err := json.Unmarshal(raw, s.meta); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "corrupt collection metadata: %s", collection)
		}
	}
	if len(s.meta.Validator) > 0 {
		s.validator, err = compileSchema(s.meta.Validator)
		if err != nil {
			return nil, err
		}
	}
	s.indexes, err = e.secondaryIndexes(ctx, tx, collection)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) saveMeta(ctx context.Context, tx kv.Tx, meta *collectionMeta) error {
	bits, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode collection metadata")
	}
	return tx.Set(ctx, collectionKey(meta.Name), bits)
}

func (e *Engine) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := e.db.Tx(false, func(tx kv.Tx) error {
		iter, err := tx.NewIterator(kv.IterOpts{Prefix: []byte(collectionsPrefix)})
		if err != nil {
			return err
		}
		defer iter.Close()
		for iter.Valid() {
			names = append(names, strings.TrimPrefix(string(iter.Key()), collectionsPrefix))
			if err := iter.Next(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (e *Engine) DropCollection(ctx context.Context, collection string) error {
	if err := driver.ValidateCollection(collection); err != nil {
		return err
	}
	return e.db.Tx(true, func(tx kv.Tx) error {
		if err := tx.Delete(ctx, collectionKey(collection)); err != nil {
			return err
		}
		for _, prefix := range [][]byte{
			indexMetaCollectionPrefix(collection),
			docPrefix(collection),
			idPrefix(collection),
			entriesCollectionPrefix(collection),
		} {
			if err := deletePrefix(ctx, tx, prefix); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) SetValidator(ctx context.Context, collection string, schema []byte) error {
	if err := driver.ValidateCollection(collection); err != nil {
		return err
	}
	if len(schema) > 0 {
		if _, err := compileSchema(schema); err != nil {
			return err
		}
	}
	return e.db.Tx(true, func(tx kv.Tx) error {
		s, err := e.loadState(ctx, tx, collection)
		if err != nil {
			return err
		}
		s.meta.Validator = schema
		return e.saveMeta(ctx, tx, s.meta)
	})
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.db.Tx(false, func(tx kv.Tx) error {
		_, err := tx.Get(ctx, []byte(collectionsPrefix))
		return err
	})
}

func (e *Engine) Close(ctx context.Context) error {
	return e.db.Close(ctx)
}

func compileSchema(schema []byte) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid json schema")
	}
	return compiled, nil
}

func (s *state) validate(doc *model.Document) error {
	if s.validator == nil {
		return nil
	}
	result, err := s.validator.Validate(gojsonschema.NewBytesLoader(doc.Bytes()))
	if err != nil {
		return errors.Wrap(err, errors.Validation, "failed to validate document")
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return errors.New(errors.Validation, "document %s failed validation: %s", doc.ID(), strings.Join(problems, ", "))
	}
	return nil
}

// deletePrefix deletes every key with the prefix. Keys are collected first so the iterator isn't invalidated.
func deletePrefix(ctx context.Context, tx kv.Tx, prefix []byte) error {
	var keys [][]byte
	iter, err := tx.NewIterator(kv.IterOpts{Prefix: prefix})
	if err != nil {
		return err
	}
	for iter.Valid() {
		keys = append(keys, iter.Key())
		if err := iter.Next(); err != nil {
			iter.Close()
			return err
		}
	}
	iter.Close()
	for _, k := range keys {
		if err := tx.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
