package embedded

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/model"
)

// indexValues returns the value tuples the document is indexed under.
// Absent fields index as null. Array fields are multikey: the whole array and each element are indexed.
func indexValues(index model.Index, doc *model.Document) [][]model.Value {
	tuples := [][]model.Value{{}}
	for _, field := range index.Fields() {
		candidates := fieldValues(doc, field)
		var next [][]model.Value
		for _, tuple := range tuples {
			for _, c := range candidates {
				extended := append(append([]model.Value{}, tuple...), c)
				next = append(next, extended)
			}
		}
		tuples = next
	}
	seen := map[string]struct{}{}
	var unique [][]model.Value
	for _, tuple := range tuples {
		k := encodeValues(tuple)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, tuple)
	}
	return unique
}

func fieldValues(doc *model.Document, field string) []model.Value {
	v, ok := doc.Lookup(field)
	if !ok {
		return []model.Value{model.Null()}
	}
	if v.Kind() != model.KindArray {
		return []model.Value{v}
	}
	return append([]model.Value{v}, v.Elements()...)
}

func (e *Engine) secondaryIndexes(ctx context.Context, tx kv.Tx, collection string) ([]model.Index, error) {
	var indexes []model.Index
	iter, err := tx.NewIterator(kv.IterOpts{Prefix: indexMetaCollectionPrefix(collection)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	for iter.Valid() {
		raw, err := iter.Value()
		if err != nil {
			return nil, err
		}
		var index model.Index
		if err := json.Unmarshal(raw, &index); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "corrupt index metadata: %s", string(iter.Key()))
		}
		indexes = append(indexes, index)
		if err := iter.Next(); err != nil {
			return nil, err
		}
	}
	return indexes, nil
}

// checkUnique returns a validation error if another document already holds one of the tuples in a unique index
func checkUnique(ctx context.Context, tx kv.Tx, collection string, index model.Index, tuples [][]model.Value, seq uint64) error {
	for _, tuple := range tuples {
		iter, err := tx.NewIterator(kv.IterOpts{Prefix: entryPrefix(collection, index.Name, tuple)})
		if err != nil {
			return err
		}
		for iter.Valid() {
			raw, err := iter.Value()
			if err != nil {
				iter.Close()
				return err
			}
			other, err := parseSeq(raw)
			if err != nil {
				iter.Close()
				return err
			}
			if other != seq {
				iter.Close()
				return errors.New(errors.Validation, "duplicate key in unique index '%s': %s", index.Name, tupleString(tuple))
			}
			if err := iter.Next(); err != nil {
				iter.Close()
				return err
			}
		}
		iter.Close()
	}
	return nil
}

func tupleString(tuple []model.Value) string {
	parts := make([]string, 0, len(tuple))
	for _, v := range tuple {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) CreateIndex(ctx context.Context, collection string, index model.Index) (string, error) {
	if err := driver.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := index.Validate(); err != nil {
		return "", err
	}
	index = index.Named()
	if strings.Contains(index.Name, "/") {
		return "", errors.New(errors.Validation, "invalid index name: '%s'", index.Name)
	}
	var name string
	err := e.db.Tx(true, func(tx kv.Tx) error {
		s, err := e.loadState(ctx, tx, collection)
		if err != nil {
			return err
		}
		for _, existing := range append([]model.Index{model.PrimaryIndex()}, s.indexes...) {
			if existing.SameDefinition(index) {
				name = existing.Name
				return nil
			}
			if existing.Name == index.Name {
				return errors.New(errors.Validation, "index '%s' already exists with a different definition", index.Name)
			}
		}
		if err := buildIndex(ctx, tx, collection, index); err != nil {
			return err
		}
		bits, err := json.Marshal(index)
		if err != nil {
			return errors.Wrap(err, errors.Internal, "failed to encode index")
		}
		if err := tx.Set(ctx, indexMetaKey(collection, index.Name), bits); err != nil {
			return err
		}
		if !s.exists {
			if err := e.saveMeta(ctx, tx, s.meta); err != nil {
				return err
			}
		}
		name = index.Name
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// buildIndex writes entries for every existing document, failing if a unique index would be violated
func buildIndex(ctx context.Context, tx kv.Tx, collection string, index model.Index) error {
	type entry struct {
		tuple []model.Value
		seq   uint64
	}
	var (
		entries []entry
		owners  = map[string]string{}
	)
	iter, err := tx.NewIterator(kv.IterOpts{Prefix: docPrefix(collection)})
	if err != nil {
		return err
	}
	for iter.Valid() {
		seq, err := parseSeq(iter.Key()[len(docPrefix(collection)):])
		if err != nil {
			iter.Close()
			return err
		}
		raw, err := iter.Value()
		if err != nil {
			iter.Close()
			return err
		}
		doc, err := model.NewDocumentFromBytes(raw)
		if err != nil {
			iter.Close()
			return errors.Wrap(err, errors.Internal, "corrupt document")
		}
		for _, tuple := range indexValues(index, doc) {
			if index.Unique {
				k := encodeValues(tuple)
				if owner, ok := owners[k]; ok {
					iter.Close()
					return errors.New(errors.Validation, "cannot create unique index '%s': documents %s and %s share %s", index.Name, owner, doc.ID(), tupleString(tuple))
				}
				owners[k] = doc.ID()
			}
			entries = append(entries, entry{tuple: tuple, seq: seq})
		}
		if err := iter.Next(); err != nil {
			iter.Close()
			return err
		}
	}
	iter.Close()
	for _, e := range entries {
		if err := tx.Set(ctx, entryKey(collection, index.Name, e.tuple, e.seq), []byte(formatSeq(e.seq))); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ListIndexes(ctx context.Context, collection string) (map[string]model.Index, error) {
	if err := driver.ValidateCollection(collection); err != nil {
		return nil, err
	}
	indexes := map[string]model.Index{
		model.PrimaryIndexName: model.PrimaryIndex(),
	}
	err := e.db.Tx(false, func(tx kv.Tx) error {
		secondary, err := e.secondaryIndexes(ctx, tx, collection)
		if err != nil {
			return err
		}
		for _, index := range secondary {
			indexes[index.Name] = index
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return indexes, nil
}

func (e *Engine) DropIndex(ctx context.Context, collection string, name string) error {
	if err := driver.ValidateCollection(collection); err != nil {
		return err
	}
	if name == model.PrimaryIndexName {
		return errors.New(errors.Validation, "the '%s' index cannot be dropped", model.PrimaryIndexName)
	}
	return e.db.Tx(true, func(tx kv.Tx) error {
		raw, err := tx.Get(ctx, indexMetaKey(collection, name))
		if err != nil {
			return err
		}
		if raw == nil {
			return errors.New(errors.NotFound, "index '%s' not found on collection '%s'", name, collection)
		}
		if err := tx.Delete(ctx, indexMetaKey(collection, name)); err != nil {
			return err
		}
		return deletePrefix(ctx, tx, entriesIndexPrefix(collection, name))
	})
}
