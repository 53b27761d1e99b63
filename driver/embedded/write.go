package embedded

import (
	"context"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/query"
)

func documentID(doc *model.Document) (string, error) {
	v, ok := doc.Lookup(model.IDField)
	if !ok {
		return "", errors.New(errors.Validation, "document is missing '%s'", model.IDField)
	}
	id, ok := v.Str()
	if !ok || id == "" {
		return "", errors.New(errors.Validation, "document '%s' must be a non-empty string: %s", model.IDField, v.String())
	}
	return id, nil
}

// putDocument writes the document and its index entries. old is the previously stored version, if any.
func putDocument(ctx context.Context, tx kv.Tx, collection string, s *state, seq uint64, old, doc *model.Document) error {
	if old != nil && old.ID() != doc.ID() {
		return errors.New(errors.Validation, "the '%s' field is immutable", model.IDField)
	}
	if err := s.validate(doc); err != nil {
		return err
	}
	for _, index := range s.indexes {
		if old != nil {
			for _, tuple := range indexValues(index, old) {
				if err := tx.Delete(ctx, entryKey(collection, index.Name, tuple, seq)); err != nil {
					return err
				}
			}
		}
		tuples := indexValues(index, doc)
		if index.Unique {
			if err := checkUnique(ctx, tx, collection, index, tuples, seq); err != nil {
				return err
			}
		}
		for _, tuple := range tuples {
			if err := tx.Set(ctx, entryKey(collection, index.Name, tuple, seq), []byte(formatSeq(seq))); err != nil {
				return err
			}
		}
	}
	if err := tx.Set(ctx, docKey(collection, seq), doc.Bytes()); err != nil {
		return err
	}
	return tx.Set(ctx, idKey(collection, doc.ID()), []byte(formatSeq(seq)))
}

func removeDocument(ctx context.Context, tx kv.Tx, collection string, s *state, seq uint64, doc *model.Document) error {
	for _, index := range s.indexes {
		for _, tuple := range indexValues(index, doc) {
			if err := tx.Delete(ctx, entryKey(collection, index.Name, tuple, seq)); err != nil {
				return err
			}
		}
	}
	if err := tx.Delete(ctx, docKey(collection, seq)); err != nil {
		return err
	}
	return tx.Delete(ctx, idKey(collection, doc.ID()))
}

// getByID returns the stored document and its sequence, or a nil document if it doesn't exist
func getByID(ctx context.Context, tx kv.Tx, collection, id string) (uint64, *model.Document, error) {
	raw, err := tx.Get(ctx, idKey(collection, id))
	if err != nil || raw == nil {
		return 0, nil, err
	}
	seq, err := parseSeq(raw)
	if err != nil {
		return 0, nil, err
	}
	doc, err := getBySeq(ctx, tx, collection, seq)
	return seq, doc, err
}

func getBySeq(ctx context.Context, tx kv.Tx, collection string, seq uint64) (*model.Document, error) {
	raw, err := tx.Get(ctx, docKey(collection, seq))
	if err != nil || raw == nil {
		return nil, err
	}
	doc, err := model.NewDocumentFromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "corrupt document")
	}
	return doc, nil
}

// InsertMany inserts the documents in a single transaction - either every document is stored or none are
func (e *Engine) InsertMany(ctx context.Context, collection string, docs model.Documents) ([]string, error) {
	if err := driver.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []string{}, nil
	}
	var ids []string
	err := e.db.Tx(true, func(tx kv.Tx) error {
		ids = make([]string, 0, len(docs))
		s, err := e.loadState(ctx, tx, collection)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			id, err := documentID(doc)
			if err != nil {
				return err
			}
			existing, err := tx.Get(ctx, idKey(collection, id))
			if err != nil {
				return err
			}
			if existing != nil {
				return errors.New(errors.Validation, "duplicate document id: '%s'", id)
			}
			s.meta.Seq++
			if err := putDocument(ctx, tx, collection, s, s.meta.Seq, nil, doc); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return e.saveMeta(ctx, tx, s.meta)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// matchingIDs collects the ids of the documents matching the filter before any of them are modified
func (e *Engine) matchingIDs(ctx context.Context, collection string, filter query.Filter) ([]string, error) {
	cursor, err := e.Find(ctx, collection, filter, driver.FindOptions{})
	if err != nil {
		return nil, err
	}
	docs, err := cursor.All(ctx)
	if err != nil {
		return nil, err
	}
	return docs.IDs(), nil
}

// UpdateMany patches each matching document in its own transaction, re-checking the filter inside it
func (e *Engine) UpdateMany(ctx context.Context, collection string, filter query.Filter, patch query.Patch) (int, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}
	ids, err := e.matchingIDs(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	modified := 0
	for _, id := range ids {
		changed := false
		err := e.db.Tx(true, func(tx kv.Tx) error {
			s, err := e.loadState(ctx, tx, collection)
			if err != nil {
				return err
			}
			seq, doc, err := getByID(ctx, tx, collection, id)
			if err != nil || doc == nil || !filter.Match(doc) {
				return err
			}
			updated := doc.Clone()
			changed, err = patch.Apply(updated)
			if err != nil || !changed {
				return err
			}
			return putDocument(ctx, tx, collection, s, seq, doc, updated)
		})
		if err != nil {
			return modified, err
		}
		if changed {
			modified++
		}
	}
	return modified, nil
}

// DeleteMany removes each matching document in its own transaction, re-checking the filter inside it
func (e *Engine) DeleteMany(ctx context.Context, collection string, filter query.Filter) (int, error) {
	ids, err := e.matchingIDs(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		deleted := false
		err := e.db.Tx(true, func(tx kv.Tx) error {
			s, err := e.loadState(ctx, tx, collection)
			if err != nil {
				return err
			}
			seq, doc, err := getByID(ctx, tx, collection, id)
			if err != nil || doc == nil || !filter.Match(doc) {
				return err
			}
			if err := removeDocument(ctx, tx, collection, s, seq, doc); err != nil {
				return err
			}
			deleted = true
			return nil
		})
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}
