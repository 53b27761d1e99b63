package embedded

import (
	"context"

	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/query"
)

type planKind int

const (
	planScan planKind = iota
	planID
	planIndex
)

// plan describes how candidate documents are read before the filter is applied
type plan struct {
	kind   planKind
	id     string
	index  model.Index
	values []model.Value
}

// optimize selects the access path for the filter. An equality on _id reads the document directly.
// Otherwise the index covering the most fields, where every field has an equality predicate, is used.
// Candidates are always re-checked against the full filter.
func optimize(indexes []model.Index, filter query.Filter) plan {
	equalities := query.Equalities(filter)
	if v, ok := equalities[model.IDField]; ok {
		id, _ := v.Str()
		return plan{kind: planID, id: id}
	}
	var best plan
	for _, index := range indexes {
		var values []model.Value
		for _, field := range index.Fields() {
			v, ok := equalities[field]
			if !ok {
				values = nil
				break
			}
			values = append(values, v)
		}
		if values == nil {
			continue
		}
		if best.kind != planIndex || len(values) > len(best.values) || (len(values) == len(best.values) && index.Unique && !best.index.Unique) {
			best = plan{kind: planIndex, index: index, values: values}
		}
	}
	return best
}

func (p plan) source(ctx context.Context, tx kv.Tx, collection string) (source, error) {
	switch p.kind {
	case planID:
		return &idSource{tx: tx, collection: collection, id: p.id}, nil
	case planIndex:
		iter, err := tx.NewIterator(kv.IterOpts{Prefix: entryPrefix(collection, p.index.Name, p.values)})
		if err != nil {
			return nil, err
		}
		return &indexSource{tx: tx, collection: collection, iter: iter}, nil
	default:
		iter, err := tx.NewIterator(kv.IterOpts{Prefix: docPrefix(collection)})
		if err != nil {
			return nil, err
		}
		return &scanSource{iter: iter}, nil
	}
}

// source yields candidate documents in insertion order. next returns a nil document when exhausted.
type source interface {
	next(ctx context.Context) (*model.Document, error)
	close()
}

type scanSource struct {
	iter kv.Iterator
}

// next skips keys whose value is gone, which happens when a provider lists keys before reading them
func (s *scanSource) next(ctx context.Context) (*model.Document, error) {
	for s.iter.Valid() {
		raw, err := s.iter.Value()
		if err != nil {
			return nil, err
		}
		if err := s.iter.Next(); err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		return model.NewDocumentFromBytes(raw)
	}
	return nil, nil
}

func (s *scanSource) close() {
	s.iter.Close()
}

type indexSource struct {
	tx         kv.Tx
	collection string
	iter       kv.Iterator
}

func (s *indexSource) next(ctx context.Context) (*model.Document, error) {
	for s.iter.Valid() {
		raw, err := s.iter.Value()
		if err != nil {
			return nil, err
		}
		if err := s.iter.Next(); err != nil {
			return nil, err
		}
		seq, err := parseSeq(raw)
		if err != nil {
			return nil, err
		}
		doc, err := getBySeq(ctx, s.tx, s.collection, seq)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}
	return nil, nil
}

func (s *indexSource) close() {
	s.iter.Close()
}

type idSource struct {
	tx         kv.Tx
	collection string
	id         string
	done       bool
}

func (s *idSource) next(ctx context.Context) (*model.Document, error) {
	if s.done || s.id == "" {
		return nil, nil
	}
	s.done = true
	_, doc, err := getByID(ctx, s.tx, s.collection, s.id)
	return doc, err
}

func (s *idSource) close() {}
