package badger

import (
	"context"
	stderrors "errors"

	"github.com/autom8ter/docstore/kv"
	"github.com/dgraph-io/badger/v3"
)

type badgerTx struct {
	txn *badger.Txn
	db  *badgerKV
}

func (b *badgerTx) NewIterator(kopts kv.IterOpts) (kv.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.PrefetchSize = 10
	opts.Prefix = kopts.Prefix
	opts.Reverse = kopts.Reverse
	iter := b.txn.NewIterator(opts)
	switch {
	case kopts.Reverse && len(kopts.Prefix) > 0:
		iter.Seek(append(append([]byte{}, kopts.Prefix...), 0xFF))
	default:
		iter.Rewind()
	}
	return &badgerIterator{iter: iter, opts: kopts}, nil
}

func (b *badgerTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	i, err := b.txn.Get(key)
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, wrapErr(err)
	}
	val, err := i.ValueCopy(nil)
	return val, wrapErr(err)
}

func (b *badgerTx) Set(ctx context.Context, key, value []byte) error {
	var e = &badger.Entry{
		Key:   key,
		Value: value,
	}
	return wrapErr(b.txn.SetEntry(e))
}

func (b *badgerTx) Delete(ctx context.Context, key []byte) error {
	return wrapErr(b.txn.Delete(key))
}

func (b *badgerTx) Rollback(ctx context.Context) error {
	b.txn.Discard()
	return nil
}

func (b *badgerTx) Commit(ctx context.Context) error {
	return wrapErr(b.txn.Commit())
}

func (b *badgerTx) Close(ctx context.Context) {
	b.txn.Discard()
}
