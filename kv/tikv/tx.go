package tikv

import (
	"context"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	tikvErr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/txnkv/transaction"
)

type tikvTx struct {
	txn      *transaction.KVTxn
	readOnly bool
	db       *tikvKV
}

func (t *tikvTx) NewIterator(kopts kv.IterOpts) (kv.Iterator, error) {
	if kopts.Reverse {
		iter, err := t.txn.IterReverse(kv.NextPrefix(kopts.Prefix))
		if err != nil {
			return nil, errors.Wrap(err, errors.Internal, "tikv: failed to create iterator")
		}
		return &tikvIterator{iter: iter, opts: kopts}, nil
	}
	var upper []byte
	if len(kopts.Prefix) > 0 {
		upper = kv.NextPrefix(kopts.Prefix)
	}
	iter, err := t.txn.Iter(kopts.Prefix, upper)
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "tikv: failed to create iterator")
	}
	return &tikvIterator{iter: iter, opts: kopts}, nil
}

func (t *tikvTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := t.txn.Get(ctx, key)
	if err != nil {
		if tikvErr.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.Internal, "tikv: failed to get key")
	}
	return val, nil
}

func (t *tikvTx) Set(ctx context.Context, key, value []byte) error {
	if t.readOnly {
		return errors.New(errors.Internal, "tikv: writes forbidden in read-only transaction")
	}
	return errors.Wrap(t.txn.Set(key, value), errors.Internal, "tikv: failed to set key")
}

func (t *tikvTx) Delete(ctx context.Context, key []byte) error {
	if t.readOnly {
		return errors.New(errors.Internal, "tikv: writes forbidden in read-only transaction")
	}
	return errors.Wrap(t.txn.Delete(key), errors.Internal, "tikv: failed to delete key")
}

func (t *tikvTx) Rollback(ctx context.Context) error {
	if !t.txn.Valid() {
		return nil
	}
	return errors.Wrap(t.txn.Rollback(), errors.Internal, "tikv: failed to rollback")
}

func (t *tikvTx) Commit(ctx context.Context) error {
	if err := t.txn.Commit(ctx); err != nil {
		if tikvErr.IsErrWriteConflict(err) {
			return errors.Wrap(err, errors.Validation, "tikv: transaction conflict")
		}
		return errors.Wrap(err, errors.Internal, "tikv: failed to commit")
	}
	return nil
}

func (t *tikvTx) Close(ctx context.Context) {
	_ = t.Rollback(ctx)
}
