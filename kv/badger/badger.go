package badger

import (
	"context"
	stderrors "errors"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/kv/registry"
	"github.com/dgraph-io/badger/v3"
	"github.com/spf13/cast"
)

func init() {
	registry.Register("badger", func(ctx context.Context, params map[string]interface{}) (kv.DB, error) {
		path := cast.ToString(params["storage_path"])
		if path == "" {
			path = cast.ToString(params["path"])
		}
		if path == "" {
			return nil, errors.New(errors.Connection, "badger: a storage path is required")
		}
		return Open(path)
	})
	registry.Register("mem", func(ctx context.Context, params map[string]interface{}) (kv.DB, error) {
		return Open("")
	})
}

type badgerKV struct {
	db *badger.DB
}

// Open opens a badger database at the storage path. An empty path opens an in-memory database.
func Open(storagePath string) (kv.DB, error) {
	opts := badger.DefaultOptions(storagePath)
	if storagePath == "" {
		opts.InMemory = true
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts = opts.WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "badger: failed to open %s", storagePath)
	}
	return &badgerKV{
		db: db,
	}, nil
}

func (b *badgerKV) Tx(isUpdate bool, fn func(kv.Tx) error) error {
	var err error
	if isUpdate {
		err = b.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerTx{txn: txn, db: b})
		})
	} else {
		err = b.db.View(func(txn *badger.Txn) error {
			return fn(&badgerTx{txn: txn, db: b})
		})
	}
	return wrapErr(err)
}

func (b *badgerKV) NewTx(isUpdate bool) (kv.Tx, error) {
	return &badgerTx{txn: b.db.NewTransaction(isUpdate), db: b}, nil
}

func (b *badgerKV) Close(ctx context.Context) error {
	if !b.db.Opts().InMemory {
		if err := b.db.Sync(); err != nil {
			return errors.Wrap(err, errors.Internal, "badger: failed to sync")
		}
	}
	return errors.Wrap(b.db.Close(), errors.Internal, "badger: failed to close")
}

func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, badger.ErrConflict):
		return errors.Wrap(err, errors.Validation, "badger: transaction conflict")
	case stderrors.Is(err, badger.ErrDBClosed):
		return errors.Wrap(err, errors.Connection, "badger: database closed")
	default:
		var e *errors.Error
		if stderrors.As(err, &e) {
			return err
		}
		return errors.Wrap(err, errors.Internal, "badger")
	}
}
