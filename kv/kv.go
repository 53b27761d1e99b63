package kv

import (
	"context"

	"github.com/autom8ter/docstore/errors"
)

// DB is an ordered key value database with transactions
type DB interface {
	// Tx runs the function inside a transaction. Update transactions commit when fn returns nil and roll back otherwise.
	Tx(isUpdate bool, fn func(Tx) error) error
	// NewTx opens a transaction that the caller must commit or roll back, then close
	NewTx(isUpdate bool) (Tx, error)
	// Close closes the database
	Close(ctx context.Context) error
}

// IterOpts configure an iterator
type IterOpts struct {
	Prefix  []byte `json:"prefix"`
	Reverse bool   `json:"reverse"`
}

// Tx is a database transaction. Reads observe the transaction's own writes.
type Tx interface {
	// Get returns the value of the key, or nil if the key doesn't exist
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Set sets the key to the value
	Set(ctx context.Context, key, value []byte) error
	// Delete removes the key
	Delete(ctx context.Context, key []byte) error
	// NewIterator iterates over keys in lexicographic order
	NewIterator(opts IterOpts) (Iterator, error)
	// Commit commits the transaction
	Commit(ctx context.Context) error
	// Rollback discards the transaction's writes
	Rollback(ctx context.Context) error
	// Close releases the transaction's resources
	Close(ctx context.Context)
}

// Iterator iterates over the keys of a transaction
type Iterator interface {
	// Valid returns false once the iterator is exhausted
	Valid() bool
	// Key returns the current key
	Key() []byte
	// Value returns the current value
	Value() ([]byte, error)
	// Next advances the iterator
	Next() error
	// Close releases the iterator
	Close()
}

// RunTx runs fn against a transaction opened with NewTx, committing update transactions on success
func RunTx(ctx context.Context, db DB, isUpdate bool, fn func(Tx) error) error {
	tx, err := db.NewTx(isUpdate)
	if err != nil {
		return err
	}
	defer tx.Close(ctx)
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil {
			return errors.Wrap(err, 0, "rollback failed: %s", rerr.Error())
		}
		return err
	}
	if !isUpdate {
		return nil
	}
	return tx.Commit(ctx)
}

// NextPrefix returns a prefix that is lexicographically larger than the input prefix
func NextPrefix(prefix []byte) []byte {
	buf := make([]byte, len(prefix))
	copy(buf, prefix)
	var i int
	for i = len(prefix) - 1; i >= 0; i-- {
		buf[i]++
		if buf[i] != 0 {
			break
		}
	}
	if i == -1 {
		buf = make([]byte, 0)
	}
	return buf
}
