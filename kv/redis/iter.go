package redis

import (
	"context"
)

type redisIterator struct {
	tx   *redisTx
	keys []string
	pos  int
}

func (r *redisIterator) Valid() bool {
	return r.pos < len(r.keys)
}

func (r *redisIterator) Key() []byte {
	return []byte(r.keys[r.pos])
}

// Value reads through the transaction so pending writes are observed
func (r *redisIterator) Value() ([]byte, error) {
	return r.tx.Get(context.Background(), []byte(r.keys[r.pos]))
}

func (r *redisIterator) Next() error {
	r.pos++
	return nil
}

func (r *redisIterator) Close() {
	r.keys = nil
}
