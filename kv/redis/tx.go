package redis

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/go-redis/redis/v9"
)

const scanCount = 1000

type write struct {
	value   []byte
	deleted bool
}

// redisTx buffers writes in memory and applies them atomically on commit with MULTI/EXEC
type redisTx struct {
	db       *redisKV
	isUpdate bool
	writes   map[string]write
}

func (t *redisTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, nil
		}
		return append([]byte{}, w.value...), nil
	}
	val, err := t.db.client.Get(ctx, string(key)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, wrapErr(err, "redis: failed to get %s", string(key))
	}
	return val, nil
}

func (t *redisTx) Set(ctx context.Context, key, value []byte) error {
	if !t.isUpdate {
		return errors.New(errors.Internal, "redis: writes forbidden in read-only transaction")
	}
	t.writes[string(key)] = write{value: append([]byte{}, value...)}
	return nil
}

func (t *redisTx) Delete(ctx context.Context, key []byte) error {
	if !t.isUpdate {
		return errors.New(errors.Internal, "redis: writes forbidden in read-only transaction")
	}
	t.writes[string(key)] = write{deleted: true}
	return nil
}

// NewIterator scans the keyspace for the prefix and merges the transaction's pending writes.
// Keys are sorted client side since SCAN returns them unordered.
func (t *redisTx) NewIterator(opts kv.IterOpts) (kv.Iterator, error) {
	ctx := context.Background()
	keys := map[string]struct{}{}
	match := escapeGlob(string(opts.Prefix)) + "*"
	var cursor uint64
	for {
		page, next, err := t.db.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, wrapErr(err, "redis: failed to scan %s", match)
		}
		for _, k := range page {
			keys[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	for k, w := range t.writes {
		if !strings.HasPrefix(k, string(opts.Prefix)) {
			continue
		}
		if w.deleted {
			delete(keys, k)
		} else {
			keys[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	if opts.Reverse {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}
	return &redisIterator{tx: t, keys: sorted}, nil
}

func (t *redisTx) Commit(ctx context.Context) error {
	if !t.isUpdate || len(t.writes) == 0 {
		return nil
	}
	_, err := t.db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, w := range t.writes {
			if w.deleted {
				pipe.Del(ctx, k)
			} else {
				pipe.Set(ctx, k, w.value, 0)
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr(err, "redis: failed to commit transaction")
	}
	t.writes = map[string]write{}
	return nil
}

func (t *redisTx) Rollback(ctx context.Context) error {
	t.writes = map[string]write{}
	return nil
}

func (t *redisTx) Close(ctx context.Context) {
	t.writes = map[string]write{}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
