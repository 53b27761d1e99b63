package redis

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/kv/registry"
	"github.com/go-redis/redis/v9"
	"github.com/spf13/cast"
)

func init() {
	opener := func(ctx context.Context, params map[string]interface{}) (kv.DB, error) {
		addr := cast.ToString(params["host"])
		if addr == "" {
			addr = "localhost:6379"
		}
		opts := &redis.Options{
			Addr:     addr,
			Username: cast.ToString(params["username"]),
			Password: cast.ToString(params["password"]),
			DB:       cast.ToInt(strings.TrimPrefix(cast.ToString(params["path"]), "/")),
		}
		if cast.ToString(params["scheme"]) == "rediss" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return Open(ctx, opts)
	}
	registry.Register("redis", opener)
	registry.Register("rediss", opener)
}

type redisKV struct {
	client *redis.Client
}

// Open connects to redis and verifies the connection
func Open(ctx context.Context, opts *redis.Options) (kv.DB, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.Connection, "redis: failed to connect to %s", opts.Addr)
	}
	return &redisKV{client: client}, nil
}

func (r *redisKV) Tx(isUpdate bool, fn func(kv.Tx) error) error {
	return kv.RunTx(context.Background(), r, isUpdate, fn)
}

func (r *redisKV) NewTx(isUpdate bool) (kv.Tx, error) {
	return &redisTx{
		db:       r,
		isUpdate: isUpdate,
		writes:   map[string]write{},
	}, nil
}

func (r *redisKV) Close(ctx context.Context) error {
	return errors.Wrap(r.client.Close(), errors.Internal, "redis: failed to close")
}

func wrapErr(err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "i/o timeout") {
		return errors.Wrap(err, errors.Connection, msg, args...)
	}
	return errors.Wrap(err, errors.Internal, msg, args...)
}
