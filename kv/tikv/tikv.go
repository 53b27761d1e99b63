package tikv

import (
	"context"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/kv/registry"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tikv/client-go/v2/txnkv"
)

func init() {
	registry.Register("tikv", func(ctx context.Context, params map[string]interface{}) (kv.DB, error) {
		addrs := cast.ToString(params["pd_addr"])
		if addrs == "" {
			addrs = cast.ToString(params["host"])
		}
		if addrs == "" {
			return nil, errors.New(errors.Connection, "tikv: 'pd_addr' is a required parameter")
		}
		return Open(strings.Split(addrs, ","))
	})
}

type tikvKV struct {
	db *txnkv.Client
}

// Open connects to the placement driver addresses
func Open(pdAddrs []string) (kv.DB, error) {
	pdAddrs = lo.Filter(pdAddrs, func(addr string, _ int) bool {
		return strings.TrimSpace(addr) != ""
	})
	if len(pdAddrs) == 0 {
		return nil, errors.New(errors.Connection, "tikv: empty pd address")
	}
	client, err := txnkv.NewClient(pdAddrs)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "tikv: failed to connect to %s", strings.Join(pdAddrs, ","))
	}
	return &tikvKV{
		db: client,
	}, nil
}

func (b *tikvKV) Tx(isUpdate bool, fn func(kv.Tx) error) error {
	return kv.RunTx(context.Background(), b, isUpdate, fn)
}

func (b *tikvKV) NewTx(isUpdate bool) (kv.Tx, error) {
	tx, err := b.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "tikv: failed to begin transaction")
	}
	return &tikvTx{txn: tx, db: b, readOnly: !isUpdate}, nil
}

func (b *tikvKV) Close(ctx context.Context) error {
	return errors.Wrap(b.db.Close(), errors.Internal, "tikv: failed to close")
}
