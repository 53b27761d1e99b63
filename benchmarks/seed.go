package benchmarks

import (
	"context"

	"github.com/autom8ter/docstore"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/testutil"
)

func seedBooks(ctx context.Context, client *docstore.Client, n int) ([]string, error) {
	docs := make(model.Documents, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, testutil.NewBook())
	}
	return client.InsertMany(ctx, testutil.BookCollection, docs)
}
