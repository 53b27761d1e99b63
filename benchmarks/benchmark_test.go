package benchmarks

import (
	"context"
	"testing"

	"github.com/autom8ter/docstore"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"github.com/autom8ter/docstore/testutil"
	"github.com/stretchr/testify/assert"
)

func BenchmarkInsert(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestClient(func(ctx context.Context, client *docstore.Client) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := client.InsertOne(ctx, testutil.BookCollection, testutil.NewBook())
			assert.NoError(b, err)
		}
	}))
}

func BenchmarkFindByID(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestClient(func(ctx context.Context, client *docstore.Client) {
		ids, err := seedBooks(ctx, client, 1000)
		assert.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := client.FindOne(ctx, testutil.BookCollection, query.ByID(ids[i%len(ids)]))
			assert.NoError(b, err)
		}
	}))
}

func BenchmarkFindIndexed(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestClient(func(ctx context.Context, client *docstore.Client) {
		_, err := seedBooks(ctx, client, 1000)
		assert.NoError(b, err)
		_, err = client.CreateIndex(ctx, testutil.BookCollection, model.Index{Keys: []model.IndexKey{{Field: "genre", Direction: 1}}})
		assert.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := client.FindAll(ctx, testutil.BookCollection, query.Eq("genre", "Fiction"))
			assert.NoError(b, err)
		}
	}))
}

func BenchmarkFindScan(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestClient(func(ctx context.Context, client *docstore.Client) {
		_, err := seedBooks(ctx, client, 1000)
		assert.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := client.FindAll(ctx, testutil.BookCollection, query.Gt("price", 50), docstore.WithSort(query.Sort{query.Desc("price")}))
			assert.NoError(b, err)
		}
	}))
}

func BenchmarkAggregate(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestClient(func(ctx context.Context, client *docstore.Client) {
		_, err := seedBooks(ctx, client, 1000)
		assert.NoError(b, err)
		p := pipeline.Pipeline{
			pipeline.Group("genre", map[string]pipeline.AggregateOp{
				"avg_price":  pipeline.Average("price"),
				"book_count": pipeline.Count(),
			}),
			pipeline.SortBy(query.Desc("avg_price")),
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := client.Aggregate(ctx, testutil.BookCollection, p)
			assert.NoError(b, err)
		}
	}))
}
