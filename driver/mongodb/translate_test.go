package mongodb

import (
	"testing"
	"time"

	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBuildFilter(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		assert.Equal(t, bson.D{}, buildFilter(query.All()))
		assert.Equal(t, bson.D{}, buildFilter(nil))
	})
	t.Run("compare", func(t *testing.T) {
		assert.Equal(t, bson.D{{Key: "year", Value: bson.D{{Key: "$lt", Value: float64(1950)}}}}, buildFilter(query.Lt("year", 1950)))
	})
	t.Run("logical", func(t *testing.T) {
		f := query.And{
			query.Eq("genre", "Fiction"),
			query.Or{query.Gte("price", 10), query.Not{Filter: query.Eq("title", "1984")}},
		}
		expected := bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "genre", Value: bson.D{{Key: "$eq", Value: "Fiction"}}}},
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "price", Value: bson.D{{Key: "$gte", Value: float64(10)}}}},
				bson.D{{Key: "$nor", Value: bson.A{
					bson.D{{Key: "title", Value: bson.D{{Key: "$eq", Value: "1984"}}}},
				}}},
			}}},
		}}}
		assert.Equal(t, expected, buildFilter(f))
	})
	t.Run("values", func(t *testing.T) {
		ts := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
		assert.Equal(t, primitive.NewDateTimeFromTime(ts), toBSON(model.Date(ts)))
		assert.Nil(t, toBSON(model.Null()))
		assert.Equal(t, true, toBSON(model.Bool(true)))
		assert.Equal(t, bson.A{"a", float64(1)}, toBSON(model.Array(model.String("a"), model.Number(1))))
		assert.Equal(t, bson.D{{Key: "a", Value: float64(1)}, {Key: "b", Value: "x"}}, toBSON(model.Object(map[string]model.Value{
			"b": model.String("x"),
			"a": model.Number(1),
		})))
	})
}

func TestBuildOptions(t *testing.T) {
	t.Run("projection", func(t *testing.T) {
		assert.Nil(t, buildProjection(query.Projection{}))
		p, err := query.BuildProjection([]string{"title"}, nil)
		require.NoError(t, err)
		assert.Equal(t, bson.D{{Key: "title", Value: 1}}, buildProjection(p))
	})
	t.Run("sort", func(t *testing.T) {
		assert.Equal(t, bson.D{{Key: "genre", Value: 1}, {Key: "price", Value: -1}}, buildSort(query.Sort{query.Asc("genre"), query.Desc("price")}))
	})
	t.Run("index keys", func(t *testing.T) {
		index := model.Index{Keys: []model.IndexKey{{Field: "genre", Direction: 1}, {Field: "year", Direction: -1}}}
		assert.Equal(t, bson.D{{Key: "genre", Value: 1}, {Key: "year", Value: -1}}, buildIndexKeys(index))
	})
}

func TestBuildUpdate(t *testing.T) {
	patch := query.Patch{
		"price":  query.MultiplyBy(1.1),
		"stock":  query.IncrementBy(-1),
		"genre":  query.SetValue("Classic"),
		"author": query.SetValue("unknown"),
		"draft":  query.Unset(),
	}
	expected := bson.D{
		{Key: "$set", Value: bson.D{{Key: "author", Value: "unknown"}, {Key: "genre", Value: "Classic"}}},
		{Key: "$mul", Value: bson.D{{Key: "price", Value: 1.1}}},
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: float64(-1)}}},
		{Key: "$unset", Value: bson.D{{Key: "draft", Value: ""}}},
	}
	assert.Equal(t, expected, buildUpdate(patch))
}

func TestBuildPipeline(t *testing.T) {
	p := pipeline.Pipeline{
		pipeline.Match(query.Gt("year", 1900)),
		pipeline.Group("genre", map[string]pipeline.AggregateOp{
			"total": pipeline.Sum("price"),
			"books": pipeline.Count(),
			"avg":   pipeline.Average("price"),
		}),
		pipeline.SortBy(query.Desc("total")),
		pipeline.Skip(1),
		pipeline.Limit(2),
	}
	stages, err := buildPipeline(p)
	require.NoError(t, err)
	expected := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "year", Value: bson.D{{Key: "$gt", Value: float64(1900)}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$genre"},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "books", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
		{{Key: "$skip", Value: int64(1)}},
		{{Key: "$limit", Value: int64(2)}},
	}
	assert.Equal(t, expected, stages)
}

func TestConvertDocuments(t *testing.T) {
	doc := model.MustDocumentFrom(map[string]any{
		"_id":   "gatsby",
		"title": "The Great Gatsby",
		"price": 10.99,
		"tags":  []any{"classic", "jazz"},
	})
	d, err := toBSONDocument(doc)
	require.NoError(t, err)
	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	back, err := fromBSON(raw)
	require.NoError(t, err)
	assert.True(t, doc.Equal(back), back.String())

	_, err = toBSONDocument(&model.Document{})
	assert.Error(t, err)
}

func TestIndexSpec(t *testing.T) {
	spec := indexSpec{Name: "genre_1", Key: bson.D{{Key: "genre", Value: int32(1)}}}
	assert.Equal(t, model.Index{Name: "genre_1", Keys: []model.IndexKey{{Field: "genre", Direction: 1}}}, spec.index())
	primary := indexSpec{Name: model.PrimaryIndexName, Key: bson.D{{Key: "_id", Value: int32(1)}}}
	assert.True(t, primary.index().SameDefinition(model.PrimaryIndex()))
}
