package embedded

import (
	"context"
	"testing"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/kv"
	"github.com/autom8ter/docstore/kv/badger"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const books = "books"

func newEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := badger.Open("")
	require.NoError(t, err)
	e := New(db)
	t.Cleanup(func() {
		_ = e.Close(context.Background())
	})
	return e
}

func doc(t *testing.T, raw string) *model.Document {
	t.Helper()
	d, err := model.NewDocumentFromBytes([]byte(raw))
	require.NoError(t, err)
	return d
}

func seed(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.InsertMany(context.Background(), books, model.Documents{
		doc(t, `{"_id":"gatsby","title":"The Great Gatsby","author":"F. Scott Fitzgerald","genre":"Fiction","year":1925,"price":10.99,"tags":["classic","jazz"]}`),
		doc(t, `{"_id":"1984","title":"1984","author":"George Orwell","genre":"Dystopian","year":1949,"price":8.99,"tags":["classic"]}`),
		doc(t, `{"_id":"mockingbird","title":"To Kill a Mockingbird","author":"Harper Lee","genre":"Fiction","year":1960,"price":12.99}`),
		doc(t, `{"_id":"brave","title":"Brave New World","author":"Aldous Huxley","genre":"Dystopian","year":1932,"price":9.99}`),
	})
	require.NoError(t, err)
}

func find(t *testing.T, e *Engine, filter query.Filter, opts driver.FindOptions) model.Documents {
	t.Helper()
	c, err := e.Find(context.Background(), books, filter, opts)
	require.NoError(t, err)
	docs, err := c.All(context.Background())
	require.NoError(t, err)
	return docs
}

func TestEngine(t *testing.T) {
	ctx := context.Background()
	t.Run("insert and find in insertion order", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		docs := find(t, e, nil, driver.FindOptions{})
		assert.Equal(t, []string{"gatsby", "1984", "mockingbird", "brave"}, docs.IDs())
		assert.Equal(t, "George Orwell", docs[1].GetString("author"))
	})
	t.Run("insert is all or nothing", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.InsertMany(ctx, books, model.Documents{
			doc(t, `{"_id":"a","title":"A"}`),
			doc(t, `{"_id":"a","title":"A again"}`),
		})
		assert.True(t, errors.Is(err, errors.Validation))
		assert.Empty(t, find(t, e, nil, driver.FindOptions{}))

		seed(t, e)
		_, err = e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"gatsby"}`)})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("stored ids never change", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		err := e.db.Tx(true, func(tx kv.Tx) error {
			s, err := e.loadState(ctx, tx, books)
			if err != nil {
				return err
			}
			seq, old, err := getByID(ctx, tx, books, "gatsby")
			if err != nil {
				return err
			}
			updated := old.Clone()
			if err := updated.Set(model.IDField, map[string]any{"x": 1}); err != nil {
				return err
			}
			return putDocument(ctx, tx, books, s, seq, old, updated)
		})
		assert.True(t, errors.Is(err, errors.Validation), err)
		assert.Equal(t, []string{"gatsby", "1984", "mockingbird", "brave"}, find(t, e, nil, driver.FindOptions{}).IDs())
	})
	t.Run("ids must be strings", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":7}`)})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.InsertMany(ctx, books, model.Documents{doc(t, `{"title":"no id"}`)})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("invalid collection", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.InsertMany(ctx, "a/b", model.Documents{doc(t, `{"_id":"x"}`)})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.Find(ctx, "", nil, driver.FindOptions{})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("find options", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		projection, err := query.BuildProjection([]string{"title"}, []string{"_id"})
		require.NoError(t, err)
		docs := find(t, e, query.Lt("year", 1950), driver.FindOptions{
			Projection: projection,
			Sort:       query.Sort{query.Desc("price")},
			Skip:       1,
			Limit:      1,
		})
		require.Len(t, docs, 1)
		assert.Equal(t, `{"title":"Brave New World"}`, docs[0].String())

		docs = find(t, e, nil, driver.FindOptions{Skip: 1, Limit: 2})
		assert.Equal(t, []string{"1984", "mockingbird"}, docs.IDs())
		assert.Empty(t, find(t, e, nil, driver.FindOptions{Skip: 10, Sort: query.Sort{query.Asc("year")}}))
	})
	t.Run("update compounds", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		patch := query.Patch{"price": query.MultiplyBy(1.10)}
		for i := 0; i < 2; i++ {
			n, err := e.UpdateMany(ctx, books, query.Eq("genre", "Fiction"), patch)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		}
		docs := find(t, e, query.ByID("gatsby"), driver.FindOptions{})
		require.Len(t, docs, 1)
		assert.InDelta(t, 10.99*1.10*1.10, docs[0].GetFloat("price"), 1e-9)
		docs = find(t, e, query.ByID("1984"), driver.FindOptions{})
		assert.Equal(t, 8.99, docs[0].GetFloat("price"))
	})
	t.Run("update counts changed documents", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		n, err := e.UpdateMany(ctx, books, query.All(), query.Patch{"genre": query.SetValue("Fiction")})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = e.UpdateMany(ctx, books, query.Eq("genre", "Poetry"), query.Patch{"genre": query.SetValue("Prose")})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		_, err = e.UpdateMany(ctx, books, query.All(), query.Patch{"_id": query.SetValue("x")})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("delete skips documents without the field", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		_, err := e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"untitled","title":"Untitled"}`)})
		require.NoError(t, err)
		n, err := e.DeleteMany(ctx, books, query.Lt("year", 1950))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"mockingbird", "untitled"}, find(t, e, nil, driver.FindOptions{}).IDs())
	})
	t.Run("aggregate", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		results, err := e.Aggregate(ctx, books, pipeline.Pipeline{
			pipeline.Match(query.Gt("price", 9)),
			pipeline.Group("genre", map[string]pipeline.AggregateOp{
				"avg_price":  pipeline.Average("price"),
				"book_count": pipeline.Count(),
			}),
			pipeline.SortBy(query.Asc("_id")),
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Dystopian", results[0].GetString("_id"))
		assert.Equal(t, float64(1), results[0].GetFloat("book_count"))
		assert.Equal(t, "Fiction", results[1].GetString("_id"))
		assert.InDelta(t, 11.99, results[1].GetFloat("avg_price"), 1e-9)

		_, err = e.Aggregate(ctx, books, pipeline.Pipeline{pipeline.Group("", nil)})
		assert.True(t, errors.Is(err, errors.InvalidStage))
	})
	t.Run("collections", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		_, err := e.InsertMany(ctx, "authors", model.Documents{doc(t, `{"_id":"orwell"}`)})
		require.NoError(t, err)
		names, err := e.ListCollections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"authors", "books"}, names)

		_, err = e.CreateIndex(ctx, books, model.Index{Keys: []model.IndexKey{{Field: "genre", Direction: 1}}})
		require.NoError(t, err)
		require.NoError(t, e.DropCollection(ctx, books))
		names, err = e.ListCollections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"authors"}, names)
		assert.Empty(t, find(t, e, nil, driver.FindOptions{}))
		indexes, err := e.ListIndexes(ctx, books)
		require.NoError(t, err)
		assert.Len(t, indexes, 1)
	})
	t.Run("validator", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		require.NoError(t, e.SetValidator(ctx, books, []byte(`{
			"type": "object",
			"required": ["title"],
			"properties": {"price": {"type": "number", "minimum": 0}}
		}`)))
		_, err := e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"x","price":1}`)})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.UpdateMany(ctx, books, query.ByID("gatsby"), query.Patch{"price": query.SetValue(-1)})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"x","title":"X","price":1}`)})
		assert.NoError(t, err)

		assert.True(t, errors.Is(e.SetValidator(ctx, books, []byte(`{"type": 12}`)), errors.Validation))
		require.NoError(t, e.SetValidator(ctx, books, nil))
		_, err = e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"y"}`)})
		assert.NoError(t, err)
	})
	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newEngine(t).Ping(ctx))
	})
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()
	yearIndex := model.Index{Keys: []model.IndexKey{{Field: "year", Direction: 1}}}
	t.Run("create is idempotent", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		name, err := e.CreateIndex(ctx, books, yearIndex)
		require.NoError(t, err)
		assert.Equal(t, "year_1", name)
		again, err := e.CreateIndex(ctx, books, yearIndex)
		require.NoError(t, err)
		assert.Equal(t, name, again)
		indexes, err := e.ListIndexes(ctx, books)
		require.NoError(t, err)
		assert.Len(t, indexes, 2)
		assert.Contains(t, indexes, model.PrimaryIndexName)
		assert.True(t, indexes["year_1"].SameDefinition(yearIndex))
	})
	t.Run("name conflict", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.CreateIndex(ctx, books, model.Index{Name: "by_year", Keys: yearIndex.Keys})
		require.NoError(t, err)
		_, err = e.CreateIndex(ctx, books, model.Index{Name: "by_year", Keys: []model.IndexKey{{Field: "year", Direction: -1}}})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.CreateIndex(ctx, books, model.Index{Name: model.PrimaryIndexName, Keys: yearIndex.Keys})
		assert.True(t, errors.Is(err, errors.Validation))
		name, err := e.CreateIndex(ctx, books, model.PrimaryIndex())
		require.NoError(t, err)
		assert.Equal(t, model.PrimaryIndexName, name)
	})
	t.Run("invalid descriptor", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.CreateIndex(ctx, books, model.Index{})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.CreateIndex(ctx, books, model.Index{Keys: []model.IndexKey{{Field: "year", Direction: 0}}})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("drop", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		_, err := e.CreateIndex(ctx, books, yearIndex)
		require.NoError(t, err)
		assert.True(t, errors.Is(e.DropIndex(ctx, books, model.PrimaryIndexName), errors.Validation))
		assert.True(t, errors.Is(e.DropIndex(ctx, books, "missing"), errors.NotFound))
		require.NoError(t, e.DropIndex(ctx, books, "year_1"))
		indexes, err := e.ListIndexes(ctx, books)
		require.NoError(t, err)
		assert.Len(t, indexes, 1)
		assert.Equal(t, []string{"1984"}, find(t, e, query.Eq("year", 1949), driver.FindOptions{}).IDs())
	})
	t.Run("unique", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		_, err := e.CreateIndex(ctx, books, model.Index{Keys: []model.IndexKey{{Field: "genre", Direction: 1}}, Unique: true})
		assert.True(t, errors.Is(err, errors.Validation))

		_, err = e.CreateIndex(ctx, books, model.Index{Keys: []model.IndexKey{{Field: "title", Direction: 1}}, Unique: true})
		require.NoError(t, err)
		_, err = e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"copy","title":"1984"}`)})
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = e.UpdateMany(ctx, books, query.ByID("brave"), query.Patch{"title": query.SetValue("1984")})
		assert.True(t, errors.Is(err, errors.Validation))
		n, err := e.UpdateMany(ctx, books, query.ByID("brave"), query.Patch{"title": query.SetValue("Brave New World Revisited")})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"copy","title":"Brave New World"}`)})
		assert.NoError(t, err)
	})
	t.Run("indexed finds match scans", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		filters := []query.Filter{
			query.Eq("genre", "Fiction"),
			query.And{query.Eq("genre", "Dystopian"), query.Lt("year", 1940)},
			query.Eq("tags", "classic"),
			query.Eq("tags", "jazz"),
			query.Eq("tags", nil),
			query.Eq("genre", nil),
		}
		var scanned []model.Documents
		for _, f := range filters {
			scanned = append(scanned, find(t, e, f, driver.FindOptions{}))
		}
		for _, field := range []string{"genre", "tags"} {
			_, err := e.CreateIndex(ctx, books, model.Index{Keys: []model.IndexKey{{Field: field, Direction: 1}}})
			require.NoError(t, err)
		}
		_, err := e.InsertMany(ctx, books, model.Documents{doc(t, `{"_id":"untitled","tags":["classic"]}`)})
		require.NoError(t, err)
		_, err = e.DeleteMany(ctx, books, query.ByID("untitled"))
		require.NoError(t, err)
		for i, f := range filters {
			assert.Equal(t, scanned[i].IDs(), find(t, e, f, driver.FindOptions{}).IDs(), i)
		}
		assert.Equal(t, []string{"gatsby", "1984"}, scanned[2].IDs())
		assert.Equal(t, []string{"mockingbird", "brave"}, scanned[4].IDs())
	})
	t.Run("updates move index entries", func(t *testing.T) {
		e := newEngine(t)
		seed(t, e)
		_, err := e.CreateIndex(ctx, books, model.Index{Keys: []model.IndexKey{{Field: "genre", Direction: 1}}})
		require.NoError(t, err)
		_, err = e.UpdateMany(ctx, books, query.ByID("gatsby"), query.Patch{"genre": query.SetValue("Classic")})
		require.NoError(t, err)
		assert.Equal(t, []string{"mockingbird"}, find(t, e, query.Eq("genre", "Fiction"), driver.FindOptions{}).IDs())
		assert.Equal(t, []string{"gatsby"}, find(t, e, query.Eq("genre", "Classic"), driver.FindOptions{}).IDs())
	})
}

func TestOptimize(t *testing.T) {
	genre := model.Index{Name: "genre_1", Keys: []model.IndexKey{{Field: "genre", Direction: 1}}}
	genreYear := model.Index{Name: "genre_1_year_1", Keys: []model.IndexKey{{Field: "genre", Direction: 1}, {Field: "year", Direction: 1}}}
	indexes := []model.Index{genre, genreYear}

	p := optimize(indexes, query.ByID("gatsby"))
	assert.Equal(t, planID, p.kind)
	assert.Equal(t, "gatsby", p.id)

	p = optimize(indexes, query.Eq("genre", "Fiction"))
	assert.Equal(t, planIndex, p.kind)
	assert.Equal(t, "genre_1", p.index.Name)

	p = optimize(indexes, query.And{query.Eq("year", 1925), query.Eq("genre", "Fiction")})
	assert.Equal(t, planIndex, p.kind)
	assert.Equal(t, "genre_1_year_1", p.index.Name)
	assert.True(t, p.values[0].Equal(model.String("Fiction")))

	assert.Equal(t, planScan, optimize(indexes, query.Gt("genre", "A")).kind)
	assert.Equal(t, planScan, optimize(indexes, query.Or{query.Eq("genre", "Fiction")}).kind)
	assert.Equal(t, planScan, optimize(indexes, query.Eq("year", 1925)).kind)
	assert.Equal(t, planScan, optimize(nil, query.All()).kind)
}

func TestCursorRelease(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	seed(t, e)
	c, err := e.Find(ctx, books, nil, driver.FindOptions{})
	require.NoError(t, err)
	require.True(t, c.Next(ctx))
	assert.Equal(t, "gatsby", c.Document().ID())
	require.NoError(t, c.Close(ctx))
	assert.True(t, c.(*cursor).released)
	assert.False(t, c.Next(ctx))
	require.NoError(t, c.Close(ctx))

	c, err = e.Find(ctx, books, query.Eq("genre", "Fiction"), driver.FindOptions{})
	require.NoError(t, err)
	for c.Next(ctx) {
	}
	assert.NoError(t, c.Err())
	assert.True(t, c.(*cursor).released)
}

type staticIterator struct {
	values [][]byte
	pos    int
}

func (s *staticIterator) Valid() bool { return s.pos < len(s.values) }
func (s *staticIterator) Key() []byte { return []byte(formatSeq(uint64(s.pos))) }
func (s *staticIterator) Value() ([]byte, error) { return s.values[s.pos], nil }
func (s *staticIterator) Next() error { s.pos++; return nil }
func (s *staticIterator) Close() {}

func TestScanSkipsVanishedKeys(t *testing.T) {
	ctx := context.Background()
	src := &scanSource{iter: &staticIterator{values: [][]byte{
		nil,
		[]byte(`{"_id":"gatsby"}`),
		nil,
		[]byte(`{"_id":"brave"}`),
		nil,
	}}}
	var ids []string
	for {
		d, err := src.next(ctx)
		require.NoError(t, err)
		if d == nil {
			break
		}
		ids = append(ids, d.ID())
	}
	assert.Equal(t, []string{"gatsby", "brave"}, ids)
}

func TestIndexValues(t *testing.T) {
	index := model.Index{Keys: []model.IndexKey{{Field: "tags", Direction: 1}, {Field: "year", Direction: 1}}}
	tuples := indexValues(index, doc(t, `{"tags":["a","b","a"],"year":1925}`))
	assert.Len(t, tuples, 3)
	tuples = indexValues(index, doc(t, `{"title":"none"}`))
	require.Len(t, tuples, 1)
	assert.True(t, tuples[0][0].IsNull())
	assert.True(t, tuples[0][1].IsNull())
}
