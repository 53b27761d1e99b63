package testutil

import (
	"context"
	"time"

	_ "embed"

	"github.com/autom8ter/docstore"
	"github.com/autom8ter/docstore/model"
	"github.com/brianvoe/gofakeit/v6"
)

// BookCollection is the collection the fixtures are written to
const BookCollection = "books"

var (
	//go:embed testdata/book.json
	bookSchema string
)

// BookSchema returns the json schema the fixture books satisfy
func BookSchema() []byte {
	return []byte(bookSchema)
}

// Books returns the four fixture books. Each call returns fresh documents without identifiers.
func Books() model.Documents {
	return model.Documents{
		model.MustDocumentFrom(map[string]any{
			"title":  "The Great Gatsby",
			"author": "F. Scott Fitzgerald",
			"year":   1925,
			"genre":  "Fiction",
			"price":  9.99,
		}),
		model.MustDocumentFrom(map[string]any{
			"title":  "1984",
			"author": "George Orwell",
			"year":   1949,
			"genre":  "Dystopian",
			"price":  12.50,
		}),
		model.MustDocumentFrom(map[string]any{
			"title":  "To Kill a Mockingbird",
			"author": "Harper Lee",
			"year":   1960,
			"genre":  "Fiction",
			"price":  10.75,
		}),
		model.MustDocumentFrom(map[string]any{
			"title":  "Brave New World",
			"author": "Aldous Huxley",
			"year":   1932,
			"genre":  "Dystopian",
			"price":  11.25,
		}),
	}
}

// NewBook returns a random book
func NewBook() *model.Document {
	return model.MustDocumentFrom(map[string]any{
		"_id":    gofakeit.UUID(),
		"title":  gofakeit.LoremIpsumSentence(3),
		"author": gofakeit.Name(),
		"year":   gofakeit.IntRange(1800, 2022),
		"genre":  gofakeit.RandomString([]string{"Fiction", "Dystopian", "Fantasy", "Mystery", "Romance"}),
		"price":  gofakeit.Price(1, 100),
		"contact": map[string]any{
			"email": gofakeit.Email(),
		},
		"published": gofakeit.DateRange(time.Now().Truncate(7200*time.Hour), time.Now()),
	})
}

// TestClient opens an in memory client, passes it to fn and closes it
func TestClient(fn func(ctx context.Context, client *docstore.Client)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := docstore.Connect(ctx, "mem://", docstore.WithLogger(docstore.NewNopLogger()))
	if err != nil {
		return err
	}
	defer client.Close(ctx)
	fn(ctx, client)
	return nil
}
