package query

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/spf13/cast"
)

// Direction is a sort direction
type Direction int

const (
	// Ascending sorts from lowest to highest
	Ascending Direction = 1
	// Descending sorts from highest to lowest
	Descending Direction = -1
)

// Valid returns true for Ascending and Descending
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// UnmarshalJSON accepts 1, -1, "asc", "ascending", "desc" and "descending"
func (d *Direction) UnmarshalJSON(bits []byte) error {
	var raw any
	if err := json.Unmarshal(bits, &raw); err != nil {
		return errors.Wrap(err, errors.InvalidExpression, "invalid sort direction")
	}
	if s, ok := raw.(string); ok {
		switch strings.ToLower(s) {
		case "asc", "ascending":
			*d = Ascending
			return nil
		case "desc", "descending":
			*d = Descending
			return nil
		}
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return errors.New(errors.InvalidExpression, "invalid sort direction: %s", string(bits))
	}
	*d = Direction(n)
	return nil
}

// SortField orders results by a field and a direction
type SortField struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Asc returns an ascending sort field
func Asc(field string) SortField {
	return SortField{Field: field, Direction: Ascending}
}

// Desc returns a descending sort field
func Desc(field string) SortField {
	return SortField{Field: field, Direction: Descending}
}

// Sort is an ordered list of sort fields applied lexicographically
type Sort []SortField

// BuildSort validates the sort fields. Later duplicates of a field are ignored.
func BuildSort(fields ...SortField) (Sort, error) {
	var (
		seen = map[string]struct{}{}
		out  Sort
	)
	for _, f := range fields {
		if f.Field == "" {
			return nil, errors.New(errors.InvalidExpression, "sort has an empty field name")
		}
		if !f.Direction.Valid() {
			return nil, errors.New(errors.InvalidExpression, "invalid direction %d for sort field '%s'", f.Direction, f.Field)
		}
		if _, ok := seen[f.Field]; ok {
			continue
		}
		seen[f.Field] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// Compare returns -1, 0 or 1. Absent fields sort as null.
func (s Sort) Compare(a, b *model.Document) int {
	for _, f := range s {
		av, _ := a.Lookup(f.Field)
		bv, _ := b.Lookup(f.Field)
		if c := model.Compare(av, bv); c != 0 {
			return c * int(f.Direction)
		}
	}
	return 0
}

// Less reports whether a sorts before b
func (s Sort) Less(a, b *model.Document) bool {
	return s.Compare(a, b) < 0
}

// Apply sorts the documents in place. Ties keep their relative order.
func (s Sort) Apply(docs model.Documents) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return s.Less(docs[i], docs[j])
	})
}
