package model

import (
	"fmt"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/util"
	"github.com/samber/lo"
)

// PrimaryIndexName is the name of the implicit index over _id
const PrimaryIndexName = "_id_"

// IndexKey is one (field, direction) pair of an index
type IndexKey struct {
	// Field is the indexed field in dot notation
	Field string `json:"field" validate:"required"`
	// Direction is 1 for ascending and -1 for descending
	Direction int `json:"direction" validate:"oneof=1 -1"`
}

// Index is a declarative index over one or more fields of a collection
type Index struct {
	// Name is the index's unique name in the collection. A name is derived from the keys when empty.
	Name string `json:"name,omitempty"`
	// Keys to index - order matters
	Keys []IndexKey `json:"keys" validate:"required,min=1,dive"`
	// Unique indicates that it's a unique index which will enforce uniqueness
	Unique bool `json:"unique"`
}

// PrimaryIndex returns the implicit index over _id
func PrimaryIndex() Index {
	return Index{
		Name:   PrimaryIndexName,
		Keys:   []IndexKey{{Field: IDField, Direction: 1}},
		Unique: true,
	}
}

// Validate validates the index
func (i Index) Validate() error {
	if err := util.ValidateStruct(&i); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid index")
	}
	fields := i.Fields()
	if len(lo.Uniq(fields)) != len(fields) {
		return errors.New(errors.Validation, "invalid index: duplicate fields %v", fields)
	}
	return nil
}

// Fields returns the indexed fields in order
func (i Index) Fields() []string {
	return lo.Map(i.Keys, func(k IndexKey, _ int) string {
		return k.Field
	})
}

// DefaultName derives the index name from its keys, ex: genre_1_price_-1
func (i Index) DefaultName() string {
	var parts []string
	for _, k := range i.Keys {
		parts = append(parts, fmt.Sprintf("%s_%d", k.Field, k.Direction))
	}
	return strings.Join(parts, "_")
}

// Named returns the index with its name set. An empty name is derived from the keys.
func (i Index) Named() Index {
	if i.Name == "" {
		i.Name = i.DefaultName()
	}
	return i
}

// SameDefinition returns true if both indexes have identical keys, directions and uniqueness
func (i Index) SameDefinition(other Index) bool {
	if i.Unique != other.Unique || len(i.Keys) != len(other.Keys) {
		return false
	}
	for idx, k := range i.Keys {
		if other.Keys[idx] != k {
			return false
		}
	}
	return true
}

// IsPrimary returns true if the index is the implicit _id index
func (i Index) IsPrimary() bool {
	return i.Name == PrimaryIndexName
}
