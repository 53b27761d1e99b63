package pipeline

import (
	"encoding/json"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/query"
	"github.com/autom8ter/docstore/util"
)

// AggregateFunc is an accumulator applied to each group
type AggregateFunc string

const (
	// FuncAvg averages the numeric values of a field
	FuncAvg AggregateFunc = "$avg"
	// FuncSum sums the numeric values of a field
	FuncSum AggregateFunc = "$sum"
	// FuncCount counts the documents in the group
	FuncCount AggregateFunc = "$count"
	// FuncPush collects the values of a field into a list
	FuncPush AggregateFunc = "$push"
	// FuncMin selects the lowest value of a field
	FuncMin AggregateFunc = "$min"
	// FuncMax selects the highest value of a field
	FuncMax AggregateFunc = "$max"
)

// RequiresField returns true if the function operates on a field
func (f AggregateFunc) RequiresField() bool {
	return f != FuncCount
}

// AggregateOp is an accumulator over one field of the documents in a group
type AggregateOp struct {
	Func  AggregateFunc `json:"op"`
	Field string        `json:"field,omitempty"`
}

// Average averages the numeric values of the field
func Average(field string) AggregateOp { return AggregateOp{Func: FuncAvg, Field: field} }

// Sum sums the numeric values of the field
func Sum(field string) AggregateOp { return AggregateOp{Func: FuncSum, Field: field} }

// Count counts the documents in the group
func Count() AggregateOp { return AggregateOp{Func: FuncCount} }

// CollectList collects the values of the field
func CollectList(field string) AggregateOp { return AggregateOp{Func: FuncPush, Field: field} }

// Min selects the lowest value of the field
func Min(field string) AggregateOp { return AggregateOp{Func: FuncMin, Field: field} }

// Max selects the highest value of the field
func Max(field string) AggregateOp { return AggregateOp{Func: FuncMax, Field: field} }

// Validate returns an InvalidStage error if the op has no function or is missing its field
func (a AggregateOp) Validate() error {
	switch a.Func {
	case FuncAvg, FuncSum, FuncCount, FuncPush, FuncMin, FuncMax:
	case "":
		return errors.New(errors.InvalidStage, "aggregate has no operator")
	default:
		return errors.New(errors.InvalidStage, "unsupported aggregate operator: '%s'", a.Func)
	}
	if a.Func.RequiresField() && a.Field == "" {
		return errors.New(errors.InvalidStage, "aggregate '%s' requires a field", a.Func)
	}
	return nil
}

// Stage is one step of a pipeline. Implementations are MatchStage, GroupStage, SortStage, LimitStage and SkipStage.
type Stage interface {
	// Validate returns an InvalidStage error if the stage is malformed
	Validate() error
	isStage()
}

// MatchStage keeps the documents matching the filter
type MatchStage struct {
	Filter query.Filter
}

// GroupStage partitions documents by the value of Key and computes the aggregates for each partition.
// Each output document holds the key value in _id and one field per aggregate.
type GroupStage struct {
	Key        string
	Aggregates map[string]AggregateOp
}

// SortStage orders the documents
type SortStage struct {
	Sort query.Sort
}

// LimitStage keeps the first N documents
type LimitStage struct {
	N int
}

// SkipStage drops the first N documents
type SkipStage struct {
	N int
}

func (MatchStage) isStage() {}
func (GroupStage) isStage() {}
func (SortStage) isStage()  {}
func (LimitStage) isStage() {}
func (SkipStage) isStage()  {}

// Match returns a match stage
func Match(filter query.Filter) Stage { return MatchStage{Filter: filter} }

// Group returns a group stage
func Group(key string, aggregates map[string]AggregateOp) Stage {
	return GroupStage{Key: key, Aggregates: aggregates}
}

// SortBy returns a sort stage
func SortBy(fields ...query.SortField) Stage { return SortStage{Sort: fields} }

// Limit returns a limit stage
func Limit(n int) Stage { return LimitStage{N: n} }

// Skip returns a skip stage
func Skip(n int) Stage { return SkipStage{N: n} }

func (m MatchStage) Validate() error {
	if m.Filter == nil {
		return errors.New(errors.InvalidStage, "match stage has no filter")
	}
	return nil
}

func (g GroupStage) Validate() error {
	if g.Key == "" {
		return errors.New(errors.InvalidStage, "group stage has an empty key field")
	}
	for out, op := range g.Aggregates {
		if out == "" {
			return errors.New(errors.InvalidStage, "group stage has an empty output field")
		}
		if out == model.IDField {
			return errors.New(errors.InvalidStage, "group stage output field may not be '%s'", model.IDField)
		}
		if err := op.Validate(); err != nil {
			return errors.Wrap(err, 0, "output field '%s'", out)
		}
	}
	return nil
}

func (s SortStage) Validate() error {
	if len(s.Sort) == 0 {
		return errors.New(errors.InvalidStage, "sort stage has no fields")
	}
	if _, err := query.BuildSort(s.Sort...); err != nil {
		return errors.Wrap(err, errors.InvalidStage, "sort stage")
	}
	return nil
}

func (l LimitStage) Validate() error {
	if l.N < 0 {
		return errors.New(errors.InvalidStage, "limit stage must not be negative: %d", l.N)
	}
	return nil
}

func (s SkipStage) Validate() error {
	if s.N < 0 {
		return errors.New(errors.InvalidStage, "skip stage must not be negative: %d", s.N)
	}
	return nil
}

// Pipeline is an ordered list of stages. Each stage consumes the output of the previous one.
type Pipeline []Stage

// Validate validates every stage
func (p Pipeline) Validate() error {
	for i, s := range p {
		if s == nil {
			return errors.New(errors.InvalidStage, "stage %d is empty", i)
		}
		if err := s.Validate(); err != nil {
			return errors.Wrap(err, 0, "stage %d", i)
		}
	}
	return nil
}

// GroupSpec is the json form of a group stage
type GroupSpec struct {
	Key        string                 `json:"key"`
	Aggregates map[string]AggregateOp `json:"aggregates"`
}

// StageSpec is the json form of a stage. Exactly one field must be set.
type StageSpec struct {
	Match *query.Expr       `json:"$match,omitempty"`
	Group *GroupSpec        `json:"$group,omitempty"`
	Sort  []query.SortField `json:"$sort,omitempty"`
	Limit *int              `json:"$limit,omitempty"`
	Skip  *int              `json:"$skip,omitempty"`
}

// Parse decodes a json or yaml list of stage specs into a validated pipeline, ex:
//
//	[{"$match": {"op": "eq", "field": "genre", "value": "Fiction"}},
//	 {"$group": {"key": "genre", "aggregates": {"avg_price": {"op": "$avg", "field": "price"}}}},
//	 {"$sort": [{"field": "avg_price", "direction": "desc"}]}]
func Parse(content []byte) (Pipeline, error) {
	var specs []StageSpec
	if err := util.UnmarshalYAML(content, &specs); err != nil {
		return nil, errors.Wrap(err, errors.InvalidStage, "invalid pipeline")
	}
	var p Pipeline
	for i, spec := range specs {
		stage, err := spec.stage()
		if err != nil {
			return nil, errors.Wrap(err, 0, "stage %d", i)
		}
		p = append(p, stage)
	}
	return p, p.Validate()
}

func (s StageSpec) stage() (Stage, error) {
	var stages []Stage
	if s.Match != nil {
		f, err := query.BuildFilter(*s.Match)
		if err != nil {
			return nil, err
		}
		stages = append(stages, Match(f))
	}
	if s.Group != nil {
		stages = append(stages, Group(s.Group.Key, s.Group.Aggregates))
	}
	if s.Sort != nil {
		stages = append(stages, SortBy(s.Sort...))
	}
	if s.Limit != nil {
		stages = append(stages, Limit(*s.Limit))
	}
	if s.Skip != nil {
		stages = append(stages, Skip(*s.Skip))
	}
	if len(stages) != 1 {
		bits, _ := json.Marshal(s)
		return nil, errors.New(errors.InvalidStage, "a stage must set exactly one operator: %s", string(bits))
	}
	return stages[0], nil
}
