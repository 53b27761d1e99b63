package query

import (
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/samber/lo"
)

// Op is an operator in a filter expression
type Op string

const (
	// OpEq matches on equality
	OpEq Op = "eq"
	// OpGt matches on greater than
	OpGt Op = "gt"
	// OpGte matches on greater than or equal to
	OpGte Op = "gte"
	// OpLt matches on less than
	OpLt Op = "lt"
	// OpLte matches on less than or equal to
	OpLte Op = "lte"
	// OpAnd matches when every child matches
	OpAnd Op = "and"
	// OpOr matches when any child matches
	OpOr Op = "or"
	// OpNot matches when its single child does not match
	OpNot Op = "not"
)

var comparisonOps = []Op{OpEq, OpGt, OpGte, OpLt, OpLte}

var logicalOps = []Op{OpAnd, OpOr, OpNot}

// IsComparison returns true for leaf operators
func (o Op) IsComparison() bool {
	return lo.Contains(comparisonOps, o)
}

// IsLogical returns true for combinators
func (o Op) IsLogical() bool {
	return lo.Contains(logicalOps, o)
}

// Expr is an unvalidated filter expression tree, typically decoded from json or yaml.
// Leaves set Field, Op and Value. Combinators set Op and Children.
type Expr struct {
	Op       Op     `json:"op"`
	Field    string `json:"field,omitempty"`
	Value    any    `json:"value,omitempty"`
	Children []Expr `json:"children,omitempty"`
}

// Shape declares the expected value kind of known fields
type Shape map[string]model.Kind

// BuildOption configures BuildFilter
type BuildOption func(o *buildOptions)

type buildOptions struct {
	shape Shape
}

// WithShape makes BuildFilter reject literals whose kind differs from the field's declared kind
func WithShape(shape Shape) BuildOption {
	return func(o *buildOptions) {
		o.shape = shape
	}
}

// Filter is a validated boolean predicate over documents. Implementations are Compare, And, Or and Not.
type Filter interface {
	// Match returns true if the document satisfies the filter
	Match(doc *model.Document) bool
	isFilter()
}

// Compare compares a document field against a literal value
type Compare struct {
	Field string
	Op    Op
	Value model.Value
}

// And matches when all of its filters match. An empty And matches everything.
type And []Filter

// Or matches when any of its filters match
type Or []Filter

// Not inverts a filter
type Not struct {
	Filter Filter
}

func (Compare) isFilter() {}
func (And) isFilter()     {}
func (Or) isFilter()      {}
func (Not) isFilter()     {}

// All returns a filter matching every document
func All() Filter {
	return And{}
}

// Eq returns a filter matching documents whose field equals the value
func Eq(field string, value any) Filter {
	return Compare{Field: field, Op: OpEq, Value: model.MustValueOf(value)}
}

// Gt returns a filter matching documents whose field is greater than the value
func Gt(field string, value any) Filter {
	return Compare{Field: field, Op: OpGt, Value: model.MustValueOf(value)}
}

// Gte returns a filter matching documents whose field is greater than or equal to the value
func Gte(field string, value any) Filter {
	return Compare{Field: field, Op: OpGte, Value: model.MustValueOf(value)}
}

// Lt returns a filter matching documents whose field is less than the value
func Lt(field string, value any) Filter {
	return Compare{Field: field, Op: OpLt, Value: model.MustValueOf(value)}
}

// Lte returns a filter matching documents whose field is less than or equal to the value
func Lte(field string, value any) Filter {
	return Compare{Field: field, Op: OpLte, Value: model.MustValueOf(value)}
}

// ByID returns a filter matching the document with the given identifier
func ByID(id string) Filter {
	return Eq(model.IDField, id)
}

// BuildFilter validates the expression tree and converts it into a Filter
func BuildFilter(expr Expr, opts ...BuildOption) (Filter, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return build(expr, o)
}

func build(expr Expr, o *buildOptions) (Filter, error) {
	switch {
	case expr.Op.IsComparison():
		if len(expr.Children) > 0 {
			return nil, errors.New(errors.InvalidExpression, "comparison '%s' on field '%s' may not have children", expr.Op, expr.Field)
		}
		if expr.Field == "" {
			return nil, errors.New(errors.InvalidExpression, "comparison '%s' has an empty field", expr.Op)
		}
		value, err := model.ValueOf(expr.Value)
		if err != nil {
			return nil, errors.Wrap(err, errors.InvalidExpression, "field '%s'", expr.Field)
		}
		if expr.Op != OpEq && !value.Kind().Ordered() {
			return nil, errors.New(errors.InvalidExpression, "operator '%s' does not support %s operands (field '%s')", expr.Op, value.Kind(), expr.Field)
		}
		if declared, ok := o.shape[expr.Field]; ok {
			if value.Kind() != declared && !(expr.Op == OpEq && value.IsNull()) {
				return nil, errors.New(errors.InvalidExpression, "field '%s' is a %s, it cannot be compared to a %s", expr.Field, declared, value.Kind())
			}
		}
		return Compare{Field: expr.Field, Op: expr.Op, Value: value}, nil
	case expr.Op.IsLogical():
		if expr.Field != "" {
			return nil, errors.New(errors.InvalidExpression, "combinator '%s' may not reference a field", expr.Op)
		}
		if len(expr.Children) == 0 {
			return nil, errors.New(errors.InvalidExpression, "combinator '%s' requires at least one child", expr.Op)
		}
		if expr.Op == OpNot && len(expr.Children) != 1 {
			return nil, errors.New(errors.InvalidExpression, "combinator 'not' requires exactly one child")
		}
		children := make([]Filter, 0, len(expr.Children))
		for _, child := range expr.Children {
			f, err := build(child, o)
			if err != nil {
				return nil, err
			}
			children = append(children, f)
		}
		switch expr.Op {
		case OpAnd:
			return And(children), nil
		case OpOr:
			return Or(children), nil
		default:
			return Not{Filter: children[0]}, nil
		}
	default:
		return nil, errors.New(errors.InvalidExpression, "unknown operator: '%s'", expr.Op)
	}
}

// ToExpr converts a filter back into its expression tree
func ToExpr(f Filter) Expr {
	switch f := f.(type) {
	case Compare:
		return Expr{Op: f.Op, Field: f.Field, Value: f.Value.Interface()}
	case And:
		return Expr{Op: OpAnd, Children: lo.Map([]Filter(f), func(c Filter, _ int) Expr { return ToExpr(c) })}
	case Or:
		return Expr{Op: OpOr, Children: lo.Map([]Filter(f), func(c Filter, _ int) Expr { return ToExpr(c) })}
	case Not:
		return Expr{Op: OpNot, Children: []Expr{ToExpr(f.Filter)}}
	default:
		return Expr{Op: OpAnd}
	}
}

// Match compares the document's field against the literal. Absent fields only match equality with null.
// Array fields match when any element satisfies the comparison.
func (c Compare) Match(doc *model.Document) bool {
	v, ok := doc.Lookup(c.Field)
	if !ok {
		return c.Op == OpEq && c.Value.IsNull()
	}
	if c.compare(v) {
		return true
	}
	if v.Kind() == model.KindArray && c.Value.Kind() != model.KindArray {
		return lo.ContainsBy(v.Elements(), c.compare)
	}
	return false
}

func (c Compare) compare(v model.Value) bool {
	if v.Kind() != c.Value.Kind() {
		return false
	}
	cmp := model.Compare(v, c.Value)
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// Match returns true if every filter matches
func (a And) Match(doc *model.Document) bool {
	for _, f := range a {
		if !f.Match(doc) {
			return false
		}
	}
	return true
}

// Match returns true if any filter matches
func (o Or) Match(doc *model.Document) bool {
	for _, f := range o {
		if f.Match(doc) {
			return true
		}
	}
	return false
}

// Match returns true if the wrapped filter does not match
func (n Not) Match(doc *model.Document) bool {
	return !n.Filter.Match(doc)
}

// Equalities returns the equality predicates of the filter's top level conjunction, keyed by field.
// They are safe to use for index selection: every matching document satisfies all of them.
func Equalities(f Filter) map[string]model.Value {
	var (
		values = map[string]model.Value{}
		walk   func(f Filter)
	)
	walk = func(f Filter) {
		switch f := f.(type) {
		case Compare:
			if f.Op == OpEq && f.Value.Kind() != model.KindArray {
				values[f.Field] = f.Value
			}
		case And:
			for _, c := range f {
				walk(c)
			}
		}
	}
	walk(f)
	return values
}
