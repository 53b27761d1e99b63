package query

import (
	"sort"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/nqd/flat"
	"github.com/spf13/cast"
)

// PatchKind is a field level update operation
type PatchKind string

const (
	// PatchSet sets the field to a value
	PatchSet PatchKind = "$set"
	// PatchMul multiplies a numeric field by a factor
	PatchMul PatchKind = "$mul"
	// PatchInc adds an amount to a numeric field
	PatchInc PatchKind = "$inc"
	// PatchUnset removes the field
	PatchUnset PatchKind = "$unset"
)

// Operation is one field level update
type Operation struct {
	Kind  PatchKind
	Value model.Value
	err   error
}

// SetValue sets a field to the value
func SetValue(value any) Operation {
	v, err := model.ValueOf(value)
	return Operation{Kind: PatchSet, Value: v, err: err}
}

// MultiplyBy multiplies a numeric field by the factor
func MultiplyBy(factor float64) Operation {
	return Operation{Kind: PatchMul, Value: model.Number(factor)}
}

// IncrementBy adds the amount to a numeric field
func IncrementBy(amount float64) Operation {
	return Operation{Kind: PatchInc, Value: model.Number(amount)}
}

// Unset removes a field
func Unset() Operation {
	return Operation{Kind: PatchUnset, Value: model.Null()}
}

// Patch maps fields (dot notation) to update operations
type Patch map[string]Operation

// PatchFromMap builds a patch from an operator document, ex: {"$set": {"genre": "Fiction"}, "$mul": {"price": 1.1}}.
// Nested objects are flattened into dot notation.
func PatchFromMap(update map[string]any) (Patch, error) {
	patch := Patch{}
	for op, fields := range update {
		kind := PatchKind(op)
		switch kind {
		case PatchSet, PatchMul, PatchInc, PatchUnset:
		default:
			return nil, errors.New(errors.Validation, "unsupported update operator: '%s'", op)
		}
		values, ok := fields.(map[string]any)
		if !ok {
			return nil, errors.New(errors.Validation, "update operator '%s' requires a document", op)
		}
		flattened, err := flat.Flatten(values, &flat.Options{Delimiter: ".", Safe: true})
		if err != nil {
			return nil, errors.Wrap(err, errors.Validation, "invalid update")
		}
		for field, value := range flattened {
			if _, exists := patch[field]; exists {
				return nil, errors.New(errors.Validation, "field '%s' is updated more than once", field)
			}
			switch kind {
			case PatchSet:
				patch[field] = SetValue(value)
			case PatchUnset:
				patch[field] = Unset()
			default:
				n, err := cast.ToFloat64E(value)
				if err != nil {
					return nil, errors.New(errors.Validation, "'%s' on field '%s' requires a number", op, field)
				}
				patch[field] = Operation{Kind: kind, Value: model.Number(n)}
			}
		}
	}
	return patch, nil
}

// Validate returns a validation error if the patch is empty, targets _id or a path under it,
// names overlapping paths, or holds invalid operations
func (p Patch) Validate() error {
	if len(p) == 0 {
		return errors.New(errors.Validation, "empty patch")
	}
	for field, op := range p {
		if field == "" {
			return errors.New(errors.Validation, "patch has an empty field name")
		}
		if field == model.IDField || strings.HasPrefix(field, model.IDField+".") {
			return errors.New(errors.Validation, "the '%s' field is immutable", model.IDField)
		}
		if op.err != nil {
			return errors.Wrap(op.err, errors.Validation, "field '%s'", field)
		}
		switch op.Kind {
		case PatchSet, PatchUnset:
		case PatchMul, PatchInc:
			if op.Value.Kind() != model.KindNumber {
				return errors.New(errors.Validation, "'%s' on field '%s' requires a number", op.Kind, field)
			}
		default:
			return errors.New(errors.Validation, "unsupported update operator: '%s'", op.Kind)
		}
	}
	fields := p.Fields()
	for i, a := range fields {
		for _, b := range fields[i+1:] {
			if strings.HasPrefix(b, a+".") || strings.HasPrefix(a, b+".") {
				return errors.New(errors.Validation, "updating '%s' and '%s' would conflict", a, b)
			}
		}
	}
	return nil
}

// Fields returns the patched fields in sorted order
func (p Patch) Fields() []string {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Apply applies the patch to the document in place and reports whether the document changed.
// $mul skips fields that are absent or non-numeric. $inc skips non-numeric fields and creates absent ones.
func (p Patch) Apply(doc *model.Document) (bool, error) {
	changed := false
	for _, field := range p.Fields() {
		op := p[field]
		current, exists := doc.Lookup(field)
		var next model.Value
		switch op.Kind {
		case PatchSet:
			if exists && current.Equal(op.Value) {
				continue
			}
			next = op.Value
		case PatchUnset:
			if !exists {
				continue
			}
			if err := doc.Del(field); err != nil {
				return changed, err
			}
			changed = true
			continue
		case PatchMul:
			n, ok := current.Float()
			if !exists || !ok {
				continue
			}
			factor, _ := op.Value.Float()
			next = model.Number(n * factor)
		case PatchInc:
			amount, _ := op.Value.Float()
			if !exists {
				next = model.Number(amount)
				break
			}
			n, ok := current.Float()
			if !ok {
				continue
			}
			next = model.Number(n + amount)
		}
		if exists && current.Equal(next) {
			continue
		}
		if err := doc.Set(field, next.Interface()); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}
