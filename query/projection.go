package query

import (
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/samber/lo"
)

// Projection selects the fields returned for each document. It either includes or excludes fields.
// The zero value returns documents unchanged.
type Projection struct {
	include []string
	exclude []string
}

// BuildProjection builds a projection. Inclusion and exclusion may not be mixed, except that _id may
// always be excluded alongside inclusions.
func BuildProjection(include, exclude []string) (Projection, error) {
	include, exclude = lo.Uniq(include), lo.Uniq(exclude)
	for _, f := range append(append([]string{}, include...), exclude...) {
		if f == "" {
			return Projection{}, errors.New(errors.ConflictingProjection, "projection has an empty field name")
		}
	}
	if both := lo.Intersect(include, exclude); len(both) > 0 {
		return Projection{}, errors.New(errors.ConflictingProjection, "fields are both included and excluded: %v", both)
	}
	if len(include) > 0 && len(exclude) > 0 {
		if len(exclude) != 1 || exclude[0] != model.IDField {
			return Projection{}, errors.New(errors.ConflictingProjection, "cannot mix inclusion %v and exclusion %v", include, exclude)
		}
	}
	return Projection{include: include, exclude: exclude}, nil
}

// Include returns the included fields
func (p Projection) Include() []string {
	return p.include
}

// Exclude returns the excluded fields
func (p Projection) Exclude() []string {
	return p.exclude
}

// IsZero returns true if the projection returns documents unchanged
func (p Projection) IsZero() bool {
	return len(p.include) == 0 && len(p.exclude) == 0
}

// Apply returns the projected document. The input document is not modified.
func (p Projection) Apply(doc *model.Document) (*model.Document, error) {
	if len(p.include) == 0 {
		if len(p.exclude) == 0 {
			return doc, nil
		}
		projected := doc.Clone()
		if err := projected.DelAll(p.exclude...); err != nil {
			return nil, err
		}
		return projected, nil
	}
	projected := model.NewDocument()
	fields := p.include
	if !lo.Contains(p.exclude, model.IDField) && !lo.Contains(fields, model.IDField) {
		fields = append([]string{model.IDField}, fields...)
	}
	for _, f := range fields {
		v, ok := doc.Lookup(f)
		if !ok {
			continue
		}
		if err := projected.Set(f, v.Interface()); err != nil {
			return nil, err
		}
	}
	return projected, nil
}
