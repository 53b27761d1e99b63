package pipeline

import (
	"sort"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/samber/lo"
)

// Run executes the pipeline in memory against the documents. The input slice is not modified.
func Run(docs model.Documents, p Pipeline) (model.Documents, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	working := append(model.Documents{}, docs...)
	for i, stage := range p {
		var err error
		working, err = apply(working, stage)
		if err != nil {
			return nil, errors.Wrap(err, 0, "stage %d", i)
		}
	}
	return working, nil
}

func apply(docs model.Documents, stage Stage) (model.Documents, error) {
	switch s := stage.(type) {
	case MatchStage:
		return docs.Filter(func(d *model.Document, _ int) bool {
			return s.Filter.Match(d)
		}), nil
	case GroupStage:
		return group(docs, s)
	case SortStage:
		s.Sort.Apply(docs)
		return docs, nil
	case LimitStage:
		if s.N < len(docs) {
			return docs[:s.N], nil
		}
		return docs, nil
	case SkipStage:
		if s.N >= len(docs) {
			return model.Documents{}, nil
		}
		return docs[s.N:], nil
	default:
		return nil, errors.New(errors.InvalidStage, "unsupported stage: %T", stage)
	}
}

type partition struct {
	key  model.Value
	docs model.Documents
}

func group(docs model.Documents, g GroupStage) (model.Documents, error) {
	var (
		order []string
		parts = map[string]*partition{}
	)
	for _, d := range docs {
		key, _ := d.Lookup(g.Key)
		k := key.Key()
		p, ok := parts[k]
		if !ok {
			p = &partition{key: key}
			parts[k] = p
			order = append(order, k)
		}
		p.docs = append(p.docs, d)
	}
	outputs := make([]string, 0, len(g.Aggregates))
	for out := range g.Aggregates {
		outputs = append(outputs, out)
	}
	sort.Strings(outputs)

	results := make(model.Documents, 0, len(order))
	for _, k := range order {
		p := parts[k]
		result := model.NewDocument()
		if err := result.Set(model.IDField, p.key.Interface()); err != nil {
			return nil, err
		}
		for _, out := range outputs {
			if err := result.Set(out, accumulate(g.Aggregates[out], p.docs).Interface()); err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// accumulate computes the aggregate over the documents. Values that don't apply are skipped.
func accumulate(op AggregateOp, docs model.Documents) model.Value {
	switch op.Func {
	case FuncCount:
		return model.Number(float64(len(docs)))
	case FuncPush:
		var values []model.Value
		for _, d := range docs {
			if v, ok := d.Lookup(op.Field); ok {
				values = append(values, v)
			}
		}
		return model.Array(values...)
	case FuncMin, FuncMax:
		var (
			best  model.Value
			found bool
		)
		for _, d := range docs {
			v, ok := d.Lookup(op.Field)
			if !ok || v.IsNull() {
				continue
			}
			c := model.Compare(v, best)
			if !found || (op.Func == FuncMin && c < 0) || (op.Func == FuncMax && c > 0) {
				best, found = v, true
			}
		}
		if !found {
			return model.Null()
		}
		return best
	default:
		numbers := lo.Filter[model.Value](lo.Map[*model.Document, model.Value](docs, func(d *model.Document, _ int) model.Value {
			v, _ := d.Lookup(op.Field)
			return v
		}), func(v model.Value, _ int) bool {
			return v.Kind() == model.KindNumber
		})
		total := lo.SumBy[model.Value, float64](numbers, func(v model.Value) float64 {
			f, _ := v.Float()
			return f
		})
		if op.Func == FuncSum {
			return model.Number(total)
		}
		if len(numbers) == 0 {
			return model.Null()
		}
		return model.Number(total / float64(len(numbers)))
	}
}
