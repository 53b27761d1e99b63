package mongodb

import (
	"sort"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var compareOps = map[query.Op]string{
	query.OpEq:  "$eq",
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
}

// buildFilter translates a filter into a mongodb query document. Not is expressed with $nor.
func buildFilter(filter query.Filter) bson.D {
	switch f := filter.(type) {
	case nil:
		return bson.D{}
	case query.Compare:
		return bson.D{{Key: f.Field, Value: bson.D{{Key: compareOps[f.Op], Value: toBSON(f.Value)}}}}
	case query.And:
		if len(f) == 0 {
			return bson.D{}
		}
		return bson.D{{Key: "$and", Value: buildFilters(f)}}
	case query.Or:
		return bson.D{{Key: "$or", Value: buildFilters(f)}}
	case query.Not:
		return bson.D{{Key: "$nor", Value: bson.A{buildFilter(f.Filter)}}}
	default:
		return bson.D{}
	}
}

func buildFilters(filters []query.Filter) bson.A {
	children := make(bson.A, 0, len(filters))
	for _, child := range filters {
		children = append(children, buildFilter(child))
	}
	return children
}

// toBSON converts a tagged value into its bson representation. Nested documents use sorted keys
// since mongodb compares embedded documents field by field in order.
func toBSON(v model.Value) interface{} {
	switch v.Kind() {
	case model.KindNull:
		return nil
	case model.KindNumber:
		f, _ := v.Float()
		return f
	case model.KindString:
		s, _ := v.Str()
		return s
	case model.KindDate:
		t, _ := v.Time()
		return primitive.NewDateTimeFromTime(t)
	case model.KindArray:
		arr := make(bson.A, 0, len(v.Elements()))
		for _, e := range v.Elements() {
			arr = append(arr, toBSON(e))
		}
		return arr
	case model.KindDocument:
		fields := v.Fields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(keys))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: toBSON(fields[k])})
		}
		return d
	default:
		return v.Interface()
	}
}

func buildProjection(p query.Projection) bson.D {
	if p.IsZero() {
		return nil
	}
	var d bson.D
	for _, f := range p.Include() {
		d = append(d, bson.E{Key: f, Value: 1})
	}
	for _, f := range p.Exclude() {
		d = append(d, bson.E{Key: f, Value: 0})
	}
	return d
}

func buildSort(s query.Sort) bson.D {
	d := make(bson.D, 0, len(s))
	for _, f := range s {
		d = append(d, bson.E{Key: f.Field, Value: int(f.Direction)})
	}
	return d
}

// buildUpdate groups the patch operations by update operator, fields sorted
func buildUpdate(patch query.Patch) bson.D {
	grouped := map[query.PatchKind]bson.D{}
	for _, field := range patch.Fields() {
		op := patch[field]
		var value interface{}
		switch op.Kind {
		case query.PatchUnset:
			value = ""
		default:
			value = toBSON(op.Value)
		}
		grouped[op.Kind] = append(grouped[op.Kind], bson.E{Key: field, Value: value})
	}
	var update bson.D
	for _, kind := range []query.PatchKind{query.PatchSet, query.PatchMul, query.PatchInc, query.PatchUnset} {
		if fields, ok := grouped[kind]; ok {
			update = append(update, bson.E{Key: string(kind), Value: fields})
		}
	}
	return update
}

var accumulators = map[pipeline.AggregateFunc]string{
	pipeline.FuncAvg:  "$avg",
	pipeline.FuncSum:  "$sum",
	pipeline.FuncPush: "$push",
	pipeline.FuncMin:  "$min",
	pipeline.FuncMax:  "$max",
}

// buildPipeline translates stages into an aggregation pipeline
func buildPipeline(p pipeline.Pipeline) (mongo.Pipeline, error) {
	stages := make(mongo.Pipeline, 0, len(p))
	for _, stage := range p {
		switch s := stage.(type) {
		case pipeline.MatchStage:
			stages = append(stages, bson.D{{Key: "$match", Value: buildFilter(s.Filter)}})
		case pipeline.GroupStage:
			group := bson.D{{Key: "_id", Value: "$" + s.Key}}
			outputs := make([]string, 0, len(s.Aggregates))
			for out := range s.Aggregates {
				outputs = append(outputs, out)
			}
			sort.Strings(outputs)
			for _, out := range outputs {
				op := s.Aggregates[out]
				var acc bson.D
				if op.Func == pipeline.FuncCount {
					acc = bson.D{{Key: "$sum", Value: 1}}
				} else {
					acc = bson.D{{Key: accumulators[op.Func], Value: "$" + op.Field}}
				}
				group = append(group, bson.E{Key: out, Value: acc})
			}
			stages = append(stages, bson.D{{Key: "$group", Value: group}})
		case pipeline.SortStage:
			stages = append(stages, bson.D{{Key: "$sort", Value: buildSort(s.Sort)}})
		case pipeline.LimitStage:
			stages = append(stages, bson.D{{Key: "$limit", Value: int64(s.N)}})
		case pipeline.SkipStage:
			stages = append(stages, bson.D{{Key: "$skip", Value: int64(s.N)}})
		default:
			return nil, errors.New(errors.InvalidStage, "unsupported stage: %T", stage)
		}
	}
	return stages, nil
}

func buildIndexKeys(index model.Index) bson.D {
	keys := make(bson.D, 0, len(index.Keys))
	for _, k := range index.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: k.Direction})
	}
	return keys
}

// toBSONDocument converts a json document into bson. {"$date": ...} values become bson dates.
func toBSONDocument(doc *model.Document) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(doc.Bytes(), false, &d); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to convert document %s", doc.ID())
	}
	return d, nil
}

// fromBSON converts a bson document into a json document using relaxed extended json
func fromBSON(raw bson.Raw) (*model.Document, error) {
	bits, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to convert bson document")
	}
	return model.NewDocumentFromBytes(bits)
}
