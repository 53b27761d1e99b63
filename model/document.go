package model

import (
	"encoding/json"
	"time"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/util"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// IDField is the field holding a document's unique identifier
const IDField = "_id"

// Document is a schema-less json document. Fields are addressed with gjson dot notation.
type Document struct {
	result gjson.Result
}

// UnmarshalJSON satisfies the json Unmarshaler interface
func (d *Document) UnmarshalJSON(bytes []byte) error {
	doc, err := NewDocumentFromBytes(bytes)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// MarshalJSON satisfies the json Marshaler interface
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Bytes(), nil
}

// NewDocument creates a new json document
func NewDocument() *Document {
	parsed := gjson.Parse("{}")
	return &Document{
		result: parsed,
	}
}

// NewDocumentFromBytes creates a new document from the given json bytes
func NewDocumentFromBytes(json []byte) (*Document, error) {
	if !gjson.ValidBytes(json) {
		return nil, errors.New(errors.Validation, "invalid json: %s", string(json))
	}
	d := &Document{
		result: gjson.ParseBytes(json),
	}
	if !d.Valid() {
		return nil, errors.New(errors.Validation, "invalid document: %s", string(json))
	}
	return d, nil
}

// NewDocumentFrom creates a new document from the given value - the value must be json compatible.
// time.Time values held in maps and slices are stored as dates.
func NewDocumentFrom(value any) (*Document, error) {
	bits, err := json.Marshal(normalize(value))
	if err != nil {
		return nil, errors.New(errors.Validation, "failed to json encode value: %#v", value)
	}
	return NewDocumentFromBytes(bits)
}

// MustDocumentFrom is like NewDocumentFrom but panics on failure
func MustDocumentFrom(value any) *Document {
	d, err := NewDocumentFrom(value)
	if err != nil {
		panic(err)
	}
	return d
}

func normalize(value any) any {
	switch value := value.(type) {
	case time.Time:
		return Date(value).Interface()
	case *time.Time:
		if value == nil {
			return nil
		}
		return Date(*value).Interface()
	case Value:
		return value.Interface()
	case *Document:
		if value == nil {
			return nil
		}
		return json.RawMessage(value.Bytes())
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, v := range value {
			out[k] = normalize(v)
		}
		return out
	case []any:
		out := make([]any, 0, len(value))
		for _, v := range value {
			out = append(out, normalize(v))
		}
		return out
	default:
		return value
	}
}

// Valid returns whether the document is valid
func (d *Document) Valid() bool {
	return gjson.Valid(d.result.Raw) && d.result.IsObject()
}

// String returns the document as a json string
func (d *Document) String() string {
	return d.result.Raw
}

// Bytes returns the document as json bytes
func (d *Document) Bytes() []byte {
	return []byte(d.result.Raw)
}

// Value returns the document as a map
func (d *Document) Value() map[string]any {
	return cast.ToStringMap(d.result.Value())
}

// Native returns the document as a map with dates rendered as time.Time
func (d *Document) Native() map[string]any {
	v, err := ValueOf(d.Value())
	if err != nil {
		return d.Value()
	}
	return cast.ToStringMap(v.Native())
}

// Clone allocates a new document with identical values
func (d *Document) Clone() *Document {
	raw := d.result.Raw
	return &Document{result: gjson.Parse(raw)}
}

// ID returns the document's identifier
func (d *Document) ID() string {
	return d.GetString(IDField)
}

// Exists returns true if the field is present on the document
func (d *Document) Exists(field string) bool {
	return d.result.Get(field).Exists()
}

// Get gets a field on the document. Get has GJSON syntax support and supports dot notation
func (d *Document) Get(field string) any {
	return d.result.Get(field).Value()
}

// Lookup returns the tagged value of a field and whether it is present
func (d *Document) Lookup(field string) (Value, bool) {
	r := d.result.Get(field)
	if !r.Exists() {
		return Null(), false
	}
	v, err := ValueOf(r.Value())
	if err != nil {
		return Null(), false
	}
	return v, true
}

// GetString gets a string field value on the document. Get has GJSON syntax support and supports dot notation
func (d *Document) GetString(field string) string {
	return d.result.Get(field).String()
}

// GetBool gets a bool field value on the document. GetBool has GJSON syntax support and supports dot notation
func (d *Document) GetBool(field string) bool {
	return cast.ToBool(d.Get(field))
}

// GetFloat gets a float field value on the document. GetFloat has GJSON syntax support and supports dot notation
func (d *Document) GetFloat(field string) float64 {
	return cast.ToFloat64(d.Get(field))
}

// Set sets a field on the document. Dot notation is supported.
func (d *Document) Set(field string, val any) error {
	return d.SetAll(map[string]any{
		field: val,
	})
}

func (d *Document) set(field string, val any) error {
	var (
		result string
		err    error
	)
	switch val := val.(type) {
	case gjson.Result:
		result, err = sjson.Set(d.result.Raw, field, val.Value())
	case []byte:
		result, err = sjson.SetRaw(d.result.Raw, field, string(val))
	case *Document:
		result, err = sjson.SetRaw(d.result.Raw, field, val.String())
	default:
		result, err = sjson.Set(d.result.Raw, field, normalize(val))
	}
	if err != nil {
		return errors.Wrap(err, errors.Validation, "failed to set field: %s", field)
	}
	if !gjson.Valid(result) {
		return errors.New(errors.Validation, "invalid document")
	}
	d.result = gjson.Parse(result)
	return nil
}

// SetAll sets all fields on the document. Dot notation is supported.
func (d *Document) SetAll(values map[string]any) error {
	var err error
	for k, v := range values {
		err = d.set(k, v)
		if err != nil {
			return err
		}
	}
	return nil
}

// Del deletes a field from the document
func (d *Document) Del(field string) error {
	return d.DelAll(field)
}

// DelAll deletes the fields from the document
func (d *Document) DelAll(fields ...string) error {
	for _, field := range fields {
		result, err := sjson.Delete(d.result.Raw, field)
		if err != nil {
			return errors.Wrap(err, errors.Validation, "failed to delete field: %s", field)
		}
		d.result = gjson.Parse(result)
	}
	return nil
}

// Equal returns true if both documents hold the same fields and values, regardless of field order
func (d *Document) Equal(other *Document) bool {
	if other == nil {
		return false
	}
	a, err := ValueOf(d.Value())
	if err != nil {
		return false
	}
	b, err := ValueOf(other.Value())
	if err != nil {
		return false
	}
	return a.Equal(b)
}

// Scan scans the json document into the value
func (d *Document) Scan(value any) error {
	return util.Decode(d.Value(), value)
}

// Documents is an array of documents
type Documents []*Document

// Filter applies the filter function against the documents
func (documents Documents) Filter(predicate func(document *Document, i int) bool) Documents {
	return lo.Filter[*Document](documents, predicate)
}

// IDs returns the identifiers of the documents
func (documents Documents) IDs() []string {
	return lo.Map[*Document, string](documents, func(d *Document, _ int) string {
		return d.ID()
	})
}
