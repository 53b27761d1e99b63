package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/autom8ter/docstore/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	type testCase struct {
		in   any
		kind model.Kind
	}
	when := time.Date(1949, time.June, 8, 0, 0, 0, 0, time.UTC)
	for name, tc := range map[string]testCase{
		"nil":         {nil, model.KindNull},
		"bool":        {true, model.KindBool},
		"int":         {1949, model.KindNumber},
		"float":       {8.99, model.KindNumber},
		"json number": {json.Number("12.5"), model.KindNumber},
		"string":      {"Dystopian", model.KindString},
		"time":        {when, model.KindDate},
		"tagged date": {map[string]any{"$date": "1949-06-08T00:00:00Z"}, model.KindDate},
		"array":       {[]any{"a", 1}, model.KindArray},
		"strings":     {[]string{"a", "b"}, model.KindArray},
		"document":    {map[string]any{"a": 1}, model.KindDocument},
		"struct":      {struct{ A int }{A: 1}, model.KindDocument},
	} {
		t.Run(name, func(t *testing.T) {
			v, err := model.ValueOf(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, v.Kind())
		})
	}
	t.Run("invalid tagged date", func(t *testing.T) {
		_, err := model.ValueOf(map[string]any{"$date": "yesterday"})
		assert.Error(t, err)
	})
}

func TestCompare(t *testing.T) {
	t.Run("numbers", func(t *testing.T) {
		assert.Equal(t, -1, model.Compare(model.Number(1), model.Number(2)))
		assert.Equal(t, 0, model.Compare(model.Number(2), model.Number(2)))
		assert.Equal(t, 1, model.Compare(model.Number(3), model.Number(2)))
	})
	t.Run("strings", func(t *testing.T) {
		assert.Equal(t, -1, model.Compare(model.String("a"), model.String("b")))
	})
	t.Run("dates", func(t *testing.T) {
		a := model.Date(time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC))
		b := model.Date(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, -1, model.Compare(a, b))
	})
	t.Run("kinds are ordered", func(t *testing.T) {
		ordered := []model.Value{
			model.Null(),
			model.Number(100),
			model.String("a"),
			model.Object(nil),
			model.Array(),
			model.Bool(false),
			model.Date(time.Now()),
		}
		for i := 1; i < len(ordered); i++ {
			assert.Equal(t, -1, model.Compare(ordered[i-1], ordered[i]), ordered[i].Kind().String())
		}
	})
	t.Run("documents ignore key order", func(t *testing.T) {
		a := model.MustValueOf(map[string]any{"x": 1, "y": "z"})
		b := model.MustValueOf(map[string]any{"y": "z", "x": 1})
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Key(), b.Key())
	})
	t.Run("arrays", func(t *testing.T) {
		a := model.Array(model.Number(1), model.Number(2))
		b := model.Array(model.Number(1), model.Number(2), model.Number(3))
		assert.Equal(t, -1, model.Compare(a, b))
	})
}

func TestValueJSON(t *testing.T) {
	v := model.Object(map[string]model.Value{
		"title":     model.String("1984"),
		"published": model.Date(time.Date(1949, time.June, 8, 0, 0, 0, 0, time.UTC)),
		"tags":      model.Array(model.String("classic")),
	})
	bits, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"1984","published":{"$date":"1949-06-08T00:00:00Z"},"tags":["classic"]}`, string(bits))

	var decoded model.Value
	require.NoError(t, json.Unmarshal(bits, &decoded))
	assert.True(t, v.Equal(decoded))
	if diff := cmp.Diff(v.Interface(), decoded.Interface()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseKind(t *testing.T) {
	k, err := model.ParseKind("Number")
	require.NoError(t, err)
	assert.Equal(t, model.KindNumber, k)
	assert.True(t, k.Ordered())
	_, err = model.ParseKind("decimal")
	assert.Error(t, err)
}
