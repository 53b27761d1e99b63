package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/autom8ter/docstore/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Nil(t, err)
	})
	t.Run("wrap error", func(t *testing.T) {
		var err = fmt.Errorf("not found")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("wrap without code defaults to internal", func(t *testing.T) {
		err := errors.Wrap(fmt.Errorf("boom"), 0, "")
		assert.Equal(t, errors.Internal, errors.Extract(err).Code)
	})
	t.Run("new error", func(t *testing.T) {
		err := errors.New(errors.NotFound, "not found")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error then wrap", func(t *testing.T) {
		err := errors.New(errors.Validation, "duplicate key")
		err = errors.Wrap(err, 0, "books")
		assert.Equal(t, errors.Validation, errors.Extract(err).Code)
		assert.Equal(t, []string{"duplicate key", "books"}, errors.Extract(err).Messages)
	})
	t.Run("wrap does not mutate the original", func(t *testing.T) {
		err := errors.New(errors.Validation, "duplicate key")
		_ = errors.Wrap(err, errors.Internal, "books")
		assert.Equal(t, errors.Validation, errors.Extract(err).Code)
	})
	t.Run("new error then wrap then remove", func(t *testing.T) {
		err := errors.Wrap(fmt.Errorf("not found"), errors.NotFound, "")
		e := errors.Extract(err).RemoveError()
		assert.Empty(t, e.Err)
	})
	t.Run("error json string", func(t *testing.T) {
		err := errors.New(errors.NotFound, "not found")
		e := errors.Extract(err).RemoveError()
		assert.JSONEq(t, `{ "code":"not_found", "messages": ["not found"]}`, e.Error())
	})
	t.Run("is", func(t *testing.T) {
		err := fmt.Errorf("find: %w", errors.New(errors.ClosedHandle, "closed"))
		assert.True(t, errors.Is(err, errors.ClosedHandle))
		assert.False(t, errors.Is(err, errors.NotFound))
		assert.False(t, errors.Is(nil, errors.NotFound))
	})
	t.Run("unwrap", func(t *testing.T) {
		cause := fmt.Errorf("dial tcp: refused")
		err := errors.Wrap(cause, errors.Connection, "ping")
		assert.True(t, stderrors.Is(err, cause))
	})
}
