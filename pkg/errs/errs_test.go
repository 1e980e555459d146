package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(E(NotFound, "category %s not found", "abc")))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.Equal(t, Internal, KindOf(nil))

	wrapped := fmt.Errorf("handler: %w", E(DuplicateName, "taken"))
	assert.Equal(t, DuplicateName, KindOf(wrapped))
}

func TestIs(t *testing.T) {
	err := E(ParentNotFound, "parent missing")
	assert.True(t, Is(err, ParentNotFound))
	assert.False(t, Is(err, NotFound))
	assert.False(t, Is(nil, NotFound))

	assert.True(t, errors.Is(err, E(ParentNotFound, "different message")))
	assert.False(t, errors.Is(err, E(NotFound, "parent missing")))
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(cause, StoreUnavailable, "find category")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "find category", MessageOf(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, Wrap(nil, Internal, "nothing"))
}

func TestStore(t *testing.T) {
	assert.Nil(t, Store(nil, "op"))

	driver := errors.New("server selection timeout")
	assert.Equal(t, StoreUnavailable, KindOf(Store(driver, "find")))

	typed := E(NotFound, "missing")
	assert.Equal(t, typed, Store(typed, "find"))

	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		err := Store(cause, "delete category tree")
		assert.Equal(t, StoreUnavailable, KindOf(err))
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, "delete category tree: request cancelled before completion", MessageOf(err))
	}
}

func TestMessageOf_HidesUntypedDetail(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("secret connection string")))
}
