package assert

import (
	"testing"

	"github.com/samber/mo"
	assert2 "github.com/stretchr/testify/assert"
)

// Some is a test helper to verify an Option holds the expected value
func Some[T any](t *testing.T, opt mo.Option[T], expected T) bool {
	t.Helper()
	v, ok := opt.Get()
	if !assert2.True(t, ok, "expected a value, got None") {
		return false
	}
	return assert2.Equal(t, expected, v)
}

// None is a test helper to verify an Option is empty
func None[T any](t *testing.T, opt mo.Option[T]) bool {
	t.Helper()
	v, ok := opt.Get()
	return assert2.False(t, ok, "expected None, got %v", v)
}
