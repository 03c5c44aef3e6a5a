package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	base := stderrors.New("connection refused")

	enhanced := New(base).
		Component("imagepipeline").
		Category(CategoryNetwork).
		Context("url", "https://example.com/a.jpg").
		Context("attempt", 2).
		Build()

	assert.Equal(t, "connection refused", enhanced.Error())
	assert.Equal(t, "imagepipeline", enhanced.Component)
	assert.Equal(t, "network", enhanced.GetCategory())
	assert.WithinDuration(t, time.Now(), enhanced.Timestamp, time.Second)

	ctx := enhanced.GetContext()
	assert.Equal(t, "https://example.com/a.jpg", ctx["url"])
	assert.Equal(t, 2, ctx["attempt"])
}

func TestNewf(t *testing.T) {
	enhanced := Newf("image fetch failed: %s", "http_404").Build()
	assert.Equal(t, "image fetch failed: http_404", enhanced.Error())
}

func TestBuild_DefaultsToGenericCategory(t *testing.T) {
	enhanced := Newf("plain failure").Build()
	assert.Equal(t, CategoryGeneric, enhanced.Category)
}

func TestUnwrapChain(t *testing.T) {
	base := stderrors.New("root cause")
	enhanced := New(base).Category(CategoryDatabase).Build()

	assert.True(t, Is(enhanced, base))

	var target *EnhancedError
	require.True(t, As(enhanced, &target))
	assert.Equal(t, CategoryDatabase, target.Category)
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	enhanced := Newf("x").Context("key", "value").Build()

	ctx := enhanced.GetContext()
	ctx["key"] = "mutated"

	assert.Equal(t, "value", enhanced.GetContext()["key"])
}

func TestGetContext_NilWhenUnset(t *testing.T) {
	enhanced := Newf("x").Build()
	assert.Nil(t, enhanced.GetContext())
}
