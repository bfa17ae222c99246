package pipeline

import (
	"testing"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestCacheKey_StableAcrossParamOrder(t *testing.T) {
	t.Parallel()

	a := CacheKey("hash-1", []entity.Tool{
		{Position: 0, Procedure: entity.ProcResize, Params: map[string]interface{}{"width": 100, "height": 200}},
	})
	b := CacheKey("hash-1", []entity.Tool{
		{Position: 0, Procedure: entity.ProcResize, Params: map[string]interface{}{"height": 200, "width": 100}},
	})

	assert.Equal(t, a, b)
}

func TestCacheKey_SensitiveToContent(t *testing.T) {
	t.Parallel()

	tools := []entity.Tool{{Position: 0, Procedure: entity.ProcGrayscale}}

	assert.NotEqual(t, CacheKey("hash-1", tools), CacheKey("hash-2", tools))
}

func TestCacheKey_SensitiveToToolOrder(t *testing.T) {
	t.Parallel()

	a := CacheKey("hash-1", []entity.Tool{
		{Position: 0, Procedure: entity.ProcGrayscale},
		{Position: 1, Procedure: entity.ProcBlur, Params: map[string]interface{}{"radius": 2}},
	})
	b := CacheKey("hash-1", []entity.Tool{
		{Position: 0, Procedure: entity.ProcBlur, Params: map[string]interface{}{"radius": 2}},
		{Position: 1, Procedure: entity.ProcGrayscale},
	})

	assert.NotEqual(t, a, b)
}
