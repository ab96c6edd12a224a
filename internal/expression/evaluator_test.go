package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext() *ResolutionContext {
	return &ResolutionContext{
		NodeInput:    map[string]interface{}{"x": float64(1)},
		NodeOutputs:  map[string]map[string]interface{}{"A": {"x": float64(1)}},
		TriggerInput: map[string]interface{}{"x": float64(1)},
		Env:          map[string]string{"TENANT": "acme"},
	}
}

func TestResolveString_NativeValueWhenExactExpression(t *testing.T) {
	e := NewEvaluator()
	val, err := e.ResolveString(`{{ $json.x }}`, sampleContext())
	require.NoError(t, err)
	assert.Equal(t, float64(1), val)
}

func TestResolveString_NodeOutputPath(t *testing.T) {
	e := NewEvaluator()
	val, err := e.ResolveString(`{{ $node("A").output.x }}`, sampleContext())
	require.NoError(t, err)
	assert.Equal(t, float64(1), val)
}

func TestResolveString_MissingPathResolvesEmpty(t *testing.T) {
	e := NewEvaluator()
	val, err := e.ResolveString(`prefix-{{ $json.missing }}-suffix`, sampleContext())
	require.NoError(t, err)
	assert.Equal(t, "prefix--suffix", val)
}

func TestResolveString_TriggerAndEnv(t *testing.T) {
	e := NewEvaluator()
	val, err := e.ResolveString(`{{ $trigger.x }}`, sampleContext())
	require.NoError(t, err)
	assert.Equal(t, float64(1), val)

	val, err = e.ResolveString(`{{ $env.TENANT }}`, sampleContext())
	require.NoError(t, err)
	assert.Equal(t, "acme", val)
}

func TestResolveValue_Recursive(t *testing.T) {
	e := NewEvaluator()
	cfg := map[string]interface{}{
		"url": "https://example.com/{{ $trigger.x }}",
		"nested": map[string]interface{}{
			"items": []interface{}{"{{ $json.x }}", "literal"},
		},
	}
	out, err := e.ResolveValue(cfg, sampleContext())
	require.NoError(t, err)
	m := out.(map[string]interface{})
	assert.Equal(t, "https://example.com/1", m["url"])
	nested := m["nested"].(map[string]interface{})
	items := nested["items"].([]interface{})
	assert.Equal(t, float64(1), items[0])
	assert.Equal(t, "literal", items[1])
}

func TestGetValueByPath_MissingIsNotFound(t *testing.T) {
	data := map[string]interface{}{"a": map[string]interface{}{"b": float64(2)}}
	v, ok := GetValueByPath(data, "a.b")
	assert.True(t, ok)
	assert.Equal(t, float64(2), v)

	_, ok = GetValueByPath(data, "a.c")
	assert.False(t, ok)
}

func TestGetValueByPath_ArrayIndex(t *testing.T) {
	data := map[string]interface{}{"items": []interface{}{"x", "y"}}
	v, ok := GetValueByPath(data, "items[1]")
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = GetValueByPath(data, "items[5]")
	assert.False(t, ok)
}
