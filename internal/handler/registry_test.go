package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandler is a minimal test double satisfying Handler.
type fakeHandler struct {
	typ       string
	isTrigger bool
	schema    map[string]interface{}
	execute   func(ctx context.Context, hctx *Context) Result
}

func (f fakeHandler) Type() string        { return f.typ }
func (f fakeHandler) DisplayName() string { return f.typ }
func (f fakeHandler) Category() string    { return "test" }
func (f fakeHandler) Icon() string        { return "" }
func (f fakeHandler) Description() string { return "" }

func (f fakeHandler) IsTrigger() bool         { return f.isTrigger }
func (f fakeHandler) SupportsAsync() bool     { return false }
func (f fakeHandler) SupportsStreaming() bool { return false }

func (f fakeHandler) ConfigSchema() map[string]interface{} { return f.schema }
func (f fakeHandler) Interface() InterfaceDefinition        { return InterfaceDefinition{} }
func (f fakeHandler) CredentialType() string                { return "" }

func (f fakeHandler) Execute(ctx context.Context, hctx *Context) Result {
	if f.execute != nil {
		return f.execute(ctx, hctx)
	}
	return NewSuccess(map[string]interface{}{})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandler{typ: "action:http"})

	h, err := r.Get("action:http")
	require.NoError(t, err)
	assert.Equal(t, "action:http", h.Type())
}

func TestRegistry_UnknownTypeIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("action:nope")
	require.Error(t, err)
}

func TestRegistry_IsTriggerAndIsKnown(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandler{typ: "trigger:webhook", isTrigger: true})
	r.Register(fakeHandler{typ: "action:http"})

	assert.True(t, r.IsTrigger("trigger:webhook"))
	assert.False(t, r.IsTrigger("action:http"))
	assert.False(t, r.IsTrigger("action:unknown"))

	assert.True(t, r.IsKnown("action:http"))
	assert.False(t, r.IsKnown("action:unknown"))
}

func TestRegistry_ExecuteSumType(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandler{typ: "action:fail", execute: func(ctx context.Context, hctx *Context) Result {
		return NewFailure("boom", "CUSTOM")
	}})

	h, err := r.Get("action:fail")
	require.NoError(t, err)
	res := h.Execute(context.Background(), &Context{})
	fail, ok := res.(Failure)
	require.True(t, ok)
	assert.Equal(t, "boom", fail.ErrorMessage)
	assert.Equal(t, "CUSTOM", fail.ErrorCode)
}

func TestValidateConfig_RequiredAndType(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"url"},
		"properties": map[string]interface{}{
			"url":     map[string]interface{}{"type": "string"},
			"timeout": map[string]interface{}{"type": "number"},
		},
	}

	err := ValidateConfig(schema, map[string]interface{}{"url": "https://x"})
	assert.NoError(t, err)

	err = ValidateConfig(schema, map[string]interface{}{})
	assert.Error(t, err)

	err = ValidateConfig(schema, map[string]interface{}{"url": float64(1)})
	assert.Error(t, err)
}

func TestValidateConfig_EmptySchemaAlwaysPasses(t *testing.T) {
	assert.NoError(t, ValidateConfig(nil, map[string]interface{}{"anything": true}))
}
