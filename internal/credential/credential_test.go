package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_ResolveAndCanAccess(t *testing.T) {
	f := NewFake()
	f.Put("cred-1", map[string]interface{}{"apiKey": "secret"}, "user-1")

	secret, err := f.Resolve(context.Background(), "tenant-1", "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "secret", secret["apiKey"])

	ok, err := f.CanAccess(context.Background(), "tenant-1", "user-1", "cred-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.CanAccess(context.Background(), "tenant-1", "user-2", "cred-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFake_ResolveMissingIsNotFound(t *testing.T) {
	f := NewFake()
	_, err := f.Resolve(context.Background(), "tenant-1", "missing")
	require.Error(t, err)
}
