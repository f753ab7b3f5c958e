package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/apierr"
)

func TestEnvBackend_FetchExisting(t *testing.T) {
	t.Setenv("FLOWPLANE_TEST_SECRET", "topsecret")

	var b EnvBackend
	got, err := b.Fetch(context.Background(), "FLOWPLANE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, []byte("topsecret"), got)
	assert.Equal(t, "env", b.Name())
}

func TestEnvBackend_FetchMissingIsNotFound(t *testing.T) {
	var b EnvBackend
	_, err := b.Fetch(context.Background(), "FLOWPLANE_DOES_NOT_EXIST")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}
