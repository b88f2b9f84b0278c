package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/axonbridge"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	// A nil slice makes cobra fall back to os.Args, which holds the test flags.
	cmd.SetArgs(append([]string{}, args...))
	return cmd.ExecuteContext(context.Background())
}

func TestRunRequiresBackend(t *testing.T) {
	err := execute(t, "--port", "0")
	assert.ErrorIs(t, err, axonbridge.ErrBackendURLRequired)
}

func TestRunRejectsBadAuthorizedApps(t *testing.T) {
	err := execute(t, "--nucleus", "channel://cli", "--authorized-apps", "nokey")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name:key")
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("SERVER_NUCLEUS", "carrier-pigeon://coop")
	err := execute(t)
	assert.ErrorIs(t, err, axonbridge.ErrUnknownTransport)
}

func TestGenerateName(t *testing.T) {
	a, b := generateName(), generateName()
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, ".")

	i := strings.LastIndex(a, "-")
	require.Positive(t, i)
	suffix := a[i+1:]
	assert.Len(t, suffix, 6)
	assert.Equal(t, strings.ToLower(suffix), suffix)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, version())
}
