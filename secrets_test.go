package gitbrowser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretStoreUnderMasterKey(t *testing.T) {
	core := newTestCore(t)

	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, core.Secrets.Store("sync/endpoint-token", "tok-123"))

	value, found, err := core.Secrets.Get("sync/endpoint-token")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tok-123", value)
}

func TestSecretStoreFallbackWhileLocked(t *testing.T) {
	core := newTestCore(t)

	// Written while locked: sealed under the fallback key, so it stays
	// readable without ever unlocking.
	require.NoError(t, core.Secrets.Store("telemetry/device-id", "dev-42"))

	value, found, err := core.Secrets.Get("telemetry/device-id")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dev-42", value)
}

func TestFallbackSecretReadableAfterRekey(t *testing.T) {
	core := newTestCore(t)

	require.NoError(t, core.Secrets.Store("written-while-locked", "v"))

	// Unlocking rekeys the provider stores, but the facade's fallback key is
	// stable, so the row stays readable.
	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	value, found, err := core.Secrets.Get("written-while-locked")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestSecretGetAbsentKeyIsNotAnError(t *testing.T) {
	core := newTestCore(t)

	value, found, err := core.Secrets.Get("never-written")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestMasterKeyedSecretRequiresUnlockedVault(t *testing.T) {
	core := newTestCore(t)

	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, core.Secrets.Store("api/master-only", "sealed"))

	core.Lock()

	// The row exists but was sealed under the master key: reading it now
	// must fail with MasterRequired instead of trying the fallback key.
	_, _, err = core.Secrets.Get("api/master-only")
	assert.ErrorIs(t, err, ErrMasterRequired)

	ok, err = core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	value, found, err := core.Secrets.Get("api/master-only")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "sealed", value)
}

func TestSecretOverwriteSwitchesKey(t *testing.T) {
	core := newTestCore(t)

	require.NoError(t, core.Secrets.Store("flip", "v1"))

	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	// Overwriting while unlocked reseals under the master key.
	require.NoError(t, core.Secrets.Store("flip", "v2"))

	core.Lock()

	_, _, err = core.Secrets.Get("flip")
	assert.ErrorIs(t, err, ErrMasterRequired)
}

func TestSecretDelete(t *testing.T) {
	core := newTestCore(t)

	require.NoError(t, core.Secrets.Store("doomed", "x"))
	require.NoError(t, core.Secrets.Delete("doomed"))

	_, found, err := core.Secrets.Get("doomed")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting an absent key is a no-op.
	require.NoError(t, core.Secrets.Delete("doomed"))
}
