package gitbrowser

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/persist"
)

// failingUpdateStore delegates to a real store but fails every credential
// update, simulating a write error from the backend.
type failingUpdateStore struct {
	persist.Store
}

func (s *failingUpdateStore) UpdateCredential(string, *string, *crypto.EncryptedBlob, int64) error {
	return &persist.StoreError{Op: "update_credential", Err: errors.New("disk full")}
}

// failingBatchStore delegates to a real store but fails the transactional
// provider-auth rewrite used by rekeying.
type failingBatchStore struct {
	persist.Store
}

func (s *failingBatchStore) SaveProviderAuthBatch([]*persist.ProviderAuthRecord) error {
	return &persist.StoreError{Op: "save_provider_auth_batch", Err: errors.New("disk full")}
}

func newFailureTestStore(t *testing.T) *persist.SQLiteStore {
	t.Helper()
	store, err := persist.NewSQLiteStore(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestUpdateCredentialFailureLeavesRecordUntouched(t *testing.T) {
	store := newFailureTestStore(t)
	var mu sync.Mutex
	vault := newMasterVault(&mu, &failingUpdateStore{Store: store}, nil)

	ok, err := vault.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	id, err := vault.SaveCredential("https://example.com", "alice", "old-pw")
	require.NoError(t, err)

	// A combined username+password update that fails to persist must not
	// commit either field.
	newName := "mallory"
	newPw := "new-pw"
	err = vault.UpdateCredential(id, &newName, &newPw)
	require.Error(t, err)

	rec, err := store.GetCredential(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	plain, err := vault.DecryptPassword(id)
	require.NoError(t, err)
	assert.Equal(t, "old-pw", plain)
}

func TestFailedRekeyWriteKeepsSlotsReadable(t *testing.T) {
	store := newFailureTestStore(t)
	var mu sync.Mutex
	prov := newProviderStore(&mu, &failingBatchStore{Store: store}, nil,
		ProviderAIKeys, aiFallbackPassphrase, aiFallbackSalt)

	require.NoError(t, prov.Store("openai", "sk-one", "", ""))
	require.NoError(t, prov.Store("anthropic", "sk-two", "", ""))

	masterKey := crypto.DeriveKey("master-pw", []byte("some-salt-bytes!"))
	defer crypto.Zeroize(masterKey)

	mu.Lock()
	err := prov.rekeyLocked(masterKey)
	mu.Unlock()
	require.Error(t, err)

	// A failed rewrite must not strand any slot under the master key: the
	// store keeps its fallback key and every slot decrypts with it.
	assert.Equal(t, KeyFallback, prov.KeyProvenance())
	for slot, want := range map[string]string{"openai": "sk-one", "anthropic": "sk-two"} {
		secret, found, gerr := prov.Get(slot)
		require.NoError(t, gerr)
		require.True(t, found)
		assert.Equal(t, want, secret.Value)
	}

	// Rows on disk are still the originals, not re-encrypted ones.
	recs, err := store.ListProviderAuth(ProviderAIKeys)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
