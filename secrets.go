package gitbrowser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gothtr/gitbrowser/audit"
	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/persist"
)

// SecretStore is the generic named-secret facade at the process boundary.
//
// Writes prefer the master key: when the vault is unlocked the value is
// sealed under the live master key and the row is marked uses_master. When it
// is locked a fixed fallback key is used instead, so a secret can always be
// written. Reads refuse to cross keys: a master-keyed row read while the
// vault is locked fails with ErrMasterRequired instead of attempting the
// fallback key.
//
// The fallback key is derived once at construction and never swapped, unlike
// a provider store's active key. Rows marked uses_master=false therefore
// stay readable across unlocks, rekeys, and restarts.
type SecretStore struct {
	mu          *sync.Mutex
	store       persist.Store
	audit       audit.Logger
	vault       *MasterVault
	fallbackKey []byte
}

func newSecretStore(mu *sync.Mutex, store persist.Store, auditLogger audit.Logger, vault *MasterVault, passphrase, salt string) *SecretStore {
	return &SecretStore{
		mu:          mu,
		store:       store,
		audit:       auditLogger,
		vault:       vault,
		fallbackKey: crypto.DeriveKey(passphrase, []byte(salt)),
	}
}

// Store seals value under the master key if the vault is unlocked, otherwise
// under the fallback key, and records which one was used.
func (s *SecretStore) Store(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usesMaster := s.vault.key != nil
	encKey, err := s.encryptionKeyLocked(usesMaster)
	if err != nil {
		return err
	}
	blob, err := crypto.Encrypt([]byte(value), encKey)
	crypto.Zeroize(encKey)
	if err != nil {
		return err
	}
	rec := &persist.SecretRecord{
		Key:        key,
		Blob:       *blob,
		UsesMaster: usesMaster,
		UpdatedAt:  time.Now().Unix(),
	}
	if err = s.store.SaveSecret(rec); err != nil {
		return err
	}
	s.logEvent("secret.store", true, map[string]interface{}{"key": key, "uses_master": usesMaster})
	return nil
}

// Get returns the decrypted value for key. The second return value is false
// when no such secret exists; absence is not an error. A master-keyed row
// read while the vault is locked fails with ErrMasterRequired.
func (s *SecretStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.LoadSecret(key)
	if errors.Is(err, persist.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if rec.UsesMaster && s.vault.key == nil {
		return "", false, fmt.Errorf("secret %s: %w", key, ErrMasterRequired)
	}
	encKey, err := s.encryptionKeyLocked(rec.UsesMaster)
	if err != nil {
		return "", false, err
	}
	plain, err := crypto.Decrypt(&rec.Blob, encKey)
	crypto.Zeroize(encKey)
	if err != nil {
		return "", false, fmt.Errorf("decrypting secret %s: %w", key, err)
	}
	value := string(plain)
	crypto.Zeroize(plain)
	return value, true, nil
}

// Delete removes the secret if present. Deleting an absent key is a no-op.
func (s *SecretStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.DeleteSecret(key)
	if err != nil && !errors.Is(err, persist.ErrNotFound) {
		return err
	}
	s.logEvent("secret.delete", true, map[string]interface{}{"key": key})
	return nil
}

// encryptionKeyLocked returns a fresh copy of either the live master key or
// the fallback key. The caller must hold the mutex and must Zeroize the copy.
func (s *SecretStore) encryptionKeyLocked(usesMaster bool) ([]byte, error) {
	if usesMaster {
		return s.vault.sessionKeyLocked()
	}
	key := make([]byte, len(s.fallbackKey))
	copy(key, s.fallbackKey)
	return key, nil
}

func (s *SecretStore) logEvent(action string, success bool, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(action, success, metadata)
}
