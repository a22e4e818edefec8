package gitbrowser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/gothtr/gitbrowser/audit"
	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/internal/debug"
	"github.com/gothtr/gitbrowser/persist"
)

// verificationMarker is the plaintext sealed into the verification token the
// first time a master password is set. Decrypting it back out is the only
// password check the vault ever performs; the master password itself is never
// stored in any form.
const verificationMarker = "gitbrowser-master-key-verify-v1"

func init() {
	memguard.CatchInterrupt()
}

// MasterVault holds the master-password-derived key and the credentials
// encrypted under it.
//
// The vault is a two-state machine: locked (no key material in memory) and
// unlocked (the derived key held inside a memguard enclave). All methods are
// safe for concurrent use; they share the single process-wide mutex owned by
// the Core, so at most one vault operation runs at a time.
type MasterVault struct {
	mu    *sync.Mutex
	store persist.Store
	audit audit.Logger

	// key is nil while locked. While unlocked it holds the PBKDF2-derived
	// AES-256 key sealed in an enclave; raw copies exist only for the
	// duration of a single encrypt or decrypt call.
	key *memguard.Enclave
}

func newMasterVault(mu *sync.Mutex, store persist.Store, auditLogger audit.Logger) *MasterVault {
	return &MasterVault{
		mu:    mu,
		store: store,
		audit: auditLogger,
	}
}

// Unlock derives a key from password and checks it against the stored
// verification token.
//
// On the very first unlock there is nothing to check against: a fresh random
// salt is generated, the verification token is sealed under the new key, and
// that password becomes the master password. A wrong password on a later
// unlock returns (false, nil) - it is an expected outcome, not an error.
// Unlocking an already unlocked vault re-verifies and replaces the held key.
func (v *MasterVault) Unlock(password string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	salt, err := v.loadOrCreateSalt()
	if err != nil {
		return false, err
	}

	key := crypto.DeriveKey(password, salt)
	defer crypto.Zeroize(key)

	blob, err := v.loadVerification()
	switch {
	case errors.Is(err, persist.ErrNotFound):
		// First unlock: seal the marker under the new key.
		if err = v.saveVerification(key); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	default:
		plain, derr := crypto.Decrypt(blob, key)
		if derr != nil {
			if errors.Is(derr, crypto.ErrAuthenticationFailed) {
				v.logEvent("vault.unlock", false, map[string]interface{}{"reason": "bad password"})
				return false, nil
			}
			return false, derr
		}
		markerOK := bytes.Equal(plain, []byte(verificationMarker))
		crypto.Zeroize(plain)
		if !markerOK {
			return false, fmt.Errorf("verification token decrypted to unexpected contents")
		}
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	// Re-unlocking an unlocked vault replaces the held key; wipe the old
	// enclave now rather than leaving it to the finalizer.
	if v.key != nil {
		if buf, oerr := v.key.Open(); oerr == nil {
			buf.Destroy()
		}
	}
	v.key = memguard.NewEnclave(keyCopy)
	v.logEvent("vault.unlock", true, nil)
	debug.Print("vault unlocked")
	return true, nil
}

// Lock wipes the held key and returns the vault to the locked state. Locking
// an already locked vault is a no-op.
func (v *MasterVault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key == nil {
		return
	}
	if buf, err := v.key.Open(); err == nil {
		buf.Destroy()
	}
	v.key = nil
	v.logEvent("vault.lock", true, nil)
	debug.Print("vault locked")
}

// IsInitialized reports whether a master password has ever been set, i.e.
// whether a verification token exists in the store. It works on a locked
// vault; callers use it to tell a first unlock from a wrong password prompt.
func (v *MasterVault) IsInitialized() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.MetaExists(persist.MetaVerification)
}

// IsUnlocked reports whether a master key is currently held.
func (v *MasterVault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key != nil
}

// DerivedKey returns a copy of the live master key, for callers that need to
// encrypt under it directly (the rekey coordinator does). Fails with
// ErrVaultLocked while locked. The caller owns the copy and must Zeroize it
// when done.
func (v *MasterVault) DerivedKey() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sessionKeyLocked()
}

// sessionKeyLocked is sessionKey for callers already holding the mutex.
func (v *MasterVault) sessionKeyLocked() ([]byte, error) {
	if v.key == nil {
		return nil, ErrVaultLocked
	}
	buf, err := v.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	key := make([]byte, len(buf.Bytes()))
	copy(key, buf.Bytes())
	buf.Destroy()
	return key, nil
}

func (v *MasterVault) loadOrCreateSalt() ([]byte, error) {
	salt, err := v.store.LoadMeta(persist.MetaMasterSalt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, persist.ErrNotFound) {
		return nil, err
	}
	salt = crypto.GenerateSalt()
	if err = v.store.SaveMeta(persist.MetaMasterSalt, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (v *MasterVault) loadVerification() (*crypto.EncryptedBlob, error) {
	raw, err := v.store.LoadMeta(persist.MetaVerification)
	if err != nil {
		return nil, err
	}
	var blob crypto.EncryptedBlob
	if err = json.Unmarshal(raw, &blob); err != nil {
		return nil, fmt.Errorf("corrupt verification token: %w", err)
	}
	return &blob, nil
}

func (v *MasterVault) saveVerification(key []byte) error {
	blob, err := crypto.Encrypt([]byte(verificationMarker), key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encoding verification token: %w", err)
	}
	return v.store.SaveMeta(persist.MetaVerification, raw)
}

func (v *MasterVault) logEvent(action string, success bool, metadata map[string]interface{}) {
	if v.audit == nil {
		return
	}
	_ = v.audit.Log(action, success, metadata)
}
