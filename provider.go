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

// Fallback passphrases and salts for provider stores. They are deliberately
// fixed and compiled in: before any master password exists they give the
// provider secrets at-rest protection against casual file inspection, and
// after the first unlock every store is rekeyed to the master key anyway.
const (
	githubFallbackPassphrase = "gitbrowser-github-key-v1"
	githubFallbackSalt       = "gitbrowser-ghky"

	aiFallbackPassphrase = "gitbrowser-ai-key-v1"
	aiFallbackSalt       = "gitbrowser-aiky"
)

// Provider names and the default slot used by single-token providers.
const (
	ProviderGitHub = "github"
	ProviderAIKeys = "aikey"

	DefaultSlot = "default"
)

// KeyProvenance records which key a ProviderStore currently encrypts with.
type KeyProvenance int

const (
	// KeyFallback is the compiled-in passphrase-derived key a store starts
	// with.
	KeyFallback KeyProvenance = iota
	// KeyMaster means the store has been rekeyed to the master key.
	KeyMaster
)

func (p KeyProvenance) String() string {
	if p == KeyMaster {
		return "master"
	}
	return "fallback"
}

// ProviderSecret is a decrypted provider slot: the secret itself plus the
// non-sensitive display fields stored alongside it.
type ProviderSecret struct {
	Slot      string
	Value     string
	Login     string
	AvatarURL string
	UpdatedAt time.Time
}

// ProviderStore keeps the secrets of one external provider (an OAuth token, a
// set of API keys) encrypted under its currently active key.
//
// A store starts on its fallback key, derived at construction from a
// compiled-in passphrase and salt. The RekeyCoordinator is the only caller
// allowed to swap the active key to the master key. Locking the vault later
// does not swap it back; rows rekeyed to the master key stay under it.
type ProviderStore struct {
	mu    *sync.Mutex
	store persist.Store
	audit audit.Logger

	name      string
	activeKey []byte
	prov      KeyProvenance
}

func newProviderStore(mu *sync.Mutex, store persist.Store, auditLogger audit.Logger, name, passphrase, salt string) *ProviderStore {
	return &ProviderStore{
		mu:        mu,
		store:     store,
		audit:     auditLogger,
		name:      name,
		activeKey: crypto.DeriveKey(passphrase, []byte(salt)),
		prov:      KeyFallback,
	}
}

// Name returns the provider this store belongs to.
func (p *ProviderStore) Name() string { return p.name }

// KeyProvenance reports which key the store currently encrypts with.
func (p *ProviderStore) KeyProvenance() KeyProvenance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prov
}

// Store encrypts value under the active key and persists it in the named
// slot, replacing any previous secret there. Login and avatarURL are stored
// in the clear; they are display metadata, not secrets.
func (p *ProviderStore) Store(slot, value, login, avatarURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	blob, err := crypto.Encrypt([]byte(value), p.activeKey)
	if err != nil {
		return err
	}
	rec := &persist.ProviderAuthRecord{
		Provider:  p.name,
		Slot:      slot,
		Token:     *blob,
		Login:     login,
		AvatarURL: avatarURL,
		UpdatedAt: time.Now().Unix(),
	}
	if err = p.store.SaveProviderAuth(rec); err != nil {
		return err
	}
	p.logEvent("provider.store", true, map[string]interface{}{"provider": p.name, "slot": slot})
	return nil
}

// Get decrypts the secret in the named slot. The second return value is false
// when the slot is empty; that is not an error.
func (p *ProviderStore) Get(slot string) (*ProviderSecret, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.store.LoadProviderAuth(p.name, slot)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	plain, err := crypto.Decrypt(&rec.Token, p.activeKey)
	if err != nil {
		return nil, false, fmt.Errorf("decrypting %s/%s secret: %w", p.name, slot, err)
	}
	secret := &ProviderSecret{
		Slot:      rec.Slot,
		Value:     string(plain),
		Login:     rec.Login,
		AvatarURL: rec.AvatarURL,
		UpdatedAt: time.Unix(rec.UpdatedAt, 0),
	}
	crypto.Zeroize(plain)
	return secret, true, nil
}

// Slots lists the occupied slot names without decrypting anything.
func (p *ProviderStore) Slots() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	recs, err := p.store.ListProviderAuth(p.name)
	if err != nil {
		return nil, err
	}
	slots := make([]string, 0, len(recs))
	for _, rec := range recs {
		slots = append(slots, rec.Slot)
	}
	return slots, nil
}

// Clear removes every slot of this provider, used on logout. Clearing an
// empty store is a no-op.
func (p *ProviderStore) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.ClearProviderAuth(p.name); err != nil {
		return err
	}
	p.logEvent("provider.clear", true, map[string]interface{}{"provider": p.name})
	return nil
}

// IsAuthenticated reports whether any persisted slot exists for this
// provider. It is computed from the store, not from in-memory state, so it
// survives process restarts.
func (p *ProviderStore) IsAuthenticated() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	recs, err := p.store.ListProviderAuth(p.name)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

// rekeyLocked migrates every row of this provider from the active key to
// masterKey. The caller must hold the mutex.
//
// The migration is staged: every row is decrypted and re-encrypted in memory
// before anything is written, and the rewrite itself is a single
// transactional batch. On any failure no row is persisted and the active key
// is left unchanged, so the rows stay readable under the key that wrote them.
func (p *ProviderStore) rekeyLocked(masterKey []byte) error {
	if p.prov == KeyMaster {
		return nil
	}
	recs, err := p.store.ListProviderAuth(p.name)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		p.swapKeyLocked(masterKey)
		return nil
	}

	now := time.Now().Unix()
	for _, rec := range recs {
		plain, derr := crypto.Decrypt(&rec.Token, p.activeKey)
		if derr != nil {
			return fmt.Errorf("rekey %s: slot %s: %w", p.name, rec.Slot, derr)
		}
		blob, eerr := crypto.Encrypt(plain, masterKey)
		crypto.Zeroize(plain)
		if eerr != nil {
			return fmt.Errorf("rekey %s: slot %s: %w", p.name, rec.Slot, eerr)
		}
		rec.Token = *blob
		rec.UpdatedAt = now
	}

	if err = p.store.SaveProviderAuthBatch(recs); err != nil {
		return fmt.Errorf("rekey %s: %w", p.name, err)
	}
	p.swapKeyLocked(masterKey)
	p.logEvent("provider.rekey", true, map[string]interface{}{"provider": p.name, "slots": len(recs)})
	return nil
}

// swapKeyLocked replaces the active key with a copy of masterKey and wipes
// the old one.
func (p *ProviderStore) swapKeyLocked(masterKey []byte) {
	next := make([]byte, len(masterKey))
	copy(next, masterKey)
	crypto.Zeroize(p.activeKey)
	p.activeKey = next
	p.prov = KeyMaster
}

func (p *ProviderStore) logEvent(action string, success bool, metadata map[string]interface{}) {
	if p.audit == nil {
		return
	}
	_ = p.audit.Log(action, success, metadata)
}
