package gitbrowser

import (
	"fmt"
	"sync"

	"github.com/gothtr/gitbrowser/audit"
	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/persist"
)

// Core is the vault context object. It owns the persistent store, the audit
// logger, and the single mutex every component serializes on, and wires the
// master vault, the provider stores, the rekey coordinator, and the secret
// facade together.
//
// All state that used to be process-global in earlier designs lives here; a
// program opens one Core and passes it around explicitly.
type Core struct {
	mu      sync.Mutex
	options Options
	store   persist.Store
	audit   audit.Logger

	// Vault guards the master-keyed credentials.
	Vault *MasterVault

	// GitHub holds the OAuth token of the signed-in GitHub account.
	GitHub *ProviderStore

	// AIKeys holds one API key per AI provider, keyed by slot.
	AIKeys *ProviderStore

	// Secrets is the generic named-secret facade.
	Secrets *SecretStore

	rekey   *RekeyCoordinator
	rekeyed bool
	closed  bool
}

// Open validates options, opens the SQLite store, and builds a locked Core.
// The caller must Close it when done.
func Open(options Options) (*Core, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	auditLogger, err := audit.NewLogger(options.Audit)
	if err != nil {
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	store, err := persist.NewSQLiteStore(options.DBPath)
	if err != nil {
		_ = auditLogger.Close()
		return nil, err
	}

	c := &Core{
		options: options,
		store:   store,
		audit:   auditLogger,
	}
	c.Vault = newMasterVault(&c.mu, store, auditLogger)
	c.GitHub = newProviderStore(&c.mu, store, auditLogger, ProviderGitHub, githubFallbackPassphrase, githubFallbackSalt)
	c.AIKeys = newProviderStore(&c.mu, store, auditLogger, ProviderAIKeys, aiFallbackPassphrase, aiFallbackSalt)
	c.Secrets = newSecretStore(&c.mu, store, auditLogger, c.Vault, aiFallbackPassphrase, aiFallbackSalt)
	c.rekey = newRekeyCoordinator(&c.mu, auditLogger, c.GitHub, c.AIKeys)
	return c, nil
}

// Unlock unlocks the master vault and, on the first successful unlock of this
// session, migrates the provider stores to the master key. A wrong password
// returns (false, nil). A rekey failure does not undo the unlock; it is
// returned so the caller can surface it, and the next successful Unlock will
// retry the stores that failed.
func (c *Core) Unlock(password string) (bool, error) {
	ok, err := c.Vault.Unlock(password)
	if err != nil || !ok {
		return ok, err
	}
	if c.sessionRekeyed() {
		return true, nil
	}
	if err = c.ForceRekey(); err != nil {
		return true, err
	}
	return true, nil
}

// UnlockFromEnv unlocks using the password held in the environment variable
// named by Options.EnvPassphraseVar.
func (c *Core) UnlockFromEnv() (bool, error) {
	password, err := c.options.passphraseFromEnv()
	if err != nil {
		return false, err
	}
	return c.Unlock(password)
}

// Lock locks the master vault. Provider stores keep whatever key they
// currently hold; rekeyed rows stay under the master key and simply become
// unreadable until the next unlock.
func (c *Core) Lock() {
	c.Vault.Lock()
}

// ForceRekey runs the provider-store migration now, regardless of whether it
// already ran this session. The vault must be unlocked.
func (c *Core) ForceRekey() error {
	masterKey, err := c.Vault.DerivedKey()
	if err != nil {
		return err
	}
	defer crypto.Zeroize(masterKey)

	if err = c.rekey.RekeyAll(masterKey); err != nil {
		return err
	}
	c.mu.Lock()
	c.rekeyed = true
	c.mu.Unlock()
	return nil
}

func (c *Core) sessionRekeyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rekeyed
}

// Close locks the vault and releases the store and audit logger. A closed
// Core must not be used again.
func (c *Core) Close() error {
	c.Vault.Lock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.audit.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing core: %v", errs)
	}
	return nil
}
