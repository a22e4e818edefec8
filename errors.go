package gitbrowser

import (
	"errors"

	"github.com/gothtr/gitbrowser/persist"
)

// Error sentinels for the vault core. Callers are expected to test with
// errors.Is; every error returned from this package wraps one of these or a
// persist.StoreError.
var (
	// ErrVaultLocked is returned by operations that need the master key while
	// the vault is locked.
	ErrVaultLocked = errors.New("vault is locked")

	// ErrMasterRequired is returned when a secret was written under the
	// master key but the vault is currently locked, so the row exists yet
	// cannot be decrypted.
	ErrMasterRequired = errors.New("master password required")

	// ErrNotFound mirrors persist.ErrNotFound so callers of the root package
	// do not have to import persist just to classify lookups.
	ErrNotFound = persist.ErrNotFound
)
