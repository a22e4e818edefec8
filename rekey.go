package gitbrowser

import (
	"errors"
	"sync"

	"github.com/gothtr/gitbrowser/audit"
	"github.com/gothtr/gitbrowser/internal/debug"
)

// RekeyCoordinator migrates registered provider stores from their fallback
// keys to the master key after a successful unlock.
type RekeyCoordinator struct {
	mu     *sync.Mutex
	stores []*ProviderStore
	audit  audit.Logger
}

func newRekeyCoordinator(mu *sync.Mutex, auditLogger audit.Logger, stores ...*ProviderStore) *RekeyCoordinator {
	return &RekeyCoordinator{
		mu:     mu,
		stores: stores,
		audit:  auditLogger,
	}
}

// RekeyAll re-encrypts every registered store's rows under masterKey and
// switches each store's active key to it.
//
// One store failing does not block the others; the errors of all failed
// stores are joined into the returned error. A store that fails keeps its
// rows and its previous key exactly as they were, so a later attempt can
// still succeed.
func (rc *RekeyCoordinator) RekeyAll(masterKey []byte) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	var errs error
	for _, store := range rc.stores {
		if err := store.rekeyLocked(masterKey); err != nil {
			errs = errors.Join(errs, err)
			debug.Print("rekey of %s failed: %v", store.name, err)
		}
	}
	if rc.audit != nil {
		_ = rc.audit.Log("rekey.all", errs == nil, map[string]interface{}{"stores": len(rc.stores)})
	}
	return errs
}
