package persist

import (
	"errors"
	"fmt"

	"github.com/gothtr/gitbrowser/internal/crypto"
)

// Reserved names for vault-internal metadata rows. They live in a dedicated
// table and never appear in credential listings.
const (
	MetaMasterSalt   = "master_salt"
	MetaVerification = "master_verify"
)

// ErrNotFound is returned by lookups when no row exists for the given key.
// Absence is a normal outcome for most callers, not a failure.
var ErrNotFound = errors.New("not found")

// StoreError wraps a failure of the underlying storage backend.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("persistence error in %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeErr wraps err unless it is nil or already a lookup miss.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// CredentialRecord is a persisted credential row. The password is stored only
// as an encrypted blob; the record never carries plaintext.
type CredentialRecord struct {
	ID        string               `json:"id"`
	URL       string               `json:"url"`
	Username  string               `json:"username"`
	Password  crypto.EncryptedBlob `json:"password"`
	CreatedAt int64                `json:"created_at"`
	UpdatedAt int64                `json:"updated_at"`
}

// ProviderAuthRecord is one provider secret slot: the encrypted token plus
// non-sensitive display fields.
type ProviderAuthRecord struct {
	Provider  string
	Slot      string
	Token     crypto.EncryptedBlob
	Login     string
	AvatarURL string
	UpdatedAt int64
}

// SecretRecord is one row of the generic named-secret store. UsesMaster
// records which key protected the blob at write time so reads can refuse a
// cross-key decryption attempt.
type SecretRecord struct {
	Key        string
	Blob       crypto.EncryptedBlob
	UsesMaster bool
	UpdatedAt  int64
}

// Store is the persistence boundary of the vault core. All blobs crossing it
// are already encrypted by the caller; a Store never sees plaintext secrets.
//
// Implementations are accessed serially under the vault's lock and need no
// internal row-level locking.
type Store interface {
	// Vault-internal metadata (master salt, verification token).

	SaveMeta(name string, value []byte) error
	LoadMeta(name string) ([]byte, error)
	MetaExists(name string) (bool, error)

	// Credentials.

	InsertCredential(rec *CredentialRecord) error
	UpsertCredential(rec *CredentialRecord) error
	GetCredential(id string) (*CredentialRecord, error)
	CredentialsByURL(url string) ([]*CredentialRecord, error)
	ListCredentials() ([]*CredentialRecord, error)
	// UpdateCredential applies the non-nil fields in a single statement so a
	// failure never commits half of an update.
	UpdateCredential(id string, username *string, blob *crypto.EncryptedBlob, updatedAt int64) error
	DeleteCredential(id string) error

	// Provider auth slots.

	SaveProviderAuth(rec *ProviderAuthRecord) error
	// SaveProviderAuthBatch writes every record in one transaction: either
	// all of them land or none does.
	SaveProviderAuthBatch(recs []*ProviderAuthRecord) error
	LoadProviderAuth(provider, slot string) (*ProviderAuthRecord, error)
	ListProviderAuth(provider string) ([]*ProviderAuthRecord, error)
	ClearProviderAuth(provider string) error

	// Generic named secrets.

	SaveSecret(rec *SecretRecord) error
	LoadSecret(key string) (*SecretRecord, error)
	DeleteSecret(key string) error

	// Lifecycle.

	Close() error
	GetType() string
}
