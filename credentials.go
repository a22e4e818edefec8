package gitbrowser

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/persist"
)

// Credential is the caller-facing view of a stored credential. The password
// stays encrypted; DecryptPassword is a separate, explicit call per entry.
type Credential struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func credentialFromRecord(rec *persist.CredentialRecord) Credential {
	return Credential{
		ID:        rec.ID,
		URL:       rec.URL,
		Username:  rec.Username,
		CreatedAt: time.Unix(rec.CreatedAt, 0),
		UpdatedAt: time.Unix(rec.UpdatedAt, 0),
	}
}

// SaveCredential encrypts password under the master key and stores a new
// credential row, returning its generated id. Fails with ErrVaultLocked while
// the vault is locked.
func (v *MasterVault) SaveCredential(url, username, password string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.sessionKeyLocked()
	if err != nil {
		return "", err
	}
	defer crypto.Zeroize(key)

	blob, err := crypto.Encrypt([]byte(password), key)
	if err != nil {
		return "", err
	}

	now := time.Now().Unix()
	rec := &persist.CredentialRecord{
		ID:        uuid.NewString(),
		URL:       url,
		Username:  username,
		Password:  *blob,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = v.store.InsertCredential(rec); err != nil {
		v.logEvent("credential.save", false, map[string]interface{}{"url": url})
		return "", err
	}
	v.logEvent("credential.save", true, map[string]interface{}{"url": url, "id": rec.ID})
	return rec.ID, nil
}

// Credentials returns every credential stored for url, passwords still
// encrypted. Fails with ErrVaultLocked while the vault is locked.
func (v *MasterVault) Credentials(url string) ([]Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}
	recs, err := v.store.CredentialsByURL(url)
	if err != nil {
		return nil, err
	}
	out := make([]Credential, 0, len(recs))
	for _, rec := range recs {
		out = append(out, credentialFromRecord(rec))
	}
	return out, nil
}

// ListCredentials returns every credential in the vault, passwords still
// encrypted. Fails with ErrVaultLocked while the vault is locked.
func (v *MasterVault) ListCredentials() ([]Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}
	recs, err := v.store.ListCredentials()
	if err != nil {
		return nil, err
	}
	out := make([]Credential, 0, len(recs))
	for _, rec := range recs {
		out = append(out, credentialFromRecord(rec))
	}
	return out, nil
}

// DecryptPassword decrypts the password of the credential identified by id.
// Fails with ErrVaultLocked while the vault is locked and ErrNotFound when no
// such credential exists.
func (v *MasterVault) DecryptPassword(id string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.sessionKeyLocked()
	if err != nil {
		return "", err
	}
	defer crypto.Zeroize(key)

	rec, err := v.store.GetCredential(id)
	if err != nil {
		return "", err
	}
	plain, err := crypto.Decrypt(&rec.Password, key)
	if err != nil {
		v.logEvent("credential.decrypt", false, map[string]interface{}{"id": id})
		return "", fmt.Errorf("decrypting credential %s: %w", id, err)
	}
	password := string(plain)
	crypto.Zeroize(plain)
	v.logEvent("credential.decrypt", true, map[string]interface{}{"id": id})
	return password, nil
}

// UpdateCredential changes the username, the password, or both on an existing
// credential. Nil arguments leave the corresponding field untouched. Fails
// with ErrVaultLocked while the vault is locked and ErrNotFound when no such
// credential exists.
func (v *MasterVault) UpdateCredential(id string, username, password *string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.sessionKeyLocked()
	if err != nil {
		return err
	}
	defer crypto.Zeroize(key)

	if username == nil && password == nil {
		return nil
	}
	// Encrypt before touching the store so a crypto failure commits nothing,
	// and apply both fields in one store call so a persistence failure cannot
	// commit half of the update.
	var blob *crypto.EncryptedBlob
	if password != nil {
		blob, err = crypto.Encrypt([]byte(*password), key)
		if err != nil {
			return err
		}
	}
	if err = v.store.UpdateCredential(id, username, blob, time.Now().Unix()); err != nil {
		return err
	}
	v.logEvent("credential.update", true, map[string]interface{}{"id": id})
	return nil
}

// DeleteCredential removes the credential identified by id. Fails with
// ErrVaultLocked while the vault is locked and ErrNotFound when no such
// credential exists.
func (v *MasterVault) DeleteCredential(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrVaultLocked
	}
	if err := v.store.DeleteCredential(id); err != nil {
		return err
	}
	v.logEvent("credential.delete", true, map[string]interface{}{"id": id})
	return nil
}
