package gitbrowser

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/internal/debug"
	"github.com/gothtr/gitbrowser/persist"
)

// archiveVersion identifies the export container layout.
const archiveVersion = "1.0"

// exportArchive is the self-contained container written to an ArchiveSink.
// The payload is encrypted under a key derived from the export password and
// the embedded salt, completely decoupled from the live vault key, so an
// archive can be restored into any vault that knows the export password.
type exportArchive struct {
	ArchiveID string               `json:"archive_id"`
	CreatedAt time.Time            `json:"created_at"`
	Version   string               `json:"version"`
	Count     int                  `json:"credential_count"`
	Salt      []byte               `json:"salt"`
	Payload   crypto.EncryptedBlob `json:"payload"`
	Checksum  string               `json:"checksum"`
}

// ExportCredentials writes every credential, re-encrypted under a fresh key
// derived from exportPassword, to the sink under the given archive name. The
// vault must be unlocked: the rows are decrypted with the master key before
// being sealed into the archive. Returns the number of credentials exported.
func (v *MasterVault) ExportCredentials(exportPassword string, sink persist.ArchiveSink, name string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	masterKey, err := v.sessionKeyLocked()
	if err != nil {
		return 0, err
	}
	defer crypto.Zeroize(masterKey)

	recs, err := v.store.ListCredentials()
	if err != nil {
		return 0, err
	}

	// Re-encrypt each password under the export key so the archive does not
	// depend on the vault's salt or master password.
	salt := crypto.GenerateSalt()
	exportKey := crypto.DeriveKey(exportPassword, salt)
	defer crypto.Zeroize(exportKey)

	portable := make([]persist.CredentialRecord, 0, len(recs))
	for _, rec := range recs {
		plain, derr := crypto.Decrypt(&rec.Password, masterKey)
		if derr != nil {
			return 0, fmt.Errorf("exporting credential %s: %w", rec.ID, derr)
		}
		blob, eerr := crypto.Encrypt(plain, exportKey)
		crypto.Zeroize(plain)
		if eerr != nil {
			return 0, eerr
		}
		out := *rec
		out.Password = *blob
		portable = append(portable, out)
	}

	payload, err := json.Marshal(portable)
	if err != nil {
		return 0, fmt.Errorf("encoding export payload: %w", err)
	}
	sealed, err := crypto.Encrypt(payload, exportKey)
	crypto.Zeroize(payload)
	if err != nil {
		return 0, err
	}

	sum := sha256.Sum256(sealed.Ciphertext)
	archive := exportArchive{
		ArchiveID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Version:   archiveVersion,
		Count:     len(portable),
		Salt:      salt,
		Payload:   *sealed,
		Checksum:  hex.EncodeToString(sum[:]),
	}
	data, err := json.Marshal(&archive)
	if err != nil {
		return 0, fmt.Errorf("encoding export archive: %w", err)
	}
	if err = sink.Put(name, data); err != nil {
		return 0, err
	}
	v.logEvent("vault.export", true, map[string]interface{}{"archive": name, "count": archive.Count})
	debug.Print("exported %d credentials to %s", archive.Count, name)
	return archive.Count, nil
}

// ImportCredentials reads an archive from the sink, decrypts it with
// exportPassword, and upserts every credential by id, re-encrypted under the
// live master key. The vault must be unlocked. Returns the number of
// credentials imported.
func (v *MasterVault) ImportCredentials(exportPassword string, sink persist.ArchiveSink, name string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	masterKey, err := v.sessionKeyLocked()
	if err != nil {
		return 0, err
	}
	defer crypto.Zeroize(masterKey)

	data, err := sink.Get(name)
	if err != nil {
		return 0, err
	}
	var archive exportArchive
	if err = json.Unmarshal(data, &archive); err != nil {
		return 0, fmt.Errorf("corrupt export archive %s: %w", name, err)
	}
	if archive.Version != archiveVersion {
		return 0, fmt.Errorf("unsupported archive version %q", archive.Version)
	}
	sum := sha256.Sum256(archive.Payload.Ciphertext)
	if hex.EncodeToString(sum[:]) != archive.Checksum {
		return 0, fmt.Errorf("archive %s failed checksum verification", name)
	}

	exportKey := crypto.DeriveKey(exportPassword, archive.Salt)
	defer crypto.Zeroize(exportKey)

	payload, err := crypto.Decrypt(&archive.Payload, exportKey)
	if err != nil {
		return 0, fmt.Errorf("decrypting archive %s: %w", name, err)
	}
	var portable []persist.CredentialRecord
	err = json.Unmarshal(payload, &portable)
	crypto.Zeroize(payload)
	if err != nil {
		return 0, fmt.Errorf("corrupt archive payload: %w", err)
	}

	count := 0
	for i := range portable {
		rec := portable[i]
		plain, derr := crypto.Decrypt(&rec.Password, exportKey)
		if derr != nil {
			return count, fmt.Errorf("importing credential %s: %w", rec.ID, derr)
		}
		blob, eerr := crypto.Encrypt(plain, masterKey)
		crypto.Zeroize(plain)
		if eerr != nil {
			return count, eerr
		}
		rec.Password = *blob
		rec.UpdatedAt = time.Now().Unix()
		if serr := v.store.UpsertCredential(&rec); serr != nil {
			return count, serr
		}
		count++
	}
	v.logEvent("vault.import", true, map[string]interface{}{"archive": name, "count": count})
	debug.Print("imported %d credentials from %s", count, name)
	return count, nil
}
