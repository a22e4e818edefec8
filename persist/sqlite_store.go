package persist

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/internal/debug"
	_ "modernc.org/sqlite"
)

const (
	// FilePermissions for the database file: user read + write only.
	FilePermissions os.FileMode = 0600

	// DirPermissions for the directory holding the database.
	DirPermissions os.FileMode = 0700
)

// SQLiteStore implements Store on an embedded SQLite database. One database
// file holds the credential vault, the vault-internal metadata, the
// per-provider auth slots, and the generic secret table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS credentials (
    id         TEXT PRIMARY KEY,
    url        TEXT NOT NULL,
    username   TEXT NOT NULL,
    ciphertext BLOB NOT NULL,
    nonce      BLOB NOT NULL,
    auth_tag   BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credentials_url ON credentials(url);

CREATE TABLE IF NOT EXISTS vault_meta (
    name       TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_auth (
    provider   TEXT NOT NULL,
    slot       TEXT NOT NULL,
    ciphertext BLOB NOT NULL,
    nonce      BLOB NOT NULL,
    auth_tag   BLOB NOT NULL,
    login      TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (provider, slot)
);

CREATE TABLE IF NOT EXISTS secure_store (
    key         TEXT PRIMARY KEY,
    ciphertext  BLOB NOT NULL,
    nonce       BLOB NOT NULL,
    auth_tag    BLOB NOT NULL,
    updated_at  INTEGER NOT NULL,
    uses_master INTEGER NOT NULL DEFAULT 0
);
`

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the schema exists. The containing directory is created with
// restrictive permissions.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, &StoreError{Op: "open", Err: errors.New("empty database path")}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DirPermissions); err != nil {
			return nil, &StoreError{Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	// The store is accessed serially under the vault lock; a single
	// connection avoids SQLITE_BUSY on concurrent writes from pooling.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(sqliteDDL); err != nil {
		db.Close()
		return nil, &StoreError{Op: "migrate", Err: err}
	}

	// Restrict the database file itself, not only the directory.
	if err = os.Chmod(path, FilePermissions); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}

	debug.Print("sqlite store opened at %s\n", path)
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) SaveMeta(name string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO vault_meta(name, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, nowUnix())
	return storeErr("save_meta", err)
}

func (s *SQLiteStore) LoadMeta(name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM vault_meta WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("load_meta", err)
	}
	return value, nil
}

func (s *SQLiteStore) MetaExists(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM vault_meta WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, storeErr("meta_exists", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertCredential(rec *CredentialRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials(id, url, username, ciphertext, nonce, auth_tag, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.Username,
		rec.Password.Ciphertext, rec.Password.Nonce, rec.Password.Tag,
		rec.CreatedAt, rec.UpdatedAt)
	return storeErr("insert_credential", err)
}

func (s *SQLiteStore) UpsertCredential(rec *CredentialRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials(id, url, username, ciphertext, nonce, auth_tag, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   url = excluded.url, username = excluded.username,
		   ciphertext = excluded.ciphertext, nonce = excluded.nonce, auth_tag = excluded.auth_tag,
		   updated_at = excluded.updated_at`,
		rec.ID, rec.URL, rec.Username,
		rec.Password.Ciphertext, rec.Password.Nonce, rec.Password.Tag,
		rec.CreatedAt, rec.UpdatedAt)
	return storeErr("upsert_credential", err)
}

const credentialColumns = `id, url, username, ciphertext, nonce, auth_tag, created_at, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (*CredentialRecord, error) {
	rec := &CredentialRecord{}
	err := row.Scan(&rec.ID, &rec.URL, &rec.Username,
		&rec.Password.Ciphertext, &rec.Password.Nonce, &rec.Password.Tag,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) GetCredential(id string) (*CredentialRecord, error) {
	row := s.db.QueryRow(`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
	rec, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_credential", err)
	}
	return rec, nil
}

func (s *SQLiteStore) CredentialsByURL(url string) ([]*CredentialRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+credentialColumns+` FROM credentials WHERE url = ? ORDER BY updated_at DESC`, url)
	if err != nil {
		return nil, storeErr("credentials_by_url", err)
	}
	return collectCredentials(rows, "credentials_by_url")
}

func (s *SQLiteStore) ListCredentials() ([]*CredentialRecord, error) {
	rows, err := s.db.Query(
		`SELECT ` + credentialColumns + ` FROM credentials ORDER BY updated_at DESC`)
	if err != nil {
		return nil, storeErr("list_credentials", err)
	}
	return collectCredentials(rows, "list_credentials")
}

func collectCredentials(rows *sql.Rows, op string) ([]*CredentialRecord, error) {
	defer rows.Close()
	var recs []*CredentialRecord
	for rows.Next() {
		rec, err := scanCredential(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		recs = append(recs, rec)
	}
	return recs, storeErr(op, rows.Err())
}

func (s *SQLiteStore) UpdateCredential(id string, username *string, blob *crypto.EncryptedBlob, updatedAt int64) error {
	set := []string{"updated_at = ?"}
	args := []interface{}{updatedAt}
	if username != nil {
		set = append(set, "username = ?")
		args = append(args, *username)
	}
	if blob != nil {
		set = append(set, "ciphertext = ?", "nonce = ?", "auth_tag = ?")
		args = append(args, blob.Ciphertext, blob.Nonce, blob.Tag)
	}
	args = append(args, id)
	res, err := s.db.Exec(
		`UPDATE credentials SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	return checkUpdated(res, err, "update_credential")
}

func (s *SQLiteStore) DeleteCredential(id string) error {
	res, err := s.db.Exec(`DELETE FROM credentials WHERE id = ?`, id)
	return checkUpdated(res, err, "delete_credential")
}

// checkUpdated maps a zero-row mutation onto ErrNotFound.
func checkUpdated(res sql.Result, err error, op string) error {
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const providerAuthUpsert = `
INSERT INTO provider_auth(provider, slot, ciphertext, nonce, auth_tag, login, avatar_url, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, slot) DO UPDATE SET
  ciphertext = excluded.ciphertext, nonce = excluded.nonce, auth_tag = excluded.auth_tag,
  login = excluded.login, avatar_url = excluded.avatar_url, updated_at = excluded.updated_at`

func providerAuthArgs(rec *ProviderAuthRecord) []interface{} {
	return []interface{}{
		rec.Provider, rec.Slot,
		rec.Token.Ciphertext, rec.Token.Nonce, rec.Token.Tag,
		rec.Login, rec.AvatarURL, rec.UpdatedAt,
	}
}

func (s *SQLiteStore) SaveProviderAuth(rec *ProviderAuthRecord) error {
	_, err := s.db.Exec(providerAuthUpsert, providerAuthArgs(rec)...)
	return storeErr("save_provider_auth", err)
}

func (s *SQLiteStore) SaveProviderAuthBatch(recs []*ProviderAuthRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return storeErr("save_provider_auth_batch", err)
	}
	for _, rec := range recs {
		if _, err = tx.Exec(providerAuthUpsert, providerAuthArgs(rec)...); err != nil {
			_ = tx.Rollback()
			return storeErr("save_provider_auth_batch", err)
		}
	}
	return storeErr("save_provider_auth_batch", tx.Commit())
}

func (s *SQLiteStore) LoadProviderAuth(provider, slot string) (*ProviderAuthRecord, error) {
	rec := &ProviderAuthRecord{}
	err := s.db.QueryRow(
		`SELECT provider, slot, ciphertext, nonce, auth_tag, login, avatar_url, updated_at
		 FROM provider_auth WHERE provider = ? AND slot = ?`, provider, slot).
		Scan(&rec.Provider, &rec.Slot,
			&rec.Token.Ciphertext, &rec.Token.Nonce, &rec.Token.Tag,
			&rec.Login, &rec.AvatarURL, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("load_provider_auth", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListProviderAuth(provider string) ([]*ProviderAuthRecord, error) {
	rows, err := s.db.Query(
		`SELECT provider, slot, ciphertext, nonce, auth_tag, login, avatar_url, updated_at
		 FROM provider_auth WHERE provider = ? ORDER BY slot`, provider)
	if err != nil {
		return nil, storeErr("list_provider_auth", err)
	}
	defer rows.Close()

	var recs []*ProviderAuthRecord
	for rows.Next() {
		rec := &ProviderAuthRecord{}
		if err := rows.Scan(&rec.Provider, &rec.Slot,
			&rec.Token.Ciphertext, &rec.Token.Nonce, &rec.Token.Tag,
			&rec.Login, &rec.AvatarURL, &rec.UpdatedAt); err != nil {
			return nil, storeErr("list_provider_auth", err)
		}
		recs = append(recs, rec)
	}
	return recs, storeErr("list_provider_auth", rows.Err())
}

func (s *SQLiteStore) ClearProviderAuth(provider string) error {
	_, err := s.db.Exec(`DELETE FROM provider_auth WHERE provider = ?`, provider)
	return storeErr("clear_provider_auth", err)
}

func (s *SQLiteStore) SaveSecret(rec *SecretRecord) error {
	usesMaster := 0
	if rec.UsesMaster {
		usesMaster = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO secure_store(key, ciphertext, nonce, auth_tag, updated_at, uses_master)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   ciphertext = excluded.ciphertext, nonce = excluded.nonce, auth_tag = excluded.auth_tag,
		   updated_at = excluded.updated_at, uses_master = excluded.uses_master`,
		rec.Key, rec.Blob.Ciphertext, rec.Blob.Nonce, rec.Blob.Tag,
		rec.UpdatedAt, usesMaster)
	return storeErr("save_secret", err)
}

func (s *SQLiteStore) LoadSecret(key string) (*SecretRecord, error) {
	rec := &SecretRecord{}
	var usesMaster int
	err := s.db.QueryRow(
		`SELECT key, ciphertext, nonce, auth_tag, updated_at, uses_master
		 FROM secure_store WHERE key = ?`, key).
		Scan(&rec.Key, &rec.Blob.Ciphertext, &rec.Blob.Nonce, &rec.Blob.Tag,
			&rec.UpdatedAt, &usesMaster)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("load_secret", err)
	}
	rec.UsesMaster = usesMaster != 0
	return rec, nil
}

func (s *SQLiteStore) DeleteSecret(key string) error {
	_, err := s.db.Exec(`DELETE FROM secure_store WHERE key = ?`, key)
	return storeErr("delete_secret", err)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) GetType() string { return "sqlite" }

// Path returns the database file location, for diagnostics.
func (s *SQLiteStore) Path() string { return s.path }

var _ Store = (*SQLiteStore)(nil)

func nowUnix() int64 {
	return time.Now().Unix()
}
