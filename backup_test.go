package gitbrowser

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothtr/gitbrowser/internal/crypto"
	"github.com/gothtr/gitbrowser/persist"
)

func newTestSink(t *testing.T) *persist.FileArchiveSink {
	t.Helper()
	sink, err := persist.NewFileArchiveSink(filepath.Join(t.TempDir(), "archives"))
	require.NoError(t, err)
	return sink
}

func TestExportImportRoundTrip(t *testing.T) {
	sink := newTestSink(t)

	source := newTestCore(t)
	ok, err := source.Unlock("source-pw")
	require.NoError(t, err)
	require.True(t, ok)

	id1, err := source.Vault.SaveCredential("https://a.example", "alice", "pw-a")
	require.NoError(t, err)
	id2, err := source.Vault.SaveCredential("https://b.example", "bob", "pw-b")
	require.NoError(t, err)

	count, err := source.Vault.ExportCredentials("export-pw", sink, "vault-export.json")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Restore into a fresh vault with a different master password.
	target := newTestCore(t)
	ok, err = target.Unlock("target-pw")
	require.NoError(t, err)
	require.True(t, ok)

	count, err = target.Vault.ImportCredentials("export-pw", sink, "vault-export.json")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	plain, err := target.Vault.DecryptPassword(id1)
	require.NoError(t, err)
	assert.Equal(t, "pw-a", plain)
	plain, err = target.Vault.DecryptPassword(id2)
	require.NoError(t, err)
	assert.Equal(t, "pw-b", plain)
}

func TestExportRequiresUnlockedVault(t *testing.T) {
	core := newTestCore(t)
	sink := newTestSink(t)

	_, err := core.Vault.ExportCredentials("export-pw", sink, "x.json")
	assert.ErrorIs(t, err, ErrVaultLocked)

	_, err = core.Vault.ImportCredentials("export-pw", sink, "x.json")
	assert.ErrorIs(t, err, ErrVaultLocked)
}

func TestImportWithWrongExportPassword(t *testing.T) {
	sink := newTestSink(t)

	core := newTestCore(t)
	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = core.Vault.SaveCredential("https://example.com", "alice", "secret")
	require.NoError(t, err)

	_, err = core.Vault.ExportCredentials("right-pw", sink, "export.json")
	require.NoError(t, err)

	_, err = core.Vault.ImportCredentials("wrong-pw", sink, "export.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
}

func TestImportUpsertsByID(t *testing.T) {
	sink := newTestSink(t)

	core := newTestCore(t)
	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	id, err := core.Vault.SaveCredential("https://example.com", "alice", "original")
	require.NoError(t, err)

	_, err = core.Vault.ExportCredentials("export-pw", sink, "export.json")
	require.NoError(t, err)

	// Change the live row, then re-import the archive: the archived password
	// wins because import upserts by id.
	changed := "changed"
	require.NoError(t, core.Vault.UpdateCredential(id, nil, &changed))

	count, err := core.Vault.ImportCredentials("export-pw", sink, "export.json")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	plain, err := core.Vault.DecryptPassword(id)
	require.NoError(t, err)
	assert.Equal(t, "original", plain)

	all, err := core.Vault.ListCredentials()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImportMissingArchive(t *testing.T) {
	sink := newTestSink(t)

	core := newTestCore(t)
	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = core.Vault.ImportCredentials("pw", sink, "no-such-archive.json")
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestImportRejectsTamperedArchive(t *testing.T) {
	sink := newTestSink(t)

	core := newTestCore(t)
	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = core.Vault.SaveCredential("https://example.com", "alice", "secret")
	require.NoError(t, err)
	_, err = core.Vault.ExportCredentials("export-pw", sink, "export.json")
	require.NoError(t, err)

	data, err := sink.Get("export.json")
	require.NoError(t, err)
	var archive exportArchive
	require.NoError(t, json.Unmarshal(data, &archive))
	archive.Payload.Ciphertext[0] ^= 0xff
	tampered, err := json.Marshal(&archive)
	require.NoError(t, err)
	require.NoError(t, sink.Put("export.json", tampered))

	_, err = core.Vault.ImportCredentials("export-pw", sink, "export.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestExportUsesFreshSaltPerArchive(t *testing.T) {
	sink := newTestSink(t)

	core := newTestCore(t)
	ok, err := core.Unlock("pw")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = core.Vault.SaveCredential("https://example.com", "alice", "secret")
	require.NoError(t, err)

	_, err = core.Vault.ExportCredentials("export-pw", sink, "one.json")
	require.NoError(t, err)
	_, err = core.Vault.ExportCredentials("export-pw", sink, "two.json")
	require.NoError(t, err)

	var one, two exportArchive
	data, err := sink.Get("one.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &one))
	data, err = sink.Get("two.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &two))

	assert.NotEqual(t, one.Salt, two.Salt)
	assert.NotEqual(t, one.ArchiveID, two.ArchiveID)
}
