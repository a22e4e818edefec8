package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileLogger(t *testing.T) *FileLogger {
	t.Helper()
	logger, err := NewFileLogger(&Config{
		Enabled: true,
		Type:    FileAuditType,
		Options: map[string]interface{}{
			"file_path": filepath.Join(t.TempDir(), "audit.jsonl"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestFileLoggerLogAndQuery(t *testing.T) {
	logger := newTestFileLogger(t)

	require.NoError(t, logger.Log("unlock_vault", true, map[string]interface{}{"first_time": true}))
	require.NoError(t, logger.Log("unlock_vault", false, nil))
	require.NoError(t, logger.Log("save_credential", true, nil))

	events, err := logger.Query(QueryOptions{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "unlock_vault", events[0].Action)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	byAction, err := logger.Query(QueryOptions{Action: "unlock_vault"})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	failed := false
	failures, err := logger.Query(QueryOptions{Success: &failed})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "unlock_vault", failures[0].Action)

	limited, err := logger.Query(QueryOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFileLoggerReopensAfterClose(t *testing.T) {
	logger := newTestFileLogger(t)

	require.NoError(t, logger.Log("lock_vault", true, nil))
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Log("unlock_vault", true, nil))

	events, err := logger.Query(QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFileLoggerQueryNeverCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(&Config{
		Enabled: true,
		Type:    FileAuditType,
		Options: map[string]interface{}{"file_path": path},
	})
	require.NoError(t, err)
	defer logger.Close()

	events, err := logger.Query(QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "query-only use must not create the log file")

	// Logging creates it.
	require.NoError(t, logger.Log("vault.unlock", true, nil))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewLoggerFactory(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.IsType(t, &NoOpLogger{}, logger)

	logger, err = NewLogger(&Config{Enabled: false, Type: FileAuditType})
	require.NoError(t, err)
	assert.IsType(t, &NoOpLogger{}, logger)

	_, err = NewLogger(&Config{Enabled: true, Type: "syslog"})
	assert.Error(t, err)
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	assert.NoError(t, logger.Log("anything", true, nil))
	events, err := logger.Query(QueryOptions{})
	assert.NoError(t, err)
	assert.Nil(t, events)
	assert.NoError(t, logger.Close())
}
