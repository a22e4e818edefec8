package gitbrowser

import (
	"fmt"
	"os"

	"github.com/gothtr/gitbrowser/audit"
)

// Options carries the configuration needed to open a vault core.
//
// Sensitive fields are tagged `json:"-"` so they can never leak through
// configuration dumps or structured logging. The master password itself is
// never part of Options: it is supplied per call through Unlock.
type Options struct {
	// DBPath is the location of the embedded SQLite database file. The parent
	// directory is created with restrictive permissions if it does not exist.
	DBPath string `json:"db_path"`

	// Audit configures audit logging. A nil config or Enabled=false selects
	// the no-op logger.
	Audit *audit.Config `json:"audit,omitempty"`

	// EnvPassphraseVar optionally names an environment variable holding the
	// master password. It is only consulted by UnlockFromEnv, which lets
	// non-interactive tooling unlock without placing the password on a
	// command line.
	EnvPassphraseVar string `json:"env_passphrase_var,omitempty"`
}

// Validate checks the options for structural problems before any store is
// opened.
func (o Options) Validate() error {
	if o.DBPath == "" {
		return fmt.Errorf("options: DBPath must be provided")
	}
	return nil
}

// passphraseFromEnv resolves the passphrase named by EnvPassphraseVar.
func (o Options) passphraseFromEnv() (string, error) {
	if o.EnvPassphraseVar == "" {
		return "", fmt.Errorf("options: no EnvPassphraseVar configured")
	}
	v, ok := os.LookupEnv(o.EnvPassphraseVar)
	if !ok || v == "" {
		return "", fmt.Errorf("options: environment variable %s is not set", o.EnvPassphraseVar)
	}
	return v, nil
}
