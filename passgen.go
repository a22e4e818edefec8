package gitbrowser

import (
	"fmt"

	"github.com/gothtr/gitbrowser/internal/crypto"
)

const (
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars     = "0123456789"
	symbolChars    = "!@#$%^&*()-_=+[]{};:,.<>?"

	// DefaultPasswordLength is used when PasswordOptions.Length is zero.
	DefaultPasswordLength = 16
)

// PasswordOptions selects the character classes for generated passwords. The
// zero value is not useful on its own; use DefaultPasswordOptions as the
// starting point.
type PasswordOptions struct {
	Length    int  `json:"length"`
	Lowercase bool `json:"lowercase"`
	Uppercase bool `json:"uppercase"`
	Digits    bool `json:"digits"`
	Symbols   bool `json:"symbols"`
}

// DefaultPasswordOptions returns the defaults: 16 characters drawn from all
// four character classes.
func DefaultPasswordOptions() PasswordOptions {
	return PasswordOptions{
		Length:    DefaultPasswordLength,
		Lowercase: true,
		Uppercase: true,
		Digits:    true,
		Symbols:   true,
	}
}

// GeneratePassword returns a random password built from the selected
// character classes using the platform CSPRNG. At least one class must be
// enabled. A zero Length falls back to DefaultPasswordLength.
func GeneratePassword(opts PasswordOptions) (string, error) {
	if opts.Length == 0 {
		opts.Length = DefaultPasswordLength
	}
	if opts.Length < 0 {
		return "", fmt.Errorf("password length must be positive, got %d", opts.Length)
	}

	var charset string
	if opts.Lowercase {
		charset += lowercaseChars
	}
	if opts.Uppercase {
		charset += uppercaseChars
	}
	if opts.Digits {
		charset += digitChars
	}
	if opts.Symbols {
		charset += symbolChars
	}
	if charset == "" {
		return "", fmt.Errorf("at least one character class must be enabled")
	}

	out := make([]byte, opts.Length)
	for i := range out {
		out[i] = charset[randomIndex(len(charset))]
	}
	password := string(out)
	crypto.Zeroize(out)
	return password, nil
}

// randomIndex draws an unbiased index in [0, n) by rejection sampling single
// random bytes.
func randomIndex(n int) int {
	limit := 256 - 256%n
	for {
		b := crypto.RandomBytes(1)
		if int(b[0]) < limit {
			return int(b[0]) % n
		}
	}
}
