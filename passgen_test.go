package gitbrowser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePasswordDefaults(t *testing.T) {
	pw, err := GeneratePassword(DefaultPasswordOptions())
	require.NoError(t, err)
	assert.Len(t, pw, DefaultPasswordLength)
}

func TestGeneratePasswordZeroLengthUsesDefault(t *testing.T) {
	pw, err := GeneratePassword(PasswordOptions{Lowercase: true})
	require.NoError(t, err)
	assert.Len(t, pw, DefaultPasswordLength)
}

func TestGeneratePasswordRespectsCharset(t *testing.T) {
	tests := []struct {
		name    string
		opts    PasswordOptions
		allowed string
	}{
		{"lowercase only", PasswordOptions{Length: 64, Lowercase: true}, lowercaseChars},
		{"digits only", PasswordOptions{Length: 64, Digits: true}, digitChars},
		{"upper and symbols", PasswordOptions{Length: 64, Uppercase: true, Symbols: true}, uppercaseChars + symbolChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pw, err := GeneratePassword(tt.opts)
			require.NoError(t, err)
			require.Len(t, pw, 64)
			for _, r := range pw {
				assert.True(t, strings.ContainsRune(tt.allowed, r), "unexpected character %q", r)
			}
		})
	}
}

func TestGeneratePasswordNoCharsetSelected(t *testing.T) {
	_, err := GeneratePassword(PasswordOptions{Length: 16})
	require.Error(t, err)
}

func TestGeneratePasswordNegativeLength(t *testing.T) {
	_, err := GeneratePassword(PasswordOptions{Length: -1, Lowercase: true})
	require.Error(t, err)
}

func TestGeneratePasswordIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		pw, err := GeneratePassword(DefaultPasswordOptions())
		require.NoError(t, err)
		assert.False(t, seen[pw], "generated the same password twice")
		seen[pw] = true
	}
}
