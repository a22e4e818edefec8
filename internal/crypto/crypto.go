// Package crypto provides the raw cryptographic primitives used by the vault:
// PBKDF2 key derivation, AES-256-GCM authenticated encryption with split
// ciphertext/nonce/tag output, secure randomness, and in-place zeroization.
//
// Nothing in this package holds state. Callers own the key material they pass
// in and are responsible for wiping it when it leaves sensitive use.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 iteration count for key derivation.
	Iterations = 100_000

	// KeyLength is the AES-256 key length in bytes.
	KeyLength = 32

	// SaltLength is the salt length in bytes for PBKDF2.
	SaltLength = 16

	// NonceLength is the AES-GCM nonce length in bytes.
	NonceLength = 12

	// TagLength is the AES-GCM authentication tag length in bytes.
	TagLength = 16
)

var (
	// ErrInvalidKeyLength is returned when a key is not exactly KeyLength bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrEncryptionFailed is returned when the cipher cannot be constructed or
	// sealing fails for a reason other than bad key length.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrAuthenticationFailed is returned when decryption fails: wrong key,
	// tampered ciphertext, nonce, or tag. No partial plaintext is ever returned.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// EncryptedBlob is the wire shape of an AES-256-GCM encryption: ciphertext,
// the random nonce used, and the authentication tag, kept as separate fields
// so they can map onto separate storage columns.
type EncryptedBlob struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Tag        []byte `json:"auth_tag"`
}

// DeriveKey derives a KeyLength-byte key from a password and salt using
// PBKDF2-HMAC-SHA256. Deterministic: the same (password, salt) pair always
// yields the same key.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeyLength, sha256.New)
}

// Encrypt encrypts plaintext under key with AES-256-GCM, generating a fresh
// random nonce per call. Identical plaintext encrypted twice under the same
// key therefore produces different ciphertext.
func Encrypt(plaintext, key []byte) (*EncryptedBlob, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKeyLength, KeyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, NonceLength)
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce generation: %v", ErrEncryptionFailed, err)
	}

	// gcm.Seal appends the tag to the ciphertext; split them back out so the
	// store can keep them in separate columns.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - TagLength

	return &EncryptedBlob{
		Ciphertext: sealed[:tagStart],
		Nonce:      nonce,
		Tag:        sealed[tagStart:],
	}, nil
}

// Decrypt reverses Encrypt. Key, nonce, and tag lengths are checked before any
// cipher work; any tampering with ciphertext, nonce, or tag fails with
// ErrAuthenticationFailed.
func Decrypt(blob *EncryptedBlob, key []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKeyLength, KeyLength, len(key))
	}
	if len(blob.Nonce) != NonceLength {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrAuthenticationFailed, NonceLength, len(blob.Nonce))
	}
	if len(blob.Tag) != TagLength {
		return nil, fmt.Errorf("%w: tag must be %d bytes, got %d", ErrAuthenticationFailed, TagLength, len(blob.Tag))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.Tag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := gcm.Open(nil, blob.Nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid key or corrupted data", ErrAuthenticationFailed)
	}
	return plaintext, nil
}

// GenerateSalt returns a fresh cryptographically secure SaltLength-byte salt.
func GenerateSalt() []byte {
	return RandomBytes(SaltLength)
}

// RandomBytes returns n cryptographically secure random bytes. Failure of the
// system randomness source is unrecoverable and panics.
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		panic(fmt.Sprintf("crypto: system randomness unavailable: %v", err))
	}
	return buf
}

// Zeroize overwrites buf with zeros in place. Call it on any key material
// that is about to go out of scope after sensitive use.
func Zeroize(buf []byte) {
	memguard.WipeBytes(buf)
}
