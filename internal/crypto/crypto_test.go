package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestDeriveKeyLengthAndDeterminism(t *testing.T) {
	salt := GenerateSalt()

	key1 := DeriveKey("test_password", salt)
	key2 := DeriveKey("test_password", salt)

	if len(key1) != KeyLength {
		t.Fatalf("derived key length = %d, want %d", len(key1), KeyLength)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("same password and salt produced different keys")
	}
}

func TestDeriveKeyDiffers(t *testing.T) {
	salt1 := bytes.Repeat([]byte{1}, SaltLength)
	salt2 := bytes.Repeat([]byte{2}, SaltLength)

	if bytes.Equal(DeriveKey("password1", salt1), DeriveKey("password2", salt1)) {
		t.Error("different passwords produced the same key")
	}
	if bytes.Equal(DeriveKey("password", salt1), DeriveKey("password", salt2)) {
		t.Error("different salts produced the same key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := RandomBytes(KeyLength)

	testCases := [][]byte{
		[]byte("Hello, GitBrowser!"),
		[]byte("Special chars: !@#$%^&*()_+{}|"),
		[]byte("Unicode: こんにちは"),
		{},
		make([]byte, 10241),
	}

	for i, tc := range testCases {
		t.Run(fmt.Sprintf("Case_%d", i), func(t *testing.T) {
			blob, err := Encrypt(tc, key)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if len(blob.Nonce) != NonceLength {
				t.Errorf("nonce length = %d, want %d", len(blob.Nonce), NonceLength)
			}
			if len(blob.Tag) != TagLength {
				t.Errorf("tag length = %d, want %d", len(blob.Tag), TagLength)
			}

			plaintext, err := Decrypt(blob, key)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(plaintext, tc) {
				t.Errorf("round trip mismatch: got %q, want %q", plaintext, tc)
			}
		})
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	key := RandomBytes(KeyLength)
	plaintext := []byte("same plaintext twice")

	blob1, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatal(err)
	}
	blob2, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(blob1.Nonce, blob2.Nonce) {
		t.Error("nonce reused across encryption calls")
	}
	if bytes.Equal(blob1.Ciphertext, blob2.Ciphertext) {
		t.Error("identical ciphertext for two encryptions of the same plaintext")
	}
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := Encrypt([]byte("data"), make([]byte, n)); !errors.Is(err, ErrInvalidKeyLength) {
			t.Errorf("key length %d: got %v, want ErrInvalidKeyLength", n, err)
		}
	}
}

func TestDecryptRejectsBadLengths(t *testing.T) {
	key := RandomBytes(KeyLength)
	good, err := Encrypt([]byte("data"), key)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		blob EncryptedBlob
		key  []byte
		want error
	}{
		{"short key", *good, make([]byte, 16), ErrInvalidKeyLength},
		{"bad nonce length", EncryptedBlob{good.Ciphertext, make([]byte, 8), good.Tag}, key, ErrAuthenticationFailed},
		{"bad tag length", EncryptedBlob{good.Ciphertext, good.Nonce, make([]byte, 8)}, key, ErrAuthenticationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(&tt.blob, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key1 := RandomBytes(KeyLength)
	key2 := RandomBytes(KeyLength)

	blob, err := Encrypt([]byte("secret data"), key1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Decrypt(blob, key2); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("decrypt with wrong key: got %v, want ErrAuthenticationFailed", err)
	}
}

func TestDecryptTamperDetection(t *testing.T) {
	key := RandomBytes(KeyLength)
	blob, err := Encrypt([]byte("sensitive data"), key)
	if err != nil {
		t.Fatal(err)
	}

	fields := map[string][]byte{
		"ciphertext": blob.Ciphertext,
		"nonce":      blob.Nonce,
		"tag":        blob.Tag,
	}
	for name, field := range fields {
		for i := range field {
			field[i] ^= 0xFF
			if _, err := Decrypt(blob, key); err == nil {
				t.Errorf("flipping %s byte %d went undetected", name, i)
			}
			field[i] ^= 0xFF
		}
	}

	// Untouched blob still decrypts.
	if _, err := Decrypt(blob, key); err != nil {
		t.Fatalf("restored blob failed to decrypt: %v", err)
	}
}

func TestGenerateSalt(t *testing.T) {
	salt1 := GenerateSalt()
	salt2 := GenerateSalt()

	if len(salt1) != SaltLength {
		t.Fatalf("salt length = %d, want %d", len(salt1), SaltLength)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two generated salts are identical")
	}
}

func TestRandomBytesLengths(t *testing.T) {
	for _, n := range []int{0, 1, 64, 256} {
		if got := len(RandomBytes(n)); got != n {
			t.Errorf("RandomBytes(%d) returned %d bytes", n, got)
		}
	}
}

func TestZeroize(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, 32)
	Zeroize(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}
