package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrDecryption is returned whenever a ciphertext cannot be
	// authenticated: tampering, truncation, or a wrong key all look the
	// same to callers. Decryption never yields corrupted plaintext.
	ErrDecryption = errors.New("decryption failed")

	ErrInvalidKey = errors.New("encryption key must be 32 bytes hex-encoded")
)

// Cipher wraps an AES-256-GCM AEAD keyed by a process-wide secret.
// A malformed key is a configuration error surfaced at construction,
// never at call time.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 64-character hex key.
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any authentication failure
// returns ErrDecryption.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryption
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrDecryption
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

// EncryptFields seals the named fields of a record in place, leaving all
// other fields untouched. Missing fields are skipped.
func (c *Cipher) EncryptFields(record map[string]string, fields []string) error {
	for _, f := range fields {
		v, ok := record[f]
		if !ok {
			continue
		}
		enc, err := c.Encrypt(v)
		if err != nil {
			return fmt.Errorf("encrypt field %q: %w", f, err)
		}
		record[f] = enc
	}
	return nil
}

// DecryptFields reverses EncryptFields.
func (c *Cipher) DecryptFields(record map[string]string, fields []string) error {
	for _, f := range fields {
		v, ok := record[f]
		if !ok {
			continue
		}
		plain, err := c.Decrypt(v)
		if err != nil {
			return fmt.Errorf("decrypt field %q: %w", f, err)
		}
		record[f] = plain
	}
	return nil
}

// SignHMAC returns the lowercase hex HMAC-SHA256 digest of message.
func SignHMAC(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC recomputes the digest and compares in constant time.
func VerifyHMAC(message, signature, secret string) bool {
	expected := SignHMAC(message, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateToken returns n cryptographically random bytes, hex-encoded.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
