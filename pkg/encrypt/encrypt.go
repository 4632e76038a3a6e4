// Package encrypt seals model snapshots and projected vectors at rest.
// Sealing uses AES-256-GCM authenticated encryption; password-derived keys
// use Argon2id.
package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// NonceSize is the size of GCM nonces in bytes.
	NonceSize = 12

	// SaltSize is the size of salts for key derivation.
	SaltSize = 16

	// Argon2Time is the time parameter for Argon2id.
	Argon2Time = 1

	// Argon2Memory is the memory parameter for Argon2id (64 MB).
	Argon2Memory = 64 * 1024

	// Argon2Threads is the parallelism parameter for Argon2id.
	Argon2Threads = 4
)

var (
	// ErrInvalidKey is returned when the sealing key is invalid.
	ErrInvalidKey = errors.New("invalid sealing key: must be 32 bytes")

	// ErrInvalidCiphertext is returned when ciphertext is too short.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")
)

// Encryptor seals and opens byte payloads.
type Encryptor interface {
	// Encrypt encrypts plaintext and returns ciphertext (nonce prepended).
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt decrypts ciphertext and returns plaintext.
	Decrypt(ciphertext []byte) ([]byte, error)

	// EncryptWithName encrypts plaintext bound to a name. The name is
	// authenticated but not encrypted; decryption under a different name
	// fails.
	EncryptWithName(plaintext []byte, name string) ([]byte, error)

	// DecryptWithName decrypts ciphertext produced by EncryptWithName.
	DecryptWithName(ciphertext []byte, name string) ([]byte, error)

	// KeyFingerprint returns a short fingerprint of the current key.
	KeyFingerprint() string
}

// AESGCM implements [Encryptor] using AES-256-GCM.
type AESGCM struct {
	key    []byte
	cipher cipher.AEAD
}

var _ Encryptor = (*AESGCM)(nil)

// NewAESGCM creates a new AES-256-GCM encryptor with the given key.
// Key must be exactly 32 bytes (256 bits).
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	// Copy key to prevent external modification
	keyCopy := make([]byte, KeySize)
	copy(keyCopy, key)

	return &AESGCM{
		key:    keyCopy,
		cipher: gcm,
	}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func (e *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	return e.seal(plaintext, nil)
}

// Decrypt decrypts ciphertext encrypted with Encrypt.
func (e *AESGCM) Decrypt(ciphertext []byte) ([]byte, error) {
	return e.open(ciphertext, nil)
}

// EncryptWithName encrypts plaintext bound to a name, typically the snapshot
// name the payload is stored under. Binding prevents a sealed payload from
// being served under a different name.
func (e *AESGCM) EncryptWithName(plaintext []byte, name string) ([]byte, error) {
	return e.seal(plaintext, []byte(name))
}

// DecryptWithName decrypts ciphertext produced by [AESGCM.EncryptWithName].
// The name must match the one used at sealing time.
func (e *AESGCM) DecryptWithName(ciphertext []byte, name string) ([]byte, error) {
	return e.open(ciphertext, []byte(name))
}

// seal encrypts plaintext with optional additional authenticated data.
func (e *AESGCM) seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce.
	return e.cipher.Seal(nonce, nonce, plaintext, aad), nil
}

// open decrypts and authenticates a payload produced by seal.
func (e *AESGCM) open(ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+e.cipher.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:NonceSize]
	encryptedData := ciphertext[NonceSize:]

	plaintext, err := e.cipher.Open(nil, nonce, encryptedData, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// KeyFingerprint returns a SHA-256 fingerprint of the key (first 8 bytes,
// hex encoded). Useful for verifying key matches without exposing the key.
func (e *AESGCM) KeyFingerprint() string {
	hash := sha256.Sum256(e.key)
	return fmt.Sprintf("%x", hash[:8])
}

// EncryptVector seals a float64 vector for storage.
func (e *AESGCM) EncryptVector(vector []float64) ([]byte, error) {
	return e.Encrypt(VectorToBytes(vector))
}

// DecryptVector opens a ciphertext back to a float64 vector.
func (e *AESGCM) DecryptVector(ciphertext []byte) ([]float64, error) {
	plaintext, err := e.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	return BytesToVector(plaintext), nil
}

// DeriveKey derives a 256-bit key from a password and salt using Argon2id.
// This is suitable for user-provided passwords.
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(password),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Threads,
		KeySize,
	)
}

// DeriveKeyWithSalt derives a key and returns both the key and a new random
// salt. Use this when creating a new sealing key from a password.
func DeriveKeyWithSalt(password string) (key []byte, salt []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key = DeriveKey(password, salt)
	return key, salt, nil
}

// GenerateKey generates a cryptographically secure random 256-bit key.
// Use this when you don't need password-based key derivation.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
