// Package cryptox implements field-level authenticated encryption, password
// hashing and secure random generation for credcore.
//
// A Service is built once per process from the key returned by the key
// manager and is then treated as read-only shared state: every method is
// safe for concurrent use.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dmitrijs2005/credcore/internal/common"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM nonce length (96 bits).
	NonceSize = 12
	// SaltSize is the default password salt length (128 bits).
	SaltSize = 16
)

// EncryptedField is an independent (nonce, ciphertext) pair.
type EncryptedField struct {
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ct"`
}

// IsZero reports whether the field holds no ciphertext.
func (f EncryptedField) IsZero() bool {
	return len(f.IV) == 0 && len(f.Ciphertext) == 0
}

// Service bundles the process-wide AEAD and the password KDF parameters.
type Service struct {
	aead cipher.AEAD
	kdf  KDFParams
}

// NewService builds an AES-256-GCM service from key.
//
// A key of the wrong length yields common.ErrCryptoUnavailable. Zero KDF
// parameters are replaced with DefaultKDFParams.
func NewService(key []byte, params KDFParams) (*Service, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrCryptoUnavailable, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCryptoUnavailable, err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCryptoUnavailable, err)
	}

	return &Service{aead: aesgcm, kdf: params.withDefaults()}, nil
}

// GenerateKey returns a fresh random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random nonce.
//
// Nonces are never derived from the plaintext or a counter, so encrypting
// the same value twice yields different IVs and ciphertexts.
func (s *Service) Encrypt(plaintext []byte) (EncryptedField, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedField{}, fmt.Errorf("%w: nonce: %w", common.ErrCryptoUnavailable, err)
	}

	ciphertext := s.aead.Seal(nil, nonce, plaintext, nil)
	return EncryptedField{IV: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt opens f. Corrupted input, a wrong key or a tag mismatch all
// return an error wrapping common.ErrDecryption.
func (s *Service) Decrypt(f EncryptedField) ([]byte, error) {
	if len(f.IV) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce length %d", common.ErrDecryption, len(f.IV))
	}

	plaintext, err := s.aead.Open(nil, f.IV, f.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}
	return plaintext, nil
}

// EncryptString is Encrypt for string values.
func (s *Service) EncryptString(v string) (EncryptedField, error) {
	return s.Encrypt([]byte(v))
}

// DecryptString is Decrypt for string values.
func (s *Service) DecryptString(f EncryptedField) (string, error) {
	b, err := s.Decrypt(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SecureRandomID returns a hex-encoded 128-bit random identifier.
func (s *Service) SecureRandomID() (string, error) {
	return common.MakeRandHexString(common.RandomIDBytes)
}

// SecureRandomToken returns a hex-encoded 256-bit random token.
func (s *Service) SecureRandomToken() (string, error) {
	return common.MakeRandHexString(common.RandomTokenBytes)
}
