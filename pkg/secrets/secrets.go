package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

var (
	ErrInvalidMasterKey    = errors.New("secrets: master key must be 32 bytes")
	ErrInvalidKeyEncode    = errors.New("secrets: master key is not valid base64")
	ErrKeyDerivationFailed = errors.New("secrets: derive scope key")
	ErrEncryptionFailed    = errors.New("secrets: seal")
	ErrDecryptionFailed    = errors.New("secrets: open")
	ErrInvalidCiphertext   = errors.New("secrets: ciphertext too short")
)

// Sealer encrypts small payloads at rest with a key derived per scope from a
// single master key. Ciphertext layout: nonce | sealed data | tag.
// The scope is also authenticated, so a blob copied to another scope fails to open.
type Sealer struct {
	masterKey []byte
}

// NewSealer returns a Sealer for a 32-byte master key.
func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidMasterKey
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &Sealer{masterKey: key}, nil
}

// NewSealerFromString is NewSealer for a base64 encoded key.
func NewSealerFromString(encoded string) (*Sealer, error) {
	key, err := ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	return NewSealer(key)
}

// Seal encrypts plaintext for scope.
func (s *Sealer) Seal(scope string, plaintext []byte) ([]byte, error) {
	aead, err := s.aead(scope)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	return aead.Seal(nonce, nonce, plaintext, []byte(scope)), nil
}

// Open decrypts a blob produced by Seal for the same scope.
func (s *Sealer) Open(scope string, ciphertext []byte) ([]byte, error) {
	aead, err := s.aead(scope)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize+aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(scope))
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func (s *Sealer) aead(scope string) (cipher.AEAD, error) {
	key, err := deriveKey(s.masterKey, scope)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
