package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required size of the master key and of every derived key.
	KeySize = 32 // 256 bits for AES-256

	// hkdfInfo provides domain separation for derived keys.
	hkdfInfo = "campusmind-2fa-secrets-v1"
)

// GenerateKey creates a new random 32-byte master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncodeKey renders a key the way ParseKey expects it in the environment.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ParseKey decodes a base64 master key and checks its length.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.Join(ErrInvalidKeyEncode, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidMasterKey
	}
	return key, nil
}

// deriveKey binds the master key to scope with HKDF-SHA256.
// The caller clears the returned key with clearBytes.
func deriveKey(masterKey []byte, scope string) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, []byte(scope), []byte(hkdfInfo))

	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return derived, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
