package twofactor

import (
	"encoding/json"
	"errors"
)

// Sealer encrypts record payloads for one identity.
// *secrets.Sealer satisfies it.
type Sealer interface {
	Seal(scope string, plaintext []byte) ([]byte, error)
	Open(scope string, ciphertext []byte) ([]byte, error)
}

const sealedPrefix byte = 0x01

// Codec turns records into the opaque blobs durable stores persist.
// With a Sealer the JSON payload is encrypted under the identity; without one
// it is stored as plain JSON, which is meant for development only.
type Codec struct {
	sealer Sealer
}

// NewCodec returns a Codec. A nil sealer stores plain JSON.
func NewCodec(sealer Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Sealed reports whether payloads are encrypted.
func (c *Codec) Sealed() bool {
	return c != nil && c.sealer != nil
}

// Marshal encodes rec for identity.
func (c *Codec) Marshal(identity string, rec *SecretRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	if !c.Sealed() {
		return payload, nil
	}

	sealed, err := c.sealer.Seal(identity, payload)
	if err != nil {
		return nil, err
	}
	return append([]byte{sealedPrefix}, sealed...), nil
}

// Unmarshal decodes a blob written by Marshal for the same identity.
// Plain JSON is refused once a sealer is configured.
func (c *Codec) Unmarshal(identity string, data []byte) (*SecretRecord, error) {
	if len(data) == 0 {
		return nil, ErrCorruptRecord
	}

	payload := data
	switch {
	case c.Sealed():
		if data[0] != sealedPrefix {
			return nil, ErrCorruptRecord
		}
		plain, err := c.sealer.Open(identity, data[1:])
		if err != nil {
			return nil, errors.Join(ErrCorruptRecord, err)
		}
		payload = plain
	case data[0] == sealedPrefix:
		return nil, errors.Join(ErrCorruptRecord, errors.New("record is sealed but no encryption key is configured"))
	}

	var rec SecretRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	return &rec, nil
}
