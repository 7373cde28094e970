// Package secrets seals small values at rest, such as TOTP shared secrets and
// backup codes held by durable stores.
//
// A single 32-byte master key (TWOFACTOR_ENCRYPTION_KEY, base64) is expanded
// with HKDF-SHA256 into one AES-256-GCM key per scope. Stores use the user
// identity as scope, so every record is encrypted under its own key and a row
// copied onto another identity does not decrypt. The random nonce is
// prepended to the ciphertext.
//
// # Usage
//
//	sealer, err := secrets.NewSealerFromString(os.Getenv("TWOFACTOR_ENCRYPTION_KEY"))
//	if err != nil {
//	    return err
//	}
//
//	blob, err := sealer.Seal("user-42", payload)
//	plain, err := sealer.Open("user-42", blob)
//
// # Error Handling
//
// Failures wrap ErrEncryptionFailed, ErrDecryptionFailed or
// ErrInvalidCiphertext. Use errors.Is to match them.
package secrets
