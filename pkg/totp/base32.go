package totp

import (
	"encoding/base32"
	"strings"
)

// Alphabet is the RFC 4648 Base32 alphabet understood by authenticator apps.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var rawBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeBase32 encodes b without '=' padding. The final partial 5-bit group
// is left-aligned with zero bits, as authenticator apps expect.
func EncodeBase32(b []byte) string {
	return rawBase32.EncodeToString(b)
}

// DecodeBase32 is the lenient counterpart of EncodeBase32.
// Input is upper-cased, every rune outside the alphabet is discarded and a
// trailing group too short to complete a byte is dropped. It never fails.
func DecodeBase32(s string) []byte {
	clean := normalizeBase32(s)

	// 1, 3 and 6 trailing symbols cannot complete an extra byte; the last
	// symbol of such a group carries only leftover bits.
	switch len(clean) % 8 {
	case 1, 3, 6:
		clean = clean[:len(clean)-1]
	}

	out, err := rawBase32.DecodeString(clean)
	if err != nil {
		// unreachable: input is restricted to the alphabet and a valid length
		return []byte{}
	}
	return out
}

func normalizeBase32(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
