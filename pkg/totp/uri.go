package totp

import (
	"net/url"
	"strconv"
	"strings"
)

// URIParams contains the parameters for provisioning URI generation.
type URIParams struct {
	Secret      string // Base32-encoded shared secret (required)
	AccountName string // User identifier like email (required)
	Issuer      string // Service name displayed in authenticator apps (required)
}

// Validate ensures all required parameters are present.
func (p URIParams) Validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if p.AccountName == "" {
		return ErrMissingAccountName
	}
	if p.Issuer == "" {
		return ErrMissingIssuer
	}
	return nil
}

// ProvisioningURI builds the otpauth URI consumed by authenticator apps:
//
//	otpauth://totp/{issuer}:{account}?secret=...&issuer=...&algorithm=SHA1&digits=6&period=30
//
// Parameter order is fixed. See
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
func ProvisioningURI(p URIParams) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("otpauth://totp/")
	b.WriteString(url.PathEscape(p.Issuer))
	b.WriteByte(':')
	b.WriteString(url.PathEscape(p.AccountName))
	b.WriteString("?secret=")
	b.WriteString(queryEscape(p.Secret))
	b.WriteString("&issuer=")
	b.WriteString(queryEscape(p.Issuer))
	b.WriteString("&algorithm=" + DefaultAlgorithm)
	b.WriteString("&digits=" + strconv.Itoa(DefaultDigits))
	b.WriteString("&period=" + strconv.Itoa(DefaultPeriod))

	return b.String(), nil
}

// queryEscape encodes spaces as %20; several authenticators show '+' literally.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
