// Package totp implements the primitives behind CampusMind two-factor
// authentication: RFC 4648 Base32, RFC 4226 HOTP, RFC 6238 TOTP verification
// with a step window, otpauth provisioning URIs and single-use backup codes.
//
// The package is stateless. Persistence, enrollment rules and replay tracking
// live in pkg/twofactor, which builds on these functions.
//
// # Parameters
//
// All codes use HMAC-SHA1, 6 digits and a 30 second step, the combination
// every mainstream authenticator app supports. Secrets are 20 bytes drawn from
// crypto/rand.
//
// # Usage
//
//	secret, err := totp.GenerateSecret()
//	if err != nil {
//	    return err
//	}
//
//	uri, err := totp.ProvisioningURI(totp.URIParams{
//	    Secret:      totp.EncodeBase32(secret),
//	    AccountName: "alice@campus.edu",
//	    Issuer:      "CampusMind",
//	})
//
//	// later, on login
//	if step, ok := totp.VerifyStep(secret, code, totp.DefaultWindow, time.Now()); ok {
//	    // remember step to refuse replays
//	}
//
// Backup codes are 8 uppercase hex characters split by a dash (for example
// "3F9A-0C1B"). GenerateBackupCodes never returns duplicates within a batch
// and MatchBackupCode compares candidates in constant time.
//
// # Base32
//
// DecodeBase32 is lenient: it accepts lower case, spaces, dashes and missing
// padding, so secrets typed by hand from a setup screen still decode.
package totp
