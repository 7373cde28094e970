// Package twofactor is the HTTP module for CampusMind two-factor
// authentication. It exposes the enrollment engine as a JSON API under /2fa
// and expects an upstream gateway to have authenticated the caller; the
// default IdentityFunc reads the X-User-ID and X-User-Email headers.
//
// Every body uses the handler envelope {"data": ..., "error": {"code", "message"}}.
// Engine errors are mapped by Classify:
//
//	not_set_up         404
//	already_enabled    409
//	not_enabled        409
//	invalid_code       400
//	unauthorized       401
//	missing_identity   401
//	too_many_attempts  429
//	invalid_request    400
//
// Anything unrecognized, such as a store outage, is a 500 without details.
// Responses carry no-cache headers since setup bodies contain the secret.
package twofactor
