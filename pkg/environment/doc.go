// Package environment names the deployment environment and carries it
// through request contexts.
//
// The HTTP layer uses it to decide how much of an internal error reaches a
// client; the logger uses it to pick output format and level.
package environment
