// Package binder decodes HTTP request bodies into typed request structs for
// the handler package.
//
// Only JSON is supported. The binder checks the Content-Type, limits the body
// size, rejects unknown fields and trailing data, and trims whitespace from
// string fields so that a code pasted with a trailing newline still matches.
package binder
