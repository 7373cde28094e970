// Package bolt is an embedded twofactor.Store backed by a bbolt file, for
// single-node deployments that should survive restarts without an external
// database.
//
// Each record is stored under its identity in the twofactor_secrets bucket as
// an 8 byte big-endian version followed by the twofactor.Codec blob.
package bolt
