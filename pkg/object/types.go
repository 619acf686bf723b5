// Package object holds repository objects as the resolver hands them to a
// transport layer: opaque payloads keyed by object id.
package object

// ID is a hex object id (40 characters for SHA-1 repositories, 64 for SHA-256).
type ID string

// Object is one object extracted from the ledger.
type Object struct {
	OID  ID
	Data []byte
}
