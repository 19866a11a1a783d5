// Package storage persists the ledger as four independently keyed JSON
// documents, each read in full and written in full on every change. The
// DocumentStore interface is the localStorage analog; a SQLite-backed and a
// plain-file implementation are provided.
package storage

import "context"

// Document keys. Each key names one whole-document JSON payload.
const (
	KeyEntries      = "entries"
	KeyCategories   = "categories"
	KeyBankAccounts = "bank_accounts"
	KeyViewPrefs    = "view_prefs"
)

// Keys lists every document key in a stable order.
func Keys() []string {
	return []string{KeyEntries, KeyCategories, KeyBankAccounts, KeyViewPrefs}
}

// DocumentStore loads and saves whole JSON documents by key. Load reports
// ok=false when the key has never been written, which callers map to the
// defaulting rules.
type DocumentStore interface {
	Load(ctx context.Context, key string) (doc []byte, ok bool, err error)
	Save(ctx context.Context, key string, doc []byte) error
	Close() error
}
