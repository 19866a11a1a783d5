package backend

import (
	"context"

	"khata/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the document store and optional cleanup function
type Result struct {
	Store   storage.DocumentStore
	Cleanup CleanupFunc
}

// Factory creates document stores based on configuration
type Factory interface {
	// CreateStore creates a document store based on the provided config
	CreateStore(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// File backend specific
	DataDirectory string
}

// Type represents the kind of document store backing the ledger
type Type string

const (
	SQLiteType Type = "sqlite"
	FileType   Type = "file"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteType, FileType:
		return true
	default:
		return false
	}
}
