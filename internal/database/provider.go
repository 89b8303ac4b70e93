package database

import (
	"context"
	"fmt"
)

var (
	postgresReferenceWriter func() ReferenceWriter
	postgresRunWriter       func() RunWriter
	postgresInitialized     bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(refWriter func() ReferenceWriter, runWriter func() RunWriter) {
	postgresReferenceWriter = refWriter
	postgresRunWriter = runWriter
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetReferenceWriter returns a ReferenceWriter from the PostgreSQL backend
func GetReferenceWriter(ctx context.Context) (ReferenceWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresReferenceWriter == nil {
		return nil, fmt.Errorf("PostgreSQL reference writer not registered")
	}
	return postgresReferenceWriter(), nil
}

// GetRunWriter returns a RunWriter from the PostgreSQL backend
func GetRunWriter(ctx context.Context) (RunWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresRunWriter == nil {
		return nil, fmt.Errorf("PostgreSQL run writer not registered")
	}
	return postgresRunWriter(), nil
}
