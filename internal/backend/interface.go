// Package backend opens the store selected by DATA_BACKEND.
package backend

import (
	"context"

	"simbank/internal/store"
)

// CleanupFunc releases the resources behind a backend.
type CleanupFunc func() error

// Result contains the opened store and an optional health check.
type Result struct {
	Store store.Store
	// Pinger is nil when the backend has nothing to probe.
	Pinger interface {
		Ping(ctx context.Context) error
	}
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
