package backend

import (
	"context"
	"errors"

	"fintrack/internal/ledger"
	"fintrack/internal/lock"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
)

// Backend is a ledger store that also keeps the spreadsheet outbox.
type Backend interface {
	ledger.Store
	ledger.SyncStore
}

// Factory builds the process dependencies from configuration.
type Factory interface {
	Build(ctx context.Context, config Config) (*Components, error)
}

// Components bundles what the commands wire into services. Publisher is
// nil when no broker is configured.
type Components struct {
	Store     Backend
	Publisher services.EventPublisher
	Mirror    sheets.Mirror
	Locker    lock.Locker

	closers []func() error
}

// Close releases every component in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	RedisURL string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
