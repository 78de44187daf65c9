package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/lock"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	sheetsmem "fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Build opens the store, the optional publisher, the mirror and the locker.
// Optional components that fail to start are logged and left out; only the
// store is mandatory.
func (f *DefaultFactory) Build(ctx context.Context, config Config) (*Components, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.OpenStore(ctx, config)
	if err != nil {
		return nil, err
	}
	c := &Components{Store: store}
	c.closers = append(c.closers, store.Close)

	if pub := f.OpenPublisher(config); pub != nil {
		c.Publisher = pub
		c.closers = append(c.closers, pub.Close)
	}

	mirror, err := f.OpenMirror(ctx, config)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Mirror = mirror

	c.Locker = f.OpenLocker(ctx, config)
	if closer, ok := c.Locker.(interface{ Close() error }); ok {
		c.closers = append(c.closers, closer.Close)
	}
	return c, nil
}

// OpenStore opens the ledger store selected by config.Type.
func (f *DefaultFactory) OpenStore(ctx context.Context, config Config) (Backend, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		store, err := postgres.Open(ctx, config.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return store, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory backend, data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// OpenPublisher returns nil when AMQP is not configured or unreachable.
func (f *DefaultFactory) OpenPublisher(config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// OpenMirror returns the Google Sheets mirror, or an in-memory one when no
// spreadsheet is configured.
func (f *DefaultFactory) OpenMirror(ctx context.Context, config Config) (sheets.Mirror, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Info("No spreadsheet configured, mirroring in memory")
		return sheetsmem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleCredentialsJSON,
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets mirror", "sheet", config.GoogleSheetName)
	return client, nil
}

// OpenLocker prefers Redis so several poster replicas exclude each other,
// and falls back to a process-local lock.
func (f *DefaultFactory) OpenLocker(ctx context.Context, config Config) lock.Locker {
	if config.RedisURL != "" {
		r, err := lock.NewRedis(ctx, config.RedisURL)
		if err == nil {
			f.logger.Info("Initialized Redis run lock")
			return r
		}
		f.logger.Warn("Failed to connect to Redis, using local run lock", "error", err)
	}
	return lock.NewLocal()
}
