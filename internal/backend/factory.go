package backend

import (
	"context"
	"errors"
	"fmt"

	"carteira/internal/amqp"
	"carteira/internal/attachments"
	"carteira/internal/log"
	"carteira/internal/storage"
	"carteira/internal/storage/memory"
)

var (
	_ Backend = (*storage.SQLiteRepository)(nil)
	_ Backend = (*memory.Store)(nil)
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: log.OrDiscard(logger).WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		be  Backend
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		be, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		be = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	res := &BackendResult{Backend: be}
	closers := []func() error{be.Close}

	switch config.AttachmentBackend {
	case "local":
		store, err := attachments.NewLocalStore(config.AttachmentDir)
		if err != nil {
			be.Close()
			return nil, fmt.Errorf("failed to initialize attachment directory: %w", err)
		}
		res.Attachments = store
		f.logger.Info("Initialized local attachments", "dir", config.AttachmentDir)
	case "gcs":
		store, err := attachments.NewGCSStore(ctx, config.GCSBucket)
		if err != nil {
			be.Close()
			return nil, fmt.Errorf("failed to initialize GCS attachments: %w", err)
		}
		res.Attachments = store
		closers = append(closers, store.Close)
		f.logger.Info("Initialized GCS attachments", "bucket", config.GCSBucket)
	}

	// AMQP is optional: writes keep working without event publishing
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			res.Events = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (Backend, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) Backend {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}
