package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures a Badger backend.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites fsyncs every write. A cart write must survive a crash, so
	// DefaultBadgerConfig enables it.
	SyncWrites bool

	// Logger receives Badger's internal log output. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns an on-disk configuration with synced writes.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{SyncWrites: true}
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a Backend stored in a Badger database.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens a Badger backend.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("open badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	if b.db == nil || b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// Get returns the value stored under key.
func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	if b.db.IsClosed() {
		return nil, fmt.Errorf("kv get %q: %w: database closed", key, ErrUnavailable)
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w: %w", key, ErrUnavailable, err)
	}
	return value, nil
}

// Put stores value under key.
func (b *Badger) Put(_ context.Context, key string, value []byte) error {
	if b.db.IsClosed() {
		return fmt.Errorf("kv put %q: %w: database closed", key, ErrUnavailable)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("kv put %q: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// Delete removes key.
func (b *Badger) Delete(_ context.Context, key string) error {
	if b.db.IsClosed() {
		return fmt.Errorf("kv delete %q: %w: database closed", key, ErrUnavailable)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("kv delete %q: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// Apply performs ops in one read-write transaction.
func (b *Badger) Apply(_ context.Context, ops ...Op) error {
	if b.db.IsClosed() {
		return fmt.Errorf("kv apply: %w: database closed", ErrUnavailable)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			if op.Delete {
				err = txn.Delete([]byte(op.Key))
			} else {
				err = txn.Set([]byte(op.Key), op.Value)
			}
			if err != nil {
				return fmt.Errorf("%q: %w", op.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv apply: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Probe stages a write in a transaction that is then discarded.
func (b *Badger) Probe(_ context.Context) error {
	if b.db.IsClosed() {
		return fmt.Errorf("kv probe: %w: database closed", ErrUnavailable)
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Set([]byte(probeKey), []byte{}); err != nil {
		return fmt.Errorf("kv probe: %w: %w", ErrUnavailable, err)
	}
	return nil
}
