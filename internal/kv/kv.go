package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kv: key not found")

	// ErrUnavailable is returned when the backend cannot be read or written,
	// e.g. it has been closed, the disk is read-only, or a quota was hit.
	ErrUnavailable = errors.New("kv: storage unavailable")
)

// probeKey is written and removed by Probe implementations.
const probeKey = "__toolbox_probe__"

// Backend is a synchronous durable key-value store.
type Backend interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Apply performs ops in order as one atomic write: either every op is
	// visible afterwards or none is.
	Apply(ctx context.Context, ops ...Op) error
	// Probe checks that the backend currently accepts writes.
	Probe(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// Op is one write in an Apply batch.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

// PutOp returns an Op storing value under key.
func PutOp(key string, value []byte) Op {
	return Op{Key: key, Value: value}
}

// DeleteOp returns an Op removing key.
func DeleteOp(key string) Op {
	return Op{Key: key, Delete: true}
}

// Kind names a backend implementation.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindBadger Kind = "badger"
	KindMemory Kind = "memory"
)

// ParseKind parses a backend name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSQLite, KindBadger, KindMemory:
		return k, nil
	case "":
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q: must be one of sqlite, badger, memory", s)
	}
}

// Open opens a backend of the given kind. path is a file for SQLite and a
// directory for Badger; it is ignored for Memory.
func Open(kind Kind, path string, logger *slog.Logger) (Backend, error) {
	switch kind {
	case KindSQLite:
		return OpenSQLite(path)
	case KindBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = path
		cfg.Logger = logger
		return OpenBadger(cfg)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("open kv: unknown backend %q", kind)
	}
}
