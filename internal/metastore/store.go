// Package metastore holds process metadata records as flat field mappings
// keyed by a per-process string key.
package metastore

import (
	"context"
	"fmt"
)

// Driver names accepted by Open.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Store defines the hash-style operations on process metadata records.
// A single WriteFields call is applied atomically; nothing spans calls.
type Store interface {
	// WriteFields merges fields into the record at key, creating it if absent.
	WriteFields(ctx context.Context, key string, fields map[string]string) error
	// ReadField returns one field and whether it was present.
	ReadField(ctx context.Context, key, field string) (string, bool, error)
	// ReadAll returns every field of the record. A missing key yields an
	// empty map and no error.
	ReadAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Remove deletes the whole record.
	Remove(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a metadata store driver.
type Options struct {
	Driver     string
	RedisURL   string
	SQLitePath string
}

// Open constructs the store named by opts.Driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverRedis, "":
		return NewRedisStoreFromURL(opts.RedisURL)
	case DriverSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown metadata driver %q", opts.Driver)
	}
}
