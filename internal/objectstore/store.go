// Package objectstore stores uploaded process payloads as blobs addressed by
// bucket and key.
package objectstore

import (
	"context"
	"fmt"
)

// Driver names accepted by Open.
const (
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Store defines the blob operations used by the lifecycle service.
type Store interface {
	// Put stores body at (bucket, key), replacing any existing object.
	Put(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error
	// Delete removes the object. Deleting a missing object succeeds.
	Delete(ctx context.Context, bucket, key string) error
}

// Options selects and configures an object store driver.
type Options struct {
	Driver          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Open constructs the store named by opts.Driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverS3, "":
		return NewS3Store(S3Options{
			Endpoint:        opts.Endpoint,
			Region:          opts.Region,
			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
		}), nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown object driver %q", opts.Driver)
	}
}
