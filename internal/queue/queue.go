// Package queue appends job descriptors to a FIFO job queue consumed by
// out-of-process workers.
package queue

import (
	"context"
	"fmt"

	"github.com/seantiz/procgate/internal/model"
)

// Driver names accepted by Open.
const (
	DriverRedis = "redis"
	DriverNATS  = "nats"
)

// Queue appends jobs to the tail of a named queue. Jobs pushed to the same
// queue key are delivered in push order.
type Queue interface {
	Push(ctx context.Context, queueKey string, job model.Job) error
	Close() error
}

// Options selects and configures a queue driver.
type Options struct {
	Driver   string
	RedisURL string
	NATSURL  string
}

// Open constructs the queue named by opts.Driver.
func Open(opts Options) (Queue, error) {
	switch opts.Driver {
	case DriverRedis, "":
		return NewRedisQueueFromURL(opts.RedisURL)
	case DriverNATS:
		return ConnectNATS(opts.NATSURL)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", opts.Driver)
	}
}
