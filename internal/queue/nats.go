package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/seantiz/procgate/internal/model"
)

const (
	// publishTimeout bounds a push when the caller's context has no deadline.
	publishTimeout = 5 * time.Second

	streamPrefix = "PROCGATE_"
)

// Compile-time interface satisfaction check.
var _ Queue = (*NATSQueue)(nil)

// NATSQueue implements Queue on JetStream. Each queue key is a subject bound
// to a work-queue stream, so jobs are retained in publish order until a
// worker acknowledges them.
type NATSQueue struct {
	nc *nats.Conn
	js jetstream.JetStream

	mu      sync.Mutex
	streams map[string]string // queue key -> stream name
}

// ConnectNATS dials url with unlimited reconnects.
func ConnectNATS(url string) (*NATSQueue, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &NATSQueue{nc: nc, js: js, streams: make(map[string]string)}, nil
}

// Close drains pending publishes and closes the connection.
func (q *NATSQueue) Close() error {
	if q.nc == nil {
		return nil
	}
	return q.nc.Drain()
}

// Push appends the job to the queue key's stream and returns once the
// server has acknowledged storing it.
func (q *NATSQueue) Push(ctx context.Context, queueKey string, job model.Job) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	if _, err := q.ensureStream(ctx, queueKey); err != nil {
		return err
	}
	msg, err := newJobMsg(queueKey, job)
	if err != nil {
		return err
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", queueKey, err)
	}
	return nil
}

// Len returns the number of jobs stored and not yet acknowledged on queueKey.
func (q *NATSQueue) Len(ctx context.Context, queueKey string) (int64, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	name, err := q.ensureStream(ctx, queueKey)
	if err != nil {
		return 0, err
	}
	stream, err := q.js.Stream(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("stream %s: %w", name, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("stream info %s: %w", name, err)
	}
	return int64(info.State.Msgs), nil
}

// ensureStream creates or updates the work-queue stream for queueKey once
// per connection.
func (q *NATSQueue) ensureStream(ctx context.Context, queueKey string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if name, ok := q.streams[queueKey]; ok {
		return name, nil
	}

	name := streamName(queueKey)
	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{queueKey},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return "", fmt.Errorf("ensure stream %s: %w", name, err)
	}
	q.streams[queueKey] = name
	return name, nil
}

// streamName maps a queue key to a valid JetStream stream name.
func streamName(queueKey string) string {
	var b strings.Builder
	b.WriteString(streamPrefix)
	for _, r := range queueKey {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, publishTimeout)
}

// newJobMsg wraps the encoded job in a message with a fresh Nats-Msg-Id.
// The stream drops a second copy carrying the same id, which covers the
// client resending one publish; separate Push calls always get new ids.
func newJobMsg(subject string, job model.Job) (*nats.Msg, error) {
	b, err := encodeJob(job)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = b
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	return msg, nil
}

func encodeJob(job model.Job) ([]byte, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return b, nil
}
