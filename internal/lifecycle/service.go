package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/procgate/internal/metastore"
	"github.com/seantiz/procgate/internal/model"
	"github.com/seantiz/procgate/internal/objectstore"
	"github.com/seantiz/procgate/internal/queue"
)

const (
	contentTypeJSON = "application/json"

	// DefaultJobType is used when Enqueue is called without a job type.
	DefaultJobType = "default"

	// idAttempts bounds fresh-id generation: one try plus one retry.
	idAttempts = 2
)

// Options holds the service's storage locations.
type Options struct {
	// Bucket receives uploaded payloads.
	Bucket string
	// QueueKey names the job queue that Enqueue pushes to.
	QueueKey string
}

// Service orchestrates the process lifecycle across the metadata store,
// object store and job queue. Operations on distinct processes are
// independent. Concurrent operations on the same process are not serialized;
// the metadata store's last write wins.
type Service struct {
	meta    metastore.Store
	objects objectstore.Store
	queue   queue.Queue
	opts    Options
	logger  *slog.Logger
	broker  *Broker
	newID   func() string
}

// NewService creates a lifecycle service over the given adapters.
func NewService(meta metastore.Store, objects objectstore.Store, q queue.Queue, opts Options, logger *slog.Logger) *Service {
	return &Service{
		meta:    meta,
		objects: objects,
		queue:   q,
		opts:    opts,
		logger:  logger,
		broker:  NewBroker(),
		newID:   model.NewID,
	}
}

// Broker returns the service's status broker for event subscription.
func (s *Service) Broker() *Broker {
	return s.broker
}

// Create registers a new process with status created and returns its id.
func (s *Service) Create(ctx context.Context) (pid string, err error) {
	defer observe("create", time.Now(), &err)

	pid, err = s.freshID(ctx)
	if err != nil {
		return "", err
	}

	rec := &model.Record{ProcessID: pid, Status: model.StatusCreated}
	if err := s.meta.WriteFields(ctx, model.MetaKey(pid), rec.Fields()); err != nil {
		return "", fmt.Errorf("%w: write record: %w", ErrMetadata, err)
	}

	s.publish(rec)
	s.logger.Info("process created", "process_id", pid)
	return pid, nil
}

// freshID draws a new id and checks it against the metadata store, retrying
// once on collision.
func (s *Service) freshID(ctx context.Context) (string, error) {
	for range idAttempts {
		id := s.newID()
		exists, err := s.meta.Exists(ctx, model.MetaKey(id))
		if err != nil {
			return "", fmt.Errorf("%w: check id: %w", ErrMetadata, err)
		}
		if !exists {
			return id, nil
		}
		s.logger.Warn("process id collision", "process_id", id)
	}
	return "", ErrIDCollision
}

// Load reads and decodes the record for pid.
func (s *Service) Load(ctx context.Context, pid string) (rec *model.Record, err error) {
	defer observe("load", time.Now(), &err)
	return s.load(ctx, pid)
}

func (s *Service) load(ctx context.Context, pid string) (*model.Record, error) {
	key := model.MetaKey(pid)

	exists, err := s.meta.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: check record: %w", ErrMetadata, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pid)
	}

	fields, err := s.meta.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read record: %w", ErrMetadata, err)
	}

	rec, err := model.DecodeRecord(fields)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", pid, err)
	}
	if rec.ProcessID != pid {
		return nil, fmt.Errorf("process %s: %w: stored process_id %q", pid, ErrCorruptRecord, rec.ProcessID)
	}
	return rec, nil
}

// loadFor loads pid and checks that op may move it to status to.
func (s *Service) loadFor(ctx context.Context, pid, op string, to model.Status) (*model.Record, error) {
	rec, err := s.load(ctx, pid)
	if err != nil {
		return nil, err
	}
	if !model.ValidTransition(rec.Status, to) {
		return nil, fmt.Errorf("%w: cannot %s process %s in status %s", ErrInvalidTransition, op, pid, rec.Status)
	}
	return rec, nil
}

// Upload stores payload as canonical JSON at the process's deterministic
// object key, then advertises it by setting status uploaded. The object is
// durable before the status changes. Repeating the call overwrites the same
// object.
func (s *Service) Upload(ctx context.Context, pid string, payload any) (rec *model.Record, err error) {
	defer observe("upload", time.Now(), &err)

	rec, err = s.loadFor(ctx, pid, "upload", model.StatusUploaded)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	key := model.ObjectKey(pid)
	metadata := map[string]string{model.FieldProcessID: pid}
	if err := s.objects.Put(ctx, s.opts.Bucket, key, body, contentTypeJSON, metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	rec.ObjectBucket = s.opts.Bucket
	rec.ObjectKey = key
	rec.Status = model.StatusUploaded
	if err := s.meta.WriteFields(ctx, model.MetaKey(pid), map[string]string{
		model.FieldObjectBucket: rec.ObjectBucket,
		model.FieldObjectKey:    rec.ObjectKey,
		model.FieldStatus:       string(rec.Status),
	}); err != nil {
		return nil, fmt.Errorf("%w: write upload: %w", ErrMetadata, err)
	}

	s.publish(rec)
	s.logger.Info("process uploaded",
		"process_id", pid,
		"bucket", rec.ObjectBucket,
		"key", rec.ObjectKey,
		"bytes", len(body),
	)
	return rec, nil
}

// Enqueue pushes a job for pid onto the configured queue, then sets status
// queued. It is normally called after Upload but does not require it.
func (s *Service) Enqueue(ctx context.Context, pid, jobType string, params map[string]any) (rec *model.Record, err error) {
	defer observe("enqueue", time.Now(), &err)

	rec, err = s.loadFor(ctx, pid, "enqueue", model.StatusQueued)
	if err != nil {
		return nil, err
	}

	if jobType == "" {
		jobType = DefaultJobType
	}
	if params == nil {
		params = map[string]any{}
	}

	job := model.Job{ProcessID: pid, JobType: jobType, Params: params}
	if err := s.queue.Push(ctx, s.opts.QueueKey, job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueue, err)
	}

	rec.Status = model.StatusQueued
	if err := s.meta.WriteFields(ctx, model.MetaKey(pid), map[string]string{
		model.FieldStatus: string(rec.Status),
	}); err != nil {
		return nil, fmt.Errorf("%w: write enqueue: %w", ErrMetadata, err)
	}

	s.publish(rec)
	s.logger.Info("process queued",
		"process_id", pid,
		"queue", s.opts.QueueKey,
		"job_type", jobType,
	)
	return rec, nil
}

// Kill sets status killed with reason as the error. Killing an already
// killed process overwrites the reason.
func (s *Service) Kill(ctx context.Context, pid, reason string) (rec *model.Record, err error) {
	defer observe("kill", time.Now(), &err)

	rec, err = s.loadFor(ctx, pid, "kill", model.StatusKilled)
	if err != nil {
		return nil, err
	}

	rec.Status = model.StatusKilled
	rec.Error = reason
	if err := s.meta.WriteFields(ctx, model.MetaKey(pid), map[string]string{
		model.FieldStatus: string(rec.Status),
		model.FieldError:  rec.Error,
	}); err != nil {
		return nil, fmt.Errorf("%w: write kill: %w", ErrMetadata, err)
	}

	s.publish(rec)
	s.logger.Info("process killed", "process_id", pid, "reason", reason)
	return rec, nil
}

// Delete removes the process's stored object, if any, then sets status
// deleted and clears the object location. The record itself is kept as a
// terminal marker. Repeating the call is a no-op.
func (s *Service) Delete(ctx context.Context, pid string) (rec *model.Record, err error) {
	defer observe("delete", time.Now(), &err)
	return s.delete(ctx, pid)
}

func (s *Service) delete(ctx context.Context, pid string) (*model.Record, error) {
	rec, err := s.loadFor(ctx, pid, "delete", model.StatusDeleted)
	if err != nil {
		return nil, err
	}

	if rec.HasObject() {
		if err := s.objects.Delete(ctx, rec.ObjectBucket, rec.ObjectKey); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	rec.Status = model.StatusDeleted
	rec.ObjectBucket = ""
	rec.ObjectKey = ""
	if err := s.meta.WriteFields(ctx, model.MetaKey(pid), map[string]string{
		model.FieldStatus:       string(rec.Status),
		model.FieldObjectBucket: "",
		model.FieldObjectKey:    "",
	}); err != nil {
		return nil, fmt.Errorf("%w: write delete: %w", ErrMetadata, err)
	}

	s.publish(rec)
	s.broker.Close(pid)
	s.logger.Info("process deleted", "process_id", pid)
	return rec, nil
}

// Purge deletes the process and then removes its metadata record entirely.
// It is an administrative operation; afterwards Load reports ErrNotFound.
func (s *Service) Purge(ctx context.Context, pid string) (err error) {
	defer observe("purge", time.Now(), &err)

	if _, err := s.delete(ctx, pid); err != nil {
		return err
	}
	if err := s.meta.Remove(ctx, model.MetaKey(pid)); err != nil {
		return fmt.Errorf("%w: remove record: %w", ErrMetadata, err)
	}

	s.logger.Info("process purged", "process_id", pid)
	return nil
}

func (s *Service) publish(rec *model.Record) {
	s.broker.Publish(Event{
		ProcessID: rec.ProcessID,
		Status:    rec.Status,
		Error:     rec.Error,
		At:        time.Now().UTC(),
	})
}
