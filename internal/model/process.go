package model

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ErrCorruptRecord is returned when a stored process record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt process record")

// Status is the lifecycle state of a process.
type Status string

// Process status constants.
const (
	StatusCreated  Status = "created"
	StatusUploaded Status = "uploaded"
	StatusQueued   Status = "queued"
	StatusKilled   Status = "killed"
	StatusDeleted  Status = "deleted"
)

// Record field names as stored in the metadata hash.
const (
	FieldProcessID    = "process_id"
	FieldStatus       = "status"
	FieldObjectBucket = "object_bucket"
	FieldObjectKey    = "object_key"
	FieldError        = "error"
)

const (
	metaKeyPrefix = "proc:meta:"
	objectPrefix  = "proc/"
	objectSuffix  = "/input"
)

// requiredFields must all be present for a record to decode.
var requiredFields = []string{FieldProcessID, FieldStatus, FieldObjectBucket, FieldObjectKey}

// validTransitions maps each status to the set of statuses it may transition to.
// Self-edges exist where the operation producing the status is idempotent.
var validTransitions = map[Status]map[Status]bool{
	StatusCreated: {
		StatusUploaded: true,
		StatusQueued:   true,
		StatusKilled:   true,
		StatusDeleted:  true,
	},
	StatusUploaded: {
		StatusUploaded: true,
		StatusQueued:   true,
		StatusKilled:   true,
		StatusDeleted:  true,
	},
	StatusQueued: {
		StatusQueued:  true,
		StatusKilled:  true,
		StatusDeleted: true,
	},
	StatusKilled: {
		StatusKilled:  true,
		StatusDeleted: true,
	},
	StatusDeleted: {
		StatusDeleted: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether no forward transition other than deletion remains.
func (s Status) Terminal() bool {
	return s == StatusKilled || s == StatusDeleted
}

// Record is the metadata tracked for one dispatched process.
type Record struct {
	ProcessID    string `json:"process_id"`
	Status       Status `json:"status"`
	ObjectBucket string `json:"object_bucket"`
	ObjectKey    string `json:"object_key"`
	Error        string `json:"error"`
}

// HasObject reports whether the record points at a stored input object.
func (r *Record) HasObject() bool {
	return r.ObjectBucket != "" && r.ObjectKey != ""
}

// Fields encodes the record as a flat string mapping.
func (r *Record) Fields() map[string]string {
	return map[string]string{
		FieldProcessID:    r.ProcessID,
		FieldStatus:       string(r.Status),
		FieldObjectBucket: r.ObjectBucket,
		FieldObjectKey:    r.ObjectKey,
		FieldError:        r.Error,
	}
}

// DecodeRecord builds a Record from a flat string mapping. Missing required
// fields and unknown statuses yield ErrCorruptRecord.
func DecodeRecord(fields map[string]string) (*Record, error) {
	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrCorruptRecord, name)
		}
	}

	status := Status(fields[FieldStatus])
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrCorruptRecord, status)
	}

	return &Record{
		ProcessID:    fields[FieldProcessID],
		Status:       status,
		ObjectBucket: fields[FieldObjectBucket],
		ObjectKey:    fields[FieldObjectKey],
		Error:        fields[FieldError],
	}, nil
}

// NewID returns a fresh process id. ULIDs sort by creation time, which keeps
// metadata keys roughly ordered in listings.
func NewID() string {
	return ulid.Make().String()
}

// MetaKey returns the metadata store key for a process.
func MetaKey(processID string) string {
	return metaKeyPrefix + processID
}

// ObjectKey returns the deterministic object store key for a process's input.
func ObjectKey(processID string) string {
	return objectPrefix + processID + objectSuffix
}

// Job is a queue entry describing work to run for a process.
type Job struct {
	ProcessID string         `json:"process_id"`
	JobType   string         `json:"job_type"`
	Params    map[string]any `json:"params"`
}
