package lifecycle

import (
	"errors"

	"github.com/seantiz/procgate/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for a process id.
	ErrNotFound = errors.New("process not found")

	// ErrCorruptRecord is returned when a stored record fails to decode.
	ErrCorruptRecord = model.ErrCorruptRecord

	// ErrStorage is returned when the object store rejects a put or delete.
	ErrStorage = errors.New("object storage error")

	// ErrQueue is returned when the job queue rejects a push.
	ErrQueue = errors.New("job queue error")

	// ErrMetadata is returned when the metadata store rejects a read or write.
	ErrMetadata = errors.New("metadata store error")

	// ErrInvalidTransition is returned when an operation is not permitted
	// from the process's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidPayload is returned when an upload payload cannot be encoded.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrIDCollision is returned when a freshly generated id already exists
	// twice in a row.
	ErrIDCollision = errors.New("process id collision")
)

// errorKind classifies err for metric labels.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCorruptRecord):
		return "corrupt"
	case errors.Is(err, ErrInvalidTransition):
		return "transition"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrQueue):
		return "queue"
	case errors.Is(err, ErrMetadata):
		return "metadata"
	case errors.Is(err, ErrInvalidPayload):
		return "payload"
	default:
		return "error"
	}
}
