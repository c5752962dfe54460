// Package lifecycle provides the process lifecycle service. It drives each
// process through created, uploaded, queued, killed and deleted by calling
// the metadata store, object store and job queue in a fixed order per
// operation, and publishes every status change to a per-process broker.
//
// The three backing systems are not transactional. Operations are ordered so
// that a reader observing a status can rely on the side effects it
// advertises, and upload and delete are safe to retry at the deterministic
// object key. Nothing here repairs a partial failure.
package lifecycle
