package domain

import "context"

// ArchiveFetcher obtains the raw compressed archive for a key. Implementations
// return *NotFoundError when the portal has no archive and *TransportError for
// retryable network or server failures.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, key ArchiveKey) ([]byte, error)
}

// ArchiveCache stores fetched archives by key. It is advisory: callers treat
// errors as misses. Delete of an absent key is not an error.
type ArchiveCache interface {
	Get(ctx context.Context, key ArchiveKey) ([]byte, bool, error)
	Put(ctx context.Context, key ArchiveKey, data []byte) error
	Delete(ctx context.Context, key ArchiveKey) error
}
