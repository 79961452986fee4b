// internal/types/interfaces.go
package types

import "context"

// ThreadStore owns thread existence: creation, lookup, and timestamp
// touches. Threads are never deleted here.
type ThreadStore interface {
	// Create allocates a fresh thread with no key.
	Create(ctx context.Context) (ThreadID, error)
	// ResolveOrCreate returns the thread bound to key, creating it on
	// first use. Used by channel adapters that address threads by a
	// stable external handle.
	ResolveOrCreate(ctx context.Context, key ThreadKey) (ThreadID, error)
	Get(ctx context.Context, id ThreadID) (*Thread, error)
	List(ctx context.Context) ([]*Thread, error)
	Exists(ctx context.Context, id ThreadID) (bool, error)
	// Touch advances LastUpdatedAt. Touching an unknown thread is a
	// silent no-op.
	Touch(ctx context.Context, id ThreadID) error
}

// MessageLog is the append-only per-thread message store. Append fails
// with ErrThreadNotFound for unknown threads; History returns an empty
// slice (not an error) for a thread with no messages.
type MessageLog interface {
	Append(ctx context.Context, threadID ThreadID, role, content string) (MessageID, error)
	History(ctx context.Context, threadID ThreadID) ([]*Message, error)
	Count(ctx context.Context, threadID ThreadID) (int64, error)
}
