// Package storage defines the durable buffer contract used by channels and
// its SQLite implementation.
package storage

import (
	"context"
	"errors"

	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

var (
	// ErrStorageFull is returned by Persist when no room can be made for the entry.
	ErrStorageFull = errors.New("storage full")

	// ErrStorageIO wraps failures of the underlying database or codec.
	ErrStorageIO = errors.New("storage i/o error")
)

//go:generate mockery --name=Storage --output=../testutil/mocks --outpkg=mocks

// Storage is the durable, ordered event log shared by every channel.
// Events are partitioned by group; batches are exclusive leases on the oldest
// unbatched events of a group.
type Storage interface {
	// Persist stores one entry and returns its identifier. The entry's ID field is set as well.
	Persist(ctx context.Context, group string, priority model.Priority, entry *model.LogEntry) (int64, error)

	// FetchNextBatch leases up to limit of the oldest unbatched entries of the group.
	// It returns nil without error when nothing is eligible.
	FetchNextBatch(ctx context.Context, group string, limit int) (*model.Batch, error)

	// DeleteBatch permanently removes the entries of a batch. Unknown ids are ignored.
	DeleteBatch(ctx context.Context, batchID string) error

	// ReleaseBatch returns the entries of a batch to the unbatched pool so a later
	// FetchNextBatch can lease them again. Unknown ids are ignored.
	ReleaseBatch(ctx context.Context, batchID string) error

	// DeleteGroup removes every entry of the group and returns how many were removed.
	DeleteGroup(ctx context.Context, group string) (int, error)

	// Count returns the number of live entries of the group, batched or not.
	Count(ctx context.Context, group string) (int, error)

	// Close releases the underlying resources.
	Close() error
}

// EvictionHandler is notified after entries of a group were removed by the
// storage itself, either to make room for higher priority entries or because
// they could not be decoded.
type EvictionHandler func(group string, n int)
