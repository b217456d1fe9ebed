// Package history persists readings and answers time range queries.
package history

import (
	"context"

	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

// DefaultLimit caps a query when the caller does not say otherwise.
const DefaultLimit = 10000

// ErrStorage marks failures of the underlying storage engine.
var ErrStorage = errors.New("storage error")

// Store is an append-only log of readings.
type Store interface {
	Append(ctx context.Context, r aranet.Reading) error

	// Query returns readings oldest first. With hours set, only readings
	// from the last hours are considered and the oldest limit of them are
	// returned; without it, the newest limit readings are returned.
	Query(ctx context.Context, hours *int, limit int) ([]aranet.Reading, error)
}

type storageError struct {
	err error
}

func (e *storageError) Error() string        { return ErrStorage.Error() + ": " + e.err.Error() }
func (e *storageError) Is(target error) bool { return target == ErrStorage }
func (e *storageError) Unwrap() error        { return e.err }

func wrapStorage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &storageError{err: errors.Wrap(err, msg)}
}
