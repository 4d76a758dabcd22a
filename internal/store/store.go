package store

import (
	"context"
	"errors"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// ErrStoreUnavailable is returned when the record store cannot be read.
// An empty store is not an error; it loads as an empty snapshot.
var ErrStoreUnavailable = errors.New("record store unavailable")

// Store loads an immutable snapshot of the four CRM relations
// ⭐ SSOT: 레코드 스토어 접근은 이 인터페이스를 통해서만
type Store interface {
	Load(ctx context.Context) (*contracts.Snapshot, error)
}

// Static serves a fixed snapshot. Used by tests and the evaluate command's
// fixture mode.
type Static struct {
	Snapshot *contracts.Snapshot
	Err      error
}

// Load returns the fixed snapshot or error
func (s *Static) Load(ctx context.Context) (*contracts.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Snapshot == nil {
		return &contracts.Snapshot{}, nil
	}
	return s.Snapshot, nil
}
