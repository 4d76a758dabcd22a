package metrics

import (
	"time"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/engineconfig"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
)

// UnassignedOwner labels deals with no owner or an unknown owner id
const UnassignedOwner = "Unassigned"

// Input is everything one evaluation reads. It is never mutated.
type Input struct {
	Snapshot *contracts.Snapshot
	Params   params.Params
	Now      time.Time      // evaluation time
	Loc      *time.Location // store timezone
	Settings engineconfig.Settings
}

func (in Input) location() *time.Location {
	if in.Loc == nil {
		return time.UTC
	}
	return in.Loc
}

func (in Input) deals() []contracts.Deal {
	if in.Snapshot == nil {
		return nil
	}
	return in.Snapshot.Deals
}

func (in Input) contacts() []contracts.Contact {
	if in.Snapshot == nil {
		return nil
	}
	return in.Snapshot.Contacts
}

func (in Input) resolver() *StageResolver {
	if in.Snapshot == nil {
		return NewStageResolver(nil)
	}
	return NewStageResolver(in.Snapshot.Stages)
}

// ownerNames maps owner id to email. First row wins on duplicate ids.
func (in Input) ownerNames() map[string]string {
	names := make(map[string]string)
	if in.Snapshot == nil {
		return names
	}
	for _, o := range in.Snapshot.Owners {
		if _, dup := names[o.ID]; !dup {
			names[o.ID] = o.Email
		}
	}
	return names
}

// inDateRange is the created_at >= date_range.start scope
func (in Input) inDateRange(d contracts.Deal) bool {
	return !d.CreatedAt.Before(in.Params.Start)
}

func ownerName(names map[string]string, ownerID *string) string {
	if ownerID == nil {
		return UnassignedOwner
	}
	email, ok := names[*ownerID]
	if !ok || email == "" {
		return UnassignedOwner
	}
	return email
}
