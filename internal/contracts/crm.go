package contracts

import "time"

// ⭐ SSOT: CRM 레코드 타입은 여기서만 정의
// All records are read-only snapshots of rows synced from the CRM.

// DealStatus is the derived outcome of a deal. It is never stored.
type DealStatus string

const (
	StatusOpen DealStatus = "open"
	StatusWon  DealStatus = "won"
	StatusLost DealStatus = "lost"
)

// Deal is one row of the deals relation
type Deal struct {
	ID        string
	Name      string
	Amount    *string // raw source value, coerced per use; nil = NULL
	Stage     string  // raw stage identifier
	OwnerID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DealStage maps a raw stage identifier to display metadata
type DealStage struct {
	ID            string
	Label         string
	Rank          int
	PipelineID    string
	PipelineLabel string
}

// Owner is a CRM user that deals can be assigned to
type Owner struct {
	ID    string
	Email string
}

// Contact is one row of the contacts relation
type Contact struct {
	ID             string
	LifecycleStage *string
}

// Snapshot is an immutable view of all four relations for one evaluation
type Snapshot struct {
	Deals    []Deal
	Stages   []DealStage
	Owners   []Owner
	Contacts []Contact
	LoadedAt time.Time
}

// IsEmpty reports whether no relation has any rows
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Deals)+len(s.Stages)+len(s.Owners)+len(s.Contacts) == 0
}
