package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// Relation names as written by the CRM sync
const (
	TableDeals      = "deals"
	TableDealStages = "deal_stages"
	TableOwners     = "owners"
	TableContacts   = "contacts"
)

var tables = []string{TableDeals, TableDealStages, TableOwners, TableContacts}

// TxBeginner is satisfied by *pgxpool.Pool and pgxmock pools
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Postgres reads the synced CRM tables.
// All four relations are read in one repeatable-read transaction so a
// snapshot never mixes rows from two sync runs.
type Postgres struct {
	db     TxBeginner
	logger *logger.Logger
	now    func() time.Time
}

// NewPostgres creates a store over db
func NewPostgres(db TxBeginner, log *logger.Logger) *Postgres {
	if log == nil {
		log = logger.Nop()
	}
	return &Postgres{db: db, logger: log, now: time.Now}
}

const presenceQuery = `
	SELECT name, to_regclass(name) IS NOT NULL
	FROM unnest($1::text[]) AS name
`

const dealsQuery = `
	SELECT
		id::text,
		COALESCE(dealname, ''),
		amount::text,
		COALESCE(dealstage, ''),
		NULLIF(hubspot_owner_id::text, ''),
		created_at::timestamptz,
		updated_at::timestamptz
	FROM deals
`

const stagesQuery = `
	SELECT
		id::text,
		COALESCE(label, id::text),
		COALESCE(display_order, 0)::int,
		COALESCE(pipeline_id::text, ''),
		COALESCE(pipeline_label, '')
	FROM deal_stages
`

const ownersQuery = `
	SELECT id::text, COALESCE(email, '')
	FROM owners
`

const contactsQuery = `
	SELECT id::text, lifecyclestage
	FROM contacts
`

// Load reads all four relations. A relation that was never synced loads empty.
func (p *Postgres) Load(ctx context.Context) (*contracts.Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, unavailable(ctx, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	present, err := p.presentTables(ctx, tx)
	if err != nil {
		return nil, unavailable(ctx, "check relations", err)
	}

	snap := &contracts.Snapshot{LoadedAt: p.now()}

	if present[TableDeals] {
		if snap.Deals, err = p.loadDeals(ctx, tx); err != nil {
			return nil, unavailable(ctx, "load deals", err)
		}
	}
	if present[TableDealStages] {
		if snap.Stages, err = p.loadStages(ctx, tx); err != nil {
			return nil, unavailable(ctx, "load deal stages", err)
		}
	}
	if present[TableOwners] {
		if snap.Owners, err = p.loadOwners(ctx, tx); err != nil {
			return nil, unavailable(ctx, "load owners", err)
		}
	}
	if present[TableContacts] {
		if snap.Contacts, err = p.loadContacts(ctx, tx); err != nil {
			return nil, unavailable(ctx, "load contacts", err)
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"deals":    len(snap.Deals),
		"stages":   len(snap.Stages),
		"owners":   len(snap.Owners),
		"contacts": len(snap.Contacts),
	}).Debug("snapshot loaded")

	return snap, nil
}

func (p *Postgres) presentTables(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, presenceQuery, tables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[string]bool, len(tables))
	for rows.Next() {
		var (
			name   string
			exists bool
		)
		if err := rows.Scan(&name, &exists); err != nil {
			return nil, err
		}
		present[name] = exists
		if !exists {
			p.logger.WithField("relation", name).Warn("relation not synced yet, treating as empty")
		}
	}
	return present, rows.Err()
}

func (p *Postgres) loadDeals(ctx context.Context, tx pgx.Tx) ([]contracts.Deal, error) {
	rows, err := tx.Query(ctx, dealsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		deals   []contracts.Deal
		undated int
	)
	for rows.Next() {
		var (
			d                contracts.Deal
			created, updated *time.Time
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Amount, &d.Stage, &d.OwnerID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		if created != nil {
			d.CreatedAt = *created
		}
		d.UpdatedAt = d.CreatedAt
		if updated != nil {
			d.UpdatedAt = *updated
		}
		if d.UpdatedAt.IsZero() {
			undated++
		}
		deals = append(deals, d)
	}
	if undated > 0 {
		p.logger.WithField("deals", undated).Warn("deals without created_at or updated_at, excluded from stale list")
	}
	return deals, rows.Err()
}

func (p *Postgres) loadStages(ctx context.Context, tx pgx.Tx) ([]contracts.DealStage, error) {
	rows, err := tx.Query(ctx, stagesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []contracts.DealStage
	for rows.Next() {
		var s contracts.DealStage
		if err := rows.Scan(&s.ID, &s.Label, &s.Rank, &s.PipelineID, &s.PipelineLabel); err != nil {
			return nil, fmt.Errorf("scan deal stage: %w", err)
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

func (p *Postgres) loadOwners(ctx context.Context, tx pgx.Tx) ([]contracts.Owner, error) {
	rows, err := tx.Query(ctx, ownersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []contracts.Owner
	for rows.Next() {
		var o contracts.Owner
		if err := rows.Scan(&o.ID, &o.Email); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (p *Postgres) loadContacts(ctx context.Context, tx pgx.Tx) ([]contracts.Contact, error) {
	rows, err := tx.Query(ctx, contactsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []contracts.Contact
	for rows.Next() {
		var c contracts.Contact
		if err := rows.Scan(&c.ID, &c.LifecycleStage); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// unavailable wraps a load failure. Caller cancellation is returned as is.
func unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
