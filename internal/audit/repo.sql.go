package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/shared"
)

// Repository reads the audit trail from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns timeline entries newest first, with the total row count for
// the given filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs a
		 WHERE ($1::bigint IS NULL OR a.actor_id = $1)
		   AND ($2::text = '' OR a.entity = $2)
		   AND ($3::text = '' OR a.action = $3)`,
		filter.ActorID, filter.Entity, filter.Action).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.actor_id, u.email, a.action, a.entity, a.entity_id, a.meta, a.occurred_at
		 FROM audit_logs a
		 LEFT JOIN users u ON u.id = a.actor_id
		 WHERE ($1::bigint IS NULL OR a.actor_id = $1)
		   AND ($2::text = '' OR a.entity = $2)
		   AND ($3::text = '' OR a.action = $3)
		 ORDER BY a.occurred_at DESC, a.id DESC
		 LIMIT $4 OFFSET $5`,
		filter.ActorID, filter.Entity, filter.Action, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID, &metaJSON, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, 0, err
			}
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
