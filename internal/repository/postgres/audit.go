package postgres

import (
	"context"
	"fmt"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
)

const defaultAuditLimit = 100

// AuditRepository implements repository.AuditRepository using PostgreSQL.
// The audit_log table is append-only; this type deliberately has no update
// or delete methods.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts a new audit entry. IdentityID is stored as NULL when empty
// so failed logins with no resolved identity remain recordable.
func (r *AuditRepository) Append(ctx context.Context, e *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, identity_id, action, resource, resource_id, details, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var identityID *string
	if e.IdentityID != "" {
		identityID = &e.IdentityID
	}

	_, err := r.db.Exec(ctx, query,
		e.ID,
		identityID,
		e.Action,
		e.Resource,
		e.ResourceID,
		e.Details,
		e.IPAddress,
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, COALESCE(identity_id, ''), action, resource, resource_id, details, ip_address, timestamp
		FROM audit_log
		WHERE 1=1`
	var args []any

	if filter.IdentityID != "" {
		args = append(args, filter.IdentityID)
		query += fmt.Sprintf(" AND identity_id = $%d", len(args))
	}
	if filter.Resource != "" {
		args = append(args, filter.Resource)
		query += fmt.Sprintf(" AND resource = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.IdentityID,
			&e.Action,
			&e.Resource,
			&e.ResourceID,
			&e.Details,
			&e.IPAddress,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}

	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	return entries, nil
}
