package records

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/wolfman30/clinic-billing/pkg/apperrors"
)

// UserDirectory resolves clinic staff for role narrowing and provider names.
type UserDirectory interface {
	ResolveRole(ctx context.Context, clinicID, userID string) (string, bool, error)
	ProviderNames(ctx context.Context, clinicID string, ids []string) (map[string]string, error)
}

// SQLUserDirectory reads the users table through database/sql.
type SQLUserDirectory struct {
	db *sql.DB
}

// NewSQLUserDirectory creates a directory over db.
func NewSQLUserDirectory(db *sql.DB) *SQLUserDirectory {
	if db == nil {
		panic("records: sql db required for user directory")
	}
	return &SQLUserDirectory{db: db}
}

// ResolveRole returns the user's current role. found is false when the
// user has no row in the clinic.
func (d *SQLUserDirectory) ResolveRole(ctx context.Context, clinicID, userID string) (string, bool, error) {
	var role string
	err := d.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE clinic_id = $1 AND id = $2`, clinicID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewUpstreamError("records: resolve user role", err)
	}
	return role, true, nil
}

// ProviderNames maps provider ids to display names. Ids without a row are
// absent from the result.
func (d *SQLUserDirectory) ProviderNames(ctx context.Context, clinicID string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name FROM users WHERE clinic_id = $1 AND id = ANY($2)`, clinicID, pq.Array(ids),
	)
	if err != nil {
		return nil, apperrors.NewUpstreamError("records: query provider names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, apperrors.NewInternalError("records: scan provider name", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamError("records: iterate provider names", err)
	}
	return names, nil
}
