package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/locator/internal/core/domain"
)

const (
	checkPermissionQuery = `
SELECT granted FROM location_permissions
WHERE device_id = $1 AND kind = $2`

	// A request keeps an existing grant and otherwise applies the policy for the kind.
	requestPermissionQuery = `
INSERT INTO location_permissions (device_id, kind, granted, requested_at, updated_at)
VALUES ($1, $2, COALESCE((SELECT auto_grant FROM permission_policies WHERE kind = $2), FALSE), NOW(), NOW())
ON CONFLICT (device_id, kind) DO UPDATE
SET granted      = location_permissions.granted OR EXCLUDED.granted,
    requested_at = NOW(),
    updated_at   = NOW()
RETURNING granted`

	setPermissionQuery = `
INSERT INTO location_permissions (device_id, kind, granted, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (device_id, kind) DO UPDATE
SET granted = EXCLUDED.granted, updated_at = NOW()`
)

// PermissionRepo implements permission.Provider backed by the fleet's
// permission policy tables. Each valet device is identified by deviceID.
type PermissionRepo struct {
	db       *DB
	deviceID string
}

// NewPermissionRepo creates a permission repository for one device.
func NewPermissionRepo(db *DB, deviceID string) *PermissionRepo {
	return &PermissionRepo{db: db, deviceID: deviceID}
}

// Check returns the stored grant; unknown kinds are not granted.
func (r *PermissionRepo) Check(ctx context.Context, kind domain.PermissionKind) (bool, error) {
	var granted bool
	err := r.db.GetContext(ctx, &granted, checkPermissionQuery, r.deviceID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return granted, nil
}

// Request records the request and resolves it against the policy.
func (r *PermissionRepo) Request(ctx context.Context, kind domain.PermissionKind) (bool, error) {
	var granted bool
	if err := r.db.GetContext(ctx, &granted, requestPermissionQuery, r.deviceID, string(kind)); err != nil {
		return false, fmt.Errorf("failed to request permission: %w", err)
	}
	return granted, nil
}

// Set stores a grant directly (admin override).
func (r *PermissionRepo) Set(ctx context.Context, kind domain.PermissionKind, granted bool) error {
	if _, err := r.db.ExecContext(ctx, setPermissionQuery, r.deviceID, string(kind), granted); err != nil {
		return fmt.Errorf("failed to set permission: %w", err)
	}
	return nil
}
