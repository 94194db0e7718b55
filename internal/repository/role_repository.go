package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// RoleRepo grants and revokes roles.  The roles themselves and their
// permissions are created by the seed step.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// List returns the seeded roles.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Assign grants role to the user.  Granting a held role is a no-op and an
// unknown role name yields ErrNotFound.
func (r *RoleRepo) Assign(ctx context.Context, userID uint64, role string) error {
	return grantRole(ctx, r.DB, userID, role)
}

// Remove revokes role from the user.
func (r *RoleRepo) Remove(ctx context.Context, userID uint64, role string) error {
	_, err := r.DB.ExecContext(ctx,
		`DELETE ur FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = ? AND r.name = ?`, userID, role)
	return err
}

// Permissions returns the permission codenames granted through the user's roles.
func (r *RoleRepo) Permissions(ctx context.Context, userID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT p.codename FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = ? ORDER BY p.codename`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
