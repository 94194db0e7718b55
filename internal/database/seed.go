package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// rolePermissions is the fixed role to permission map. Administrador is
// granted every permission known to the map.
var rolePermissions = map[string][]string{
	model.RoleOrganizer:   {"add_event", "change_event", "delete_event", "view_event", "add_ticket", "change_ticket", "view_ticket"},
	model.RoleParticipant: {"view_event", "inscribirse_evento"},
	model.RoleStaff:       {"view_ticket", "change_ticket", "view_ticketaccesslog"},
}

var adminOnlyPermissions = []string{"add_tickettype", "view_user", "change_user", "view_changelog"}

var defaultTicketTypes = []string{"General", "VIP", "Preferencial"}

var defaultCities = map[string][]string{
	"Antioquia":       {"Medellín", "Envigado", "Rionegro"},
	"Atlántico":       {"Barranquilla"},
	"Bogotá D.C.":     {"Bogotá"},
	"Santander":       {"Bucaramanga"},
	"Valle del Cauca": {"Cali", "Palmira"},
}

// SeedOptions controls the optional parts of Seed.
type SeedOptions struct {
	Catalog       bool
	AdminEmail    string
	AdminUsername string
	AdminPassword string
	BcryptCost    int
}

// SeedOptionsFromEnv reads SEED_ADMIN_EMAIL, SEED_ADMIN_USERNAME and
// SEED_ADMIN_PASSWORD.
func SeedOptionsFromEnv(bcryptCost int) SeedOptions {
	return SeedOptions{
		Catalog:       true,
		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))),
		AdminUsername: strings.TrimSpace(os.Getenv("SEED_ADMIN_USERNAME")),
		AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
		BcryptCost:    bcryptCost,
	}
}

func permissionsOf(role string) []string {
	if role != model.RoleAdmin {
		return rolePermissions[role]
	}
	set := map[string]bool{}
	for _, perms := range rolePermissions {
		for _, p := range perms {
			set[p] = true
		}
	}
	for _, p := range adminOnlyPermissions {
		set[p] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Seed syncs roles and their permissions, the optional catalog and the
// optional bootstrap administrator. Running it twice changes nothing.
func Seed(ctx context.Context, db *sql.DB, opts SeedOptions) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	roles := []string{model.RoleAdmin, model.RoleOrganizer, model.RoleParticipant, model.RoleStaff}
	for _, role := range roles {
		if err := seedRole(ctx, tx, role, permissionsOf(role)); err != nil {
			return err
		}
	}
	if opts.Catalog {
		if err := seedCatalog(ctx, tx); err != nil {
			return err
		}
	}
	if opts.AdminEmail != "" && opts.AdminPassword != "" {
		if err := seedAdmin(ctx, tx, opts); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func seedRole(ctx context.Context, tx *sql.Tx, role string, perms []string) error {
	if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO roles (name) VALUES (?)`, role); err != nil {
		return fmt.Errorf("seed role %s: %w", role, err)
	}
	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO permissions (codename) VALUES (?)`, p); err != nil {
			return fmt.Errorf("seed permission %s: %w", p, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO role_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p WHERE r.name = ? AND p.codename = ?`, role, p); err != nil {
			return fmt.Errorf("grant %s to %s: %w", p, role, err)
		}
	}
	return nil
}

func seedCatalog(ctx context.Context, tx *sql.Tx) error {
	for _, name := range defaultTicketTypes {
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO ticket_types (ticket_name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("seed ticket type %s: %w", name, err)
		}
	}
	departments := make([]string, 0, len(defaultCities))
	for d := range defaultCities {
		departments = append(departments, d)
	}
	sort.Strings(departments)
	for _, d := range departments {
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO departments (name) VALUES (?)`, d); err != nil {
			return fmt.Errorf("seed department %s: %w", d, err)
		}
		for _, c := range defaultCities[d] {
			if _, err := tx.ExecContext(ctx,
				`INSERT IGNORE INTO cities (name, department_id) SELECT ?, id FROM departments WHERE name = ?`, c, d); err != nil {
				return fmt.Errorf("seed city %s: %w", c, err)
			}
		}
	}
	return nil
}

// seedAdmin creates the administrator when the email is unknown and then
// makes sure it holds the Administrador role. An existing password is kept.
func seedAdmin(ctx context.Context, tx *sql.Tx, opts SeedOptions) error {
	username := opts.AdminUsername
	if username == "" {
		username = strings.SplitN(opts.AdminEmail, "@", 2)[0]
	}
	hash, err := utils.HashPassword(opts.AdminPassword, opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO users (email, username, password_hash, first_name, last_name, is_active, is_email_verified)
		VALUES (?, ?, ?, 'Admin', '', 1, 1)`, opts.AdminEmail, username, hash); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO user_roles (user_id, role_id)
		SELECT u.id, r.id FROM users u, roles r WHERE u.email = ? AND r.name = ?`, opts.AdminEmail, model.RoleAdmin); err != nil {
		return fmt.Errorf("grant admin role: %w", err)
	}
	return nil
}
