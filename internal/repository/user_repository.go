package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// UserRepo persists users and resolves their role names.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the registration fields of a user.
type NewUser struct {
	Email          string
	Username       string
	Password       string
	FirstName      string
	LastName       string
	Phone          string
	BirthDate      *time.Time
	Document       string
	Country        string
	CityID         *uint64
	CityText       string
	DepartmentText string
	Roles          []string
}

const userColumns = `id, email, username, password_hash, first_name, last_name, phone, birth_date, document,
	country, city_id, city_text, department_text, is_active, is_email_verified, created_at, updated_at`

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                                           model.User
		phone, document, country, cityText, deptTxt sql.NullString
		birth                                       sql.NullTime
		cityID                                      sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &phone, &birth, &document,
		&country, &cityID, &cityText, &deptTxt, &u.IsActive, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Phone = phone.String
	u.Document = document.String
	u.Country = country.String
	u.CityText = cityText.String
	u.DepartmentText = deptTxt.String
	if birth.Valid {
		b := birth.Time
		u.BirthDate = &b
	}
	if cityID.Valid {
		id := uint64(cityID.Int64)
		u.CityID = &id
	}
	return u, nil
}

// Create hashes the password, inserts the user and grants its roles in one
// transaction.  It returns ErrEmailExists when email or username is taken.
func (r *UserRepo) Create(ctx context.Context, nu NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	hash, err := utils.HashPassword(nu.Password, cost)
	if err != nil {
		return 0, err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, first_name, last_name, phone, birth_date, document,
			country, city_id, city_text, department_text) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		email, strings.TrimSpace(nu.Username), hash, nu.FirstName, nu.LastName, nullString(nu.Phone),
		nullTime(nu.BirthDate), nullString(nu.Document), nullString(nu.Country), nullUint(nu.CityID),
		nullString(nu.CityText), nullString(nu.DepartmentText))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, role := range nu.Roles {
		if err := grantRole(ctx, tx, uint64(id), role); err != nil {
			return 0, fmt.Errorf("grant role %s: %w", role, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getTx(ctx, r.DB, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getTx(ctx, r.DB, "username", strings.TrimSpace(username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getTx(ctx, r.DB, "id", id)
}

func (r *UserRepo) getTx(ctx context.Context, tx sqlCommand, column string, value any) (model.User, error) {
	var where string
	switch column {
	case "email":
		where = "email = ?"
	case "username":
		where = "username = ?"
	default:
		where = "id = ?"
	}
	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, value))
	if err != nil {
		return model.User{}, notFound(err)
	}
	roles, err := loadRoles(ctx, tx, u.ID)
	if err != nil {
		return model.User{}, err
	}
	u.Roles = roles
	return u, nil
}

// List returns users ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		roles, err := loadRoles(ctx, r.DB, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Roles = roles
	}
	return out, nil
}

// UpdateProfileTx stores the editable profile fields of u.
func (r *UserRepo) UpdateProfileTx(ctx context.Context, tx sqlCommand, u model.User) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET email=?, first_name=?, last_name=?, phone=?, birth_date=?, document=?, country=?, city_id=?,
			city_text=?, department_text=?, updated_at=? WHERE id=?`,
		strings.ToLower(strings.TrimSpace(u.Email)), u.FirstName, u.LastName, nullString(u.Phone), nullTime(u.BirthDate), nullString(u.Document),
		nullString(u.Country), nullUint(u.CityID), nullString(u.CityText), nullString(u.DepartmentText), time.Now().UTC(), u.ID)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, hash, time.Now().UTC(), id)
	return err
}

func loadRoles(ctx context.Context, q sqlCommand, userID uint64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = ? ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := make([]string, 0, 2)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func grantRole(ctx context.Context, q sqlCommand, userID uint64, role string) error {
	res, err := q.ExecContext(ctx,
		`INSERT IGNORE INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name = ?`, userID, role)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name = ?`, role).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}
