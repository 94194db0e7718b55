package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// LocationRepo reads the department/city catalogue used for Colombian venues.
type LocationRepo struct {
	db *sql.DB
}

// NewLocationRepo returns a new LocationRepo bound to the given database.
func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

// Departments lists all departments by name.
func (r *LocationRepo) Departments(ctx context.Context) ([]model.Department, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Department, 0)
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Cities lists the cities of one department by name.
func (r *LocationRepo) Cities(ctx context.Context, departmentID uint64) ([]model.City, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, department_id FROM cities WHERE department_id = ? ORDER BY name`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.City, 0)
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.DepartmentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
