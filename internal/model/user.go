package model

import "time"

// Role names.  Roles are seeded once by the seed command together with
// their permission sets; users may hold several roles.
const (
	RoleAdmin       = "Administrador"
	RoleOrganizer   = "Organizador"
	RoleParticipant = "Participante"
	RoleStaff       = "Staff"
)

// User represents an application user record as stored in the
// `users` table, with the role names resolved from `user_roles`.
//
// Fields:
//
//	ID              – primary key identifier of the user.
//	Email           – unique email address.
//	Username        – unique login name.
//	PasswordHash    – bcrypt hashed password.
//	BirthDate       – optional; used for the minimum age check on purchase.
//	Country         – residence country; Colombia uses CityID.
//	IsActive        – inactive users cannot log in.
//	IsEmailVerified – set once the address has been confirmed.
//	Roles           – role names held by the user.
type User struct {
	ID              uint64     `json:"id"`                        // users.id
	Email           string     `json:"email"`                     // users.email
	Username        string     `json:"username"`                  // users.username
	PasswordHash    string     `json:"-"`                         // users.password_hash
	FirstName       string     `json:"first_name"`                // users.first_name
	LastName        string     `json:"last_name"`                 // users.last_name
	Phone           string     `json:"phone,omitempty"`           // users.phone
	BirthDate       *time.Time `json:"birth_date,omitempty"`      // users.birth_date (nullable)
	Document        string     `json:"document,omitempty"`        // users.document
	Country         string     `json:"country,omitempty"`         // users.country
	CityID          *uint64    `json:"city_id,omitempty"`         // users.city_id (nullable)
	CityText        string     `json:"city_text,omitempty"`       // users.city_text
	DepartmentText  string     `json:"department_text,omitempty"` // users.department_text
	IsActive        bool       `json:"is_active"`                 // users.is_active
	IsEmailVerified bool       `json:"is_email_verified"`         // users.is_email_verified
	Roles           []string   `json:"roles"`                     // user_roles -> roles.name
	CreatedAt       time.Time  `json:"created_at"`                // users.created_at
	UpdatedAt       time.Time  `json:"updated_at"`                // users.updated_at
}

// HasRole reports whether the user holds any of the given roles.
func (u User) HasRole(roles ...string) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// AgeAt returns the user's age in whole years at t, or -1 when the birth
// date is unknown.
func (u User) AgeAt(t time.Time) int {
	if u.BirthDate == nil {
		return -1
	}
	b := u.BirthDate.UTC()
	t = t.UTC()
	age := t.Year() - b.Year()
	if t.Month() < b.Month() || (t.Month() == b.Month() && t.Day() < b.Day()) {
		age--
	}
	return age
}

// Role represents a row in the `roles` table.
type Role struct {
	ID   uint8  // roles.id
	Name string // roles.name
}
