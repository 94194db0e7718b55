package service

import "github.com/iliyamo/event-ticketing/internal/model"

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID    uint64
	Roles []string
}

// IsAdmin reports whether the actor holds the Administrador role.
func (a Actor) IsAdmin() bool { return a.has(model.RoleAdmin) }

func (a Actor) has(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// canManage reports whether the actor may modify ev.
func (a Actor) canManage(ev model.Event) bool {
	return a.IsAdmin() || (a.ID != 0 && ev.CreatorID == a.ID)
}
