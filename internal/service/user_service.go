package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// RoleStore grants and revokes roles outside a ticketing transaction.
type RoleStore interface {
	Assign(ctx context.Context, userID uint64, role string) error
	Remove(ctx context.Context, userID uint64, role string) error
}

// UserService edits profiles and role grants.
type UserService struct {
	store repository.Store
	roles RoleStore
	audit AuditWriter
	log   *logrus.Logger
}

// NewUserService returns a UserService.
func NewUserService(store repository.Store, roles RoleStore, log *logrus.Logger) *UserService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UserService{store: store, roles: roles, log: log}
}

// ProfileChange is a partial profile update.  Nil fields are kept.
type ProfileChange struct {
	Email          *string
	FirstName      *string
	LastName       *string
	Phone          *string
	BirthDate      *time.Time
	Document       *string
	Country        *string
	CityID         *uint64
	CityText       *string
	DepartmentText *string
}

// UpdateProfile applies ch to the user and logs every changed field.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, ch ProfileChange) (model.User, error) {
	var out model.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		old, err := tx.GetUser(ctx, userID)
		if err != nil {
			return orNotFound(err, ErrUserNotFound)
		}
		u := old
		setString(&u.Email, ch.Email)
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		setString(&u.FirstName, ch.FirstName)
		setString(&u.LastName, ch.LastName)
		setString(&u.Phone, ch.Phone)
		setString(&u.Document, ch.Document)
		setString(&u.Country, ch.Country)
		setString(&u.CityText, ch.CityText)
		setString(&u.DepartmentText, ch.DepartmentText)
		if ch.BirthDate != nil {
			u.BirthDate = ch.BirthDate
		}
		if ch.CityID != nil {
			u.CityID = ch.CityID
		}

		var changes ChangedFields
		changes.Track("email", old.Email, u.Email)
		changes.Track("first_name", old.FirstName, u.FirstName)
		changes.Track("last_name", old.LastName, u.LastName)
		changes.Track("phone", old.Phone, u.Phone)
		changes.Track("birth_date", dateOf(old.BirthDate), dateOf(u.BirthDate))
		changes.Track("document", old.Document, u.Document)
		changes.Track("country", old.Country, u.Country)
		changes.Track("city_id", old.CityID, u.CityID)
		changes.Track("city_text", old.CityText, u.CityText)
		changes.Track("department_text", old.DepartmentText, u.DepartmentText)
		if changes.Empty() {
			out = old
			return nil
		}
		if err := tx.UpdateUserProfile(ctx, u); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		if err := s.audit.Write(ctx, tx, model.EntityUser, userID, actorRef(userID), ChangeUserData, changes); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		logFailure(s.log.WithContext(ctx).WithField("user_id", userID), err, "update profile")
		return model.User{}, err
	}
	return out, nil
}

// AssignRole grants role to userID.  An unknown role is reported as
// ErrInvalidRole.
func (s *UserService) AssignRole(ctx context.Context, actor Actor, userID uint64, role string) error {
	if err := s.roles.Assign(ctx, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidRole
		}
		return err
	}
	s.log.WithContext(ctx).WithFields(logrus.Fields{"user_id": userID, "role": role, "actor_id": actor.ID}).Info("role assigned")
	return nil
}

// RemoveRole revokes role from userID.
func (s *UserService) RemoveRole(ctx context.Context, actor Actor, userID uint64, role string) error {
	if !validRole(role) {
		return ErrInvalidRole
	}
	if err := s.roles.Remove(ctx, userID, role); err != nil {
		return err
	}
	s.log.WithContext(ctx).WithFields(logrus.Fields{"user_id": userID, "role": role, "actor_id": actor.ID}).Info("role removed")
	return nil
}

func validRole(role string) bool {
	switch role {
	case model.RoleAdmin, model.RoleOrganizer, model.RoleParticipant, model.RoleStaff:
		return true
	}
	return false
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func dateOf(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
