package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type fakeRoles struct {
	granted map[string]bool
}

func (r *fakeRoles) Assign(_ context.Context, _ uint64, role string) error {
	if !validRole(role) {
		return repository.ErrNotFound
	}
	r.granted[role] = true
	return nil
}

func (r *fakeRoles) Remove(_ context.Context, _ uint64, role string) error {
	delete(r.granted, role)
	return nil
}

func TestUpdateProfileAuditsChangedFields(t *testing.T) {
	f := newFixture(t)
	birth := time.Date(1991, 7, 8, 0, 0, 0, 0, time.UTC)

	got, err := f.users.UpdateProfile(context.Background(), f.buyer.ID, ProfileChange{
		Email:     ptr(" NEW@Example.co "),
		FirstName: ptr("Ana"),
		Phone:     ptr("3001234567"),
		BirthDate: &birth,
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.co", got.Email)
	assert.Equal(t, "new@example.co", f.store.User(f.buyer.ID).Email)

	fields := map[string]model.ChangeLog{}
	for _, l := range f.store.ChangeLogs() {
		assert.Equal(t, model.EntityUser, l.Entity)
		assert.Equal(t, ChangeUserData, l.ChangeType)
		fields[l.Field] = l
	}
	assert.Len(t, fields, 3)
	assert.Equal(t, "buyer@example.co", fields["email"].OldValue)
	assert.Equal(t, "1990-05-01", fields["birth_date"].OldValue)
	assert.Equal(t, "1991-07-08", fields["birth_date"].NewValue)
	assert.NotContains(t, fields, "first_name")
}

func TestUpdateProfileWithoutChangesWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.UpdateProfile(context.Background(), f.buyer.ID, ProfileChange{FirstName: ptr("Ana")})
	require.NoError(t, err)
	assert.Empty(t, f.store.ChangeLogs())

	_, err = f.users.UpdateProfile(context.Background(), 999, ProfileChange{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.UpdateProfile(context.Background(), f.buyer.ID, ProfileChange{Email: ptr(f.organizer.Email)})
	assert.ErrorIs(t, err, repository.ErrEmailExists)
	assert.Empty(t, f.store.ChangeLogs())
}

func TestRoleAssignment(t *testing.T) {
	f := newFixture(t)
	roles := &fakeRoles{granted: map[string]bool{}}
	f.users.roles = roles
	admin := Actor{ID: 1, Roles: []string{model.RoleAdmin}}

	require.NoError(t, f.users.AssignRole(context.Background(), admin, f.buyer.ID, model.RoleStaff))
	assert.True(t, roles.granted[model.RoleStaff])
	assert.ErrorIs(t, f.users.AssignRole(context.Background(), admin, f.buyer.ID, "Cajero"), ErrInvalidRole)

	require.NoError(t, f.users.RemoveRole(context.Background(), admin, f.buyer.ID, model.RoleStaff))
	assert.False(t, roles.granted[model.RoleStaff])
	assert.ErrorIs(t, f.users.RemoveRole(context.Background(), admin, f.buyer.ID, "Cajero"), ErrInvalidRole)
}
