package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestEmbeddedMigrationsLoadInOrder(t *testing.T) {
	ms, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, "0001_identity", ms[0].Version)
	assert.Equal(t, "0003_tickets", ms[2].Version)
	for _, m := range ms {
		for _, s := range m.Statements {
			assert.Regexp(t, `^CREATE TABLE IF NOT EXISTS `, s)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE TABLE b (id INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, got)
}

func TestApplySkipsRecordedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/0001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/0002_b.sql": {Data: []byte("CREATE TABLE b (id INT);CREATE TABLE c (id INT);")},
	}
	ms, err := loadMigrations(fsys)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_a"))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE c (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("0002_b").WillReturnResult(sqlmock.NewResult(1, 1))

	applied, err := apply(context.Background(), db, ms)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ms := []migration{{Version: "0001_a", Statements: []string{"CREATE TABLE a (id INT)"}}}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectExec("CREATE TABLE a").WillReturnError(errors.New("syntax"))

	applied, err := apply(context.Background(), db, ms)
	assert.Empty(t, applied)
	assert.ErrorContains(t, err, "migration 0001_a")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionsOf(t *testing.T) {
	admin := permissionsOf(model.RoleAdmin)
	for _, role := range []string{model.RoleOrganizer, model.RoleParticipant, model.RoleStaff} {
		for _, p := range permissionsOf(role) {
			assert.Contains(t, admin, p, role)
		}
	}
	assert.Contains(t, admin, "add_tickettype")
	assert.Equal(t, []string{"view_event", "inscribirse_evento"}, permissionsOf(model.RoleParticipant))
}

func TestSeedRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT IGNORE INTO roles").WithArgs(model.RoleAdmin).WillReturnError(errors.New("down"))
	mock.ExpectRollback()

	err = Seed(context.Background(), db, SeedOptions{})
	assert.ErrorContains(t, err, "seed role Administrador")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRolesOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectBegin()
	total := 0
	for _, role := range []string{model.RoleAdmin, model.RoleOrganizer, model.RoleParticipant, model.RoleStaff} {
		mock.ExpectExec("INSERT IGNORE INTO roles").WithArgs(role).WillReturnResult(sqlmock.NewResult(1, 1))
		total += len(permissionsOf(role))
	}
	for i := 0; i < total; i++ {
		mock.ExpectExec("INSERT IGNORE INTO permissions").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT IGNORE INTO role_permissions").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, Seed(context.Background(), db, SeedOptions{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
