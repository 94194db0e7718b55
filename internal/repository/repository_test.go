package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

var offeringCols = []string{"id", "event_id", "ticket_type_id", "ticket_name", "price", "maximun_capacity", "capacity_sold"}

func newMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func TestLockOfferingAndSetSoldCommit(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE o.id = ? FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(offeringCols).AddRow(7, 1, 2, "VIP", "150000.00", 5, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ticket_type_events SET capacity_sold=? WHERE id=?`)).
		WithArgs(3, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOffering(ctx, 7)
		if err != nil {
			return err
		}
		assert.Equal(t, "VIP", o.TicketTypeName)
		assert.True(t, o.Price.Equal(decimal.RequireFromString("150000")))
		assert.Equal(t, 3, o.Remaining())
		return tx.SetCapacitySold(ctx, o.ID, o.CapacitySold+1)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM tickets WHERE unique_code = ? FOR UPDATE`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockTicketByCode(ctx, "ghost")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxReportsCommitFailure(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

	err := store.WithinTx(context.Background(), func(context.Context, Tx) error { return nil })
	assert.ErrorContains(t, err, "commit tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPaymentByReference(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_transactions`)).
		WithArgs("ref-1", "tx-1", model.PaymentApproved, "4", "150000.00", "COP", "buyer@example.co", model.GatewayPayU, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 2))
	mock.ExpectCommit()

	p := model.PaymentTransaction{
		ReferenceCode: "ref-1",
		TransactionID: "tx-1",
		Status:        model.PaymentApproved,
		RawState:      "4",
		Amount:        decimal.RequireFromString("150000"),
		Currency:      "COP",
		BuyerEmail:    "buyer@example.co",
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpsertPayment(ctx, &p)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.ID)
	assert.Equal(t, model.GatewayPayU, p.Gateway)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRejectsReplayedToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)
	exp := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at=NOW()`)).
		WithArgs("old", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO refresh_tokens`)).
		WithArgs(uint64(3), "new", exp).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Rotate(context.Background(), 3, "old", "new", exp))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at=NOW()`)).
		WithArgs("old", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.Rotate(context.Background(), 3, "old", "newer", exp), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateTicketTypeIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ticket_types`)).
		WithArgs("VIP", "").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'VIP'"})

	err = NewTicketTypeRepo(db).Create(context.Background(), &model.TicketType{Name: " VIP "})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
