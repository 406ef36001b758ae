package syncer

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/project"
)

func TestApplyProjectObserved_ConfirmsOnlyFromCreated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE projects SET stage").
		WithArgs(id, int32(project.StageConfirmed), int32(project.StageCreated)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := New(db, logging.New("dev"))
	err = c.applyProjectObserved(context.Background(), ProjectAccountObserved{ProjectID: id, Slot: 10})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStaticPoolState_UpsertsOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("INSERT INTO static_pool_chain_state").
		WithArgs(id, uint64(5), uint64(1_000), false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := New(db, logging.New("dev"))
	err = c.applyStaticPoolState(context.Background(), StaticPoolState{
		ProjectID: id, Slot: 5, CollectedLamports: 1_000, Closed: false,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCurvePoolState_UpsertsByMint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO pumpfun_chain_state").
		WithArgs("Mint111", uint64(42), uint64(30_000_000_000), uint64(1_000_000_000_000), true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := New(db, logging.New("dev"))
	err = c.applyCurvePoolState(context.Background(), CurvePoolState{
		Mint: "Mint111", Slot: 42,
		VirtualSolReserves: 30_000_000_000, VirtualTokenReserves: 1_000_000_000_000,
		Complete: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
