package keypair

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Assign_PopsAndRecordsOwnership(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	kp, err := Generate()
	require.NoError(t, err)
	pub := kp.PublicKey.Bytes()
	priv := []byte(kp.PrivateKey)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM keypair_pool").
		WillReturnRows(sqlmock.NewRows([]string{"public_key", "private_key"}).AddRow(pub, priv))
	mock.ExpectExec("INSERT INTO keypair_assignments").
		WithArgs("project-1", pub).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO keypair_vault").
		WithArgs(pub, priv).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	pool := New(db)
	got, err := pool.Assign(context.Background(), "project-1")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, got.PublicKey)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Assign_EmptyPoolReturnsErrPoolEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM keypair_pool").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	pool := New(db)
	_, err = pool.Assign(context.Background(), "project-1")
	assert.ErrorIs(t, err, ErrPoolEmpty)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Depth_CountsFreeRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	pool := New(db)
	depth, err := pool.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, depth)
}
