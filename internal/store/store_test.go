package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
)

func TestStore_CreateProject_InsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO projects").WillReturnResult(sqlmock.NewResult(1, 1))

	s := New(db)
	p := project.Project{
		Owner:  solana.PublicKey{},
		Schema: project.DeploySchema{CurvePool: project.CurveInternal},
		Stage:  project.StageCreated,
	}

	got, err := s.CreateProject(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AdvanceStage_RejectsIllegalEdge(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db)
	err = s.AdvanceStage(context.Background(), uuid.New(), project.StageCreated, project.StageGraduated)
	assert.Error(t, err)
	var transitionErr project.TransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestStore_AdvanceStage_StaleCASReturnsStaleStageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE projects SET stage").
		WithArgs(id, int32(project.StageCreated), int32(project.StageConfirmed)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := New(db)
	err = s.AdvanceStage(context.Background(), id, project.StageCreated, project.StageConfirmed)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindStaleStage, appErr.Kind)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListPending_FiltersByStageAndTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	schemaJSON := []byte(`{"curve_pool":"internal"}`)
	rows := sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}).
		AddRow(id, make([]byte, 32), schemaJSON, int32(project.StageCreated), nil, nil, nil, time.Now().UTC())
	mock.ExpectQuery("SELECT .* FROM projects").WillReturnRows(rows)

	s := New(db)
	got, err := s.ListPending(context.Background(), project.StageCreated, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, project.CurveInternal, got[0].Schema.CurvePool)
}

func TestStore_CreateTokenMetadata_InsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("INSERT INTO token_metadata").WillReturnResult(sqlmock.NewResult(1, 1))

	s := New(db)
	err = s.CreateTokenMetadata(context.Background(), project.TokenMetadata{
		ProjectID: id, Name: "Moon Coin", Symbol: "MOON", SocialURLs: []string{"https://x.com/moon"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetTokenMetadataURI_UpdatesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE token_metadata SET uri").
		WithArgs(id, "https://gateway.pinata.cloud/ipfs/QmX").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db)
	err = s.SetTokenMetadataURI(context.Background(), id, "https://gateway.pinata.cloud/ipfs/QmX")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
