package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonzip/launchd/internal/chain"
	"github.com/moonzip/launchd/internal/curve"
	"github.com/moonzip/launchd/internal/fee"
	"github.com/moonzip/launchd/internal/keypair"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/project"
	"github.com/moonzip/launchd/internal/store"
	"github.com/moonzip/launchd/internal/txbuilder"
)

type fakeUploader struct {
	uploads int
}

func (f *fakeUploader) Upload(ctx context.Context, content []byte, mime, name string) (string, error) {
	f.uploads++
	return fmt.Sprintf("https://gateway.example/%s", name), nil
}

type fixedCurveReader struct {
	state curve.State
}

func (f fixedCurveReader) CurveState(ctx context.Context, poolKey string) (curve.State, error) {
	return f.state, nil
}

func fakeRPCServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc":"2.0","id":1,
			"result":{"value":{"blockhash":"11111111111111111111111111111111","lastValidBlockHeight":1}}
		}`))
	}))
}

func newTestBuilder(t *testing.T) *txbuilder.Builder {
	rpc := fakeRPCServer(t)
	t.Cleanup(rpc.Close)
	client, err := chain.NewClient(chain.Config{URL: rpc.URL})
	require.NoError(t, err)

	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	return txbuilder.New(txbuilder.Config{
		ProgramID:                solana.NewWallet().PublicKey(),
		TokenProgramID:           solana.TokenProgramID,
		AssociatedTokenProgramID: solana.SPLAssociatedTokenAccountProgramID,
		SystemProgramID:          solana.SystemProgramID,
		FeeAccount:               solana.NewWallet().PublicKey(),
		Authority:                authority,
		FeeBPS:                   fee.BasisPoints(100),
	}, client)
}

func newTestServer(t *testing.T, db *mockDB) *Server {
	return &Server{
		Store:       store.New(db.db),
		Keypairs:    keypair.New(db.db),
		Uploader:    &fakeUploader{},
		Builder:     newTestBuilder(t),
		Curves:      fixedCurveReader{state: curve.FromConfig(curve.DefaultConfig())},
		Logger:      logging.New("test"),
		ClusterTime: time.Now,
	}
}

type mockDB struct {
	db   *sql.DB
	mock sqlmock.Sqlmock
}

func newMockDB(t *testing.T) *mockDB {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &mockDB{db: db, mock: mock}
}

func TestHandleGetProject_MalformedID_ReturnsValidationError(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	req := httptest.NewRequest(http.MethodGet, "/api/project/get?projectId=not-a-uuid", nil)
	w := httptest.NewRecorder()

	s.handleGetProject(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetProject_NotFound_ReturnsNullProject(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	id := uuid.New()
	m.mock.ExpectQuery("SELECT .* FROM projects").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}))

	req := httptest.NewRequest(http.MethodGet, "/api/project/get?projectId="+id.String(), nil)
	w := httptest.NewRecorder()

	s.handleGetProject(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp getProjectResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Nil(t, resp.Project)
}

func TestHandleGetProject_Found_MapsPublicStage(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	id := uuid.New()
	owner := solana.NewWallet().PublicKey()
	schemaJSON := []byte(`{"curve_pool":"internal"}`)
	m.mock.ExpectQuery("SELECT .* FROM projects").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}).
			AddRow(id, owner.Bytes(), schemaJSON, int32(project.StageOnCurvePool), nil, nil, nil, time.Now().UTC()))
	m.mock.ExpectQuery("SELECT .* FROM token_metadata").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "name", "symbol", "description", "social_urls", "uri"}).
			AddRow(id, "Moon Coin", "MOON", "desc", []byte(`["https://x.com/moon"]`), "https://gateway/meta"))

	req := httptest.NewRequest(http.MethodGet, "/api/project/get?projectId="+id.String(), nil)
	w := httptest.NewRecorder()

	s.handleGetProject(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp getProjectResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Project)
	assert.Equal(t, "curvePoolActive", resp.Project.Stage)
	assert.Equal(t, "Moon Coin", resp.Project.Name)
}

func TestHandleBuy_NoActivePool_ReturnsStateConflict(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	id := uuid.New()
	owner := solana.NewWallet().PublicKey()
	schemaJSON := []byte(`{"curve_pool":"external"}`)
	m.mock.ExpectQuery("SELECT .* FROM projects").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}).
			AddRow(id, owner.Bytes(), schemaJSON, int32(project.StageOnCurvePool), nil, nil, nil, time.Now().UTC()))

	body := fmt.Sprintf(`{"user":%q,"projectId":%q,"sols":1000000}`, owner.String(), id.String())
	req := httptest.NewRequest(http.MethodPost, "/api/project/buy", strings.NewReader(body))
	w := httptest.NewRecorder()

	s.handleBuy(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBuy_OnCurvePool_ReturnsSignedTransaction(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	id := uuid.New()
	owner := solana.NewWallet().PublicKey()
	curveKP := solana.NewWallet().PublicKey()
	schemaJSON := []byte(`{"curve_pool":"internal"}`)
	m.mock.ExpectQuery("SELECT .* FROM projects").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}).
			AddRow(id, owner.Bytes(), schemaJSON, int32(project.StageOnCurvePool), nil, curveKP.Bytes(), nil, time.Now().UTC()))

	body := fmt.Sprintf(`{"user":%q,"projectId":%q,"sols":1000000}`, owner.String(), id.String())
	req := httptest.NewRequest(http.MethodPost, "/api/project/buy", strings.NewReader(body))
	w := httptest.NewRecorder()

	s.handleBuy(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp transactionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Transaction)
}

func TestHandleBuy_OnStaticPool_TargetsPreSalePool(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	id := uuid.New()
	owner := solana.NewWallet().PublicKey()
	staticAddr := solana.NewWallet().PublicKey()
	schemaJSON := []byte(`{"curve_pool":"external","static_pool":{"cap_lamports":1000000}}`)
	m.mock.ExpectQuery("SELECT .* FROM projects").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}).
			AddRow(id, owner.Bytes(), schemaJSON, int32(project.StageOnStaticPool), staticAddr.Bytes(), nil, nil, time.Now().UTC()))

	body := fmt.Sprintf(`{"user":%q,"projectId":%q,"sols":1000000}`, owner.String(), id.String())
	req := httptest.NewRequest(http.MethodPost, "/api/project/buy", strings.NewReader(body))
	w := httptest.NewRecorder()

	s.handleBuy(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp transactionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Transaction)
}

func TestHandleClaimDevLock_NoLockConfigured_ReturnsStateConflict(t *testing.T) {
	m := newMockDB(t)
	s := newTestServer(t, m)

	id := uuid.New()
	owner := solana.NewWallet().PublicKey()
	schemaJSON := []byte(`{"curve_pool":"external"}`)
	m.mock.ExpectQuery("SELECT .* FROM projects").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "deploy_schema", "stage", "static_pool_pubkey", "curve_pool_keypair", "dev_lock_keypair", "created_at"}).
			AddRow(id, owner.Bytes(), schemaJSON, int32(project.StageOnCurvePool), nil, nil, nil, time.Now().UTC()))

	body := fmt.Sprintf(`{"projectId":%q}`, id.String())
	req := httptest.NewRequest(http.MethodPost, "/api/project/claim_dev_lock", strings.NewReader(body))
	w := httptest.NewRecorder()

	s.handleClaimDevLock(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
