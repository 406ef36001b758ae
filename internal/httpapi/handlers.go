package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
	"github.com/moonzip/launchd/internal/txbuilder"
)

var (
	errInvalidCurveVariant = apperrors.Validation("unrecognized curve pool variant", nil)
	errInvalidLockKind     = apperrors.Validation("unrecognized dev-purchase lock kind", nil)
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Fatal("unhandled error", err)
	}
	writeJSON(w, appErr.HTTPStatus(), errorResponse{Error: appErr.Message})
}

func parsePubkey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, apperrors.Validation("invalid base58 public key", err)
	}
	return pk, nil
}

// handleCreateProject implements POST /api/project/create (spec §4.2).
// The propagation rule requires every side effect to commit before the
// transaction payload is returned: it uploads to IPFS and writes the
// store record before ever calling the builder, so a build failure never
// leaves an orphaned upload+DB pair the client believes succeeded.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, apperrors.Validation("malformed multipart body", err))
		return
	}

	reqPart, ok := r.MultipartForm.Value["request"]
	if !ok || len(reqPart) == 0 {
		writeError(w, apperrors.Validation("missing request field", nil))
		return
	}

	var req createProjectRequest
	if err := json.Unmarshal([]byte(reqPart[0]), &req); err != nil {
		writeError(w, apperrors.Validation("malformed request JSON", err))
		return
	}
	if req.Name == "" || req.Symbol == "" {
		writeError(w, apperrors.Validation("name and symbol are required", nil))
		return
	}

	owner, err := parsePubkey(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}

	schema, err := req.toSchema()
	if err != nil {
		writeError(w, err)
		return
	}

	imageBytes, imageMime, err := readImagePart(r.MultipartForm)
	if err != nil {
		writeError(w, err)
		return
	}

	p := project.Project{
		ID:     uuid.New(),
		Owner:  owner,
		Schema: schema,
		Stage:  project.StageCreated,
	}

	var curveKeypair, devLockKeypair *solana.PrivateKey
	if schema.CurvePool == project.CurveInternal {
		kp, err := s.Keypairs.Assign(ctx, p.ID.String())
		if err != nil {
			writeError(w, keypairAssignError(err))
			return
		}
		curveKeypair = &kp.PrivateKey
		pub := kp.PublicKey
		p.CurvePoolKeypair = &pub
	}
	if schema.DevPurchase != nil && schema.DevPurchase.Lock == project.LockInterval {
		kp, err := s.Keypairs.Assign(ctx, p.ID.String())
		if err != nil {
			writeError(w, keypairAssignError(err))
			return
		}
		devLockKeypair = &kp.PrivateKey
		pub := kp.PublicKey
		p.DevLockKeypair = &pub
	}

	created, err := s.Store.CreateProject(ctx, p)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(imageBytes) > 0 {
		if err := s.Store.CreateTokenImage(ctx, project.TokenImage{
			ProjectID: created.ID, MimeType: imageMime, Bytes: imageBytes,
		}); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := s.Store.CreateTokenMetadata(ctx, project.TokenMetadata{
		ProjectID: created.ID, Name: req.Name, Symbol: req.Symbol,
		Description: req.Description, SocialURLs: req.SocialURLs,
	}); err != nil {
		writeError(w, err)
		return
	}

	if len(imageBytes) > 0 {
		imageURI, err := s.Uploader.Upload(ctx, imageBytes, imageMime, req.Name+"-image")
		if err != nil {
			writeError(w, err)
			return
		}
		metaJSON, _ := json.Marshal(struct {
			Name        string   `json:"name"`
			Symbol      string   `json:"symbol"`
			Description string   `json:"description"`
			Image       string   `json:"image"`
			Socials     []string `json:"socials,omitempty"`
		}{req.Name, req.Symbol, req.Description, imageURI, req.SocialURLs})
		metaURI, err := s.Uploader.Upload(ctx, metaJSON, "application/json", req.Name+"-metadata")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.Store.SetTokenMetadataURI(ctx, created.ID, metaURI); err != nil {
			writeError(w, err)
			return
		}
	}

	var mint solana.PublicKey
	if p.CurvePoolKeypair != nil {
		mint = *p.CurvePoolKeypair
	}
	unsigned, err := s.Builder.BuildCreateProject(ctx, txbuilder.CreateRequest{
		ProjectID:    created.ID,
		Owner:        owner,
		Mint:         mint,
		Schema:       schema,
		CurveKeypair: curveKeypair,
		DevLockKey:   devLockKeypair,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createProjectResponse{
		ProjectID:   created.ID,
		Transaction: unsigned.Base64(),
	})
}

func keypairAssignError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.ResourceExhausted("keypair pool exhausted, try again shortly", err)
}

func readImagePart(form *multipart.Form) ([]byte, string, error) {
	files := form.File["imageContent"]
	if len(files) == 0 {
		return nil, "", nil
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, "", apperrors.Validation("cannot open image content", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", apperrors.Validation("cannot read image content", err)
	}
	mimeType := files[0].Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return data, mimeType, nil
}

// handleGetProject implements GET /api/project/get. A well-formed id for a
// project that doesn't exist is not an error per spec §6 — it resolves to
// `{project: null}`.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idRaw := r.URL.Query().Get("projectId")
	id, err := uuid.Parse(idRaw)
	if err != nil {
		writeError(w, apperrors.Validation("malformed projectId", err))
		return
	}

	p, err := s.Store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusOK, getProjectResponse{Project: nil})
			return
		}
		writeError(w, err)
		return
	}

	meta, err := s.Store.GetTokenMetadata(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		writeError(w, err)
		return
	}

	pub := &publicProject{
		ID:          p.ID,
		Owner:       p.Owner.String(),
		Name:        meta.Name,
		Description: meta.Description,
		CreatedAt:   p.CreatedAt,
		Stage:       p.Stage.PublicStage(),
	}
	if p.CurvePoolKeypair != nil {
		mint := p.CurvePoolKeypair.String()
		pub.CurvePoolMint = &mint
	}
	if p.StaticPoolPubkey != nil {
		mint := p.StaticPoolPubkey.String()
		pub.StaticPoolMint = &mint
	}
	if p.DevLockKeypair != nil {
		base := p.DevLockKeypair.String()
		pub.DevLockBase = &base
	}

	writeJSON(w, http.StatusOK, getProjectResponse{Project: pub})
}

// handleBuy implements POST /api/project/buy.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("malformed request body", err))
		return
	}
	user, err := parsePubkey(req.User)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := s.Store.GetProject(ctx, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch p.Stage {
	case project.StageOnStaticPool:
		unsigned, err := s.Builder.BuildStaticBuy(ctx, p, txbuilder.StaticBuyRequest{
			ProjectID: req.ProjectID,
			User:      user,
			Sols:      req.Sols,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transactionResponse{Transaction: unsigned.Base64()})

	case project.StageOnCurvePool:
		if p.CurvePoolKeypair == nil {
			writeError(w, apperrors.StateConflict("project has no active pool", nil))
			return
		}
		mint := *p.CurvePoolKeypair

		curveState, err := s.Curves.CurveState(ctx, mint.String())
		if err != nil {
			writeError(w, err)
			return
		}

		accounts, err := deriveTradeAccounts(s.Builder.ProgramID(), user, mint)
		if err != nil {
			writeError(w, err)
			return
		}

		unsigned, _, err := s.Builder.BuildBuy(ctx, p, curveState, txbuilder.BuyRequest{
			ProjectID:      req.ProjectID,
			User:           user,
			Mint:           mint,
			UserTokenAcct:  accounts.userTokenAcct,
			PoolTokenAcct:  accounts.poolTokenAcct,
			PoolAddress:    accounts.poolAddress,
			Sols:           req.Sols,
			MinTokenOutput: req.MinTokenOutput,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, transactionResponse{Transaction: unsigned.Base64()})

	default:
		writeError(w, apperrors.StateConflict("project not open for buys", nil))
	}
}

// handleSell implements POST /api/project/sell.
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("malformed request body", err))
		return
	}
	user, err := parsePubkey(req.User)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := s.Store.GetProject(ctx, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.CurvePoolKeypair == nil {
		writeError(w, apperrors.StateConflict("project has no active pool", nil))
		return
	}
	mint := *p.CurvePoolKeypair

	curveState, err := s.Curves.CurveState(ctx, mint.String())
	if err != nil {
		writeError(w, err)
		return
	}

	accounts, err := deriveTradeAccounts(s.Builder.ProgramID(), user, mint)
	if err != nil {
		writeError(w, err)
		return
	}

	unsigned, _, err := s.Builder.BuildSell(ctx, p, curveState, txbuilder.SellRequest{
		ProjectID:     req.ProjectID,
		User:          user,
		Mint:          mint,
		UserTokenAcct: accounts.userTokenAcct,
		PoolTokenAcct: accounts.poolTokenAcct,
		PoolAddress:   accounts.poolAddress,
		Tokens:        req.Tokens,
		MinSolOutput:  req.MinSolOutput,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse{Transaction: unsigned.Base64()})
}

// handleClaimDevLock implements POST /api/project/claim_dev_lock.
func (s *Server) handleClaimDevLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req claimDevLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("malformed request body", err))
		return
	}

	p, err := s.Store.GetProject(ctx, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.DevLockKeypair == nil {
		writeError(w, apperrors.StateConflict("no dev lock configured for this project", nil))
		return
	}

	escrowKey, err := s.Keypairs.PrivateKeyFor(ctx, *p.DevLockKeypair)
	if err != nil {
		writeError(w, apperrors.Fatal("dev lock keypair missing from vault", err))
		return
	}

	unsigned, err := s.Builder.BuildClaimDevLock(ctx, p, txbuilder.ClaimDevLockRequest{
		Owner:         p.Owner,
		EscrowKeypair: escrowKey,
	}, s.ClusterTime)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse{Transaction: unsigned.Base64()})
}
