package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/project"
)

// createProjectRequest is the JSON shape of the "request" multipart field
// on POST /api/project/create.
type createProjectRequest struct {
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Description string   `json:"description"`
	SocialURLs  []string `json:"socialUrls"`

	StaticPool *staticPoolRequest `json:"staticPool,omitempty"`
	CurvePool  string             `json:"curvePool"`

	DevPurchase *devPurchaseRequest `json:"devPurchase,omitempty"`
}

type staticPoolRequest struct {
	LaunchTS    int64  `json:"launchTs"`
	CapLamports uint64 `json:"capLamports"`
}

type devPurchaseRequest struct {
	Amount           uint64 `json:"amount"`
	Lock             string `json:"lock"`
	LockIntervalSecs int64  `json:"lockIntervalSeconds,omitempty"`
}

func (r createProjectRequest) toSchema() (project.DeploySchema, error) {
	schema := project.DeploySchema{}

	switch project.CurveVariant(r.CurvePool) {
	case project.CurveInternal, project.CurveExternal:
		schema.CurvePool = project.CurveVariant(r.CurvePool)
	default:
		return schema, errInvalidCurveVariant
	}

	if r.StaticPool != nil {
		schema.StaticPool = &project.StaticPoolSchema{
			CapLamports: r.StaticPool.CapLamports,
		}
		if r.StaticPool.LaunchTS > 0 {
			schema.StaticPool.LaunchTS = time.Unix(r.StaticPool.LaunchTS, 0).UTC()
		}
	}

	if r.DevPurchase != nil {
		lock := project.LockKind(r.DevPurchase.Lock)
		switch lock {
		case project.LockDisabled, project.LockInterval:
		default:
			return schema, errInvalidLockKind
		}
		schema.DevPurchase = &project.DevPurchase{
			Amount: r.DevPurchase.Amount,
			Lock:   lock,
		}
		if lock == project.LockInterval {
			schema.DevPurchase.LockInterval = time.Duration(r.DevPurchase.LockIntervalSecs) * time.Second
		}
	}

	return schema, nil
}

type createProjectResponse struct {
	ProjectID   uuid.UUID `json:"projectId"`
	Transaction string    `json:"transaction"`
}

// publicProject is the client-facing projection of project.Project, per
// spec §6's PublicProject field list.
type publicProject struct {
	ID             uuid.UUID `json:"id"`
	Owner          string    `json:"owner"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
	Stage          string    `json:"stage"`
	CurvePoolMint  *string   `json:"curvePoolMint,omitempty"`
	StaticPoolMint *string   `json:"staticPoolMint,omitempty"`
	DevLockBase    *string   `json:"devLockBase,omitempty"`
}

type getProjectResponse struct {
	Project *publicProject `json:"project"`
}

type buyRequest struct {
	User           string    `json:"user"`
	ProjectID      uuid.UUID `json:"projectId"`
	Sols           uint64    `json:"sols"`
	MinTokenOutput uint64    `json:"minTokenOutput,omitempty"`
}

type sellRequest struct {
	User         string    `json:"user"`
	ProjectID    uuid.UUID `json:"projectId"`
	Tokens       uint64    `json:"tokens"`
	MinSolOutput uint64    `json:"minSolOutput,omitempty"`
}

type claimDevLockRequest struct {
	ProjectID uuid.UUID `json:"projectId"`
}

type transactionResponse struct {
	Transaction string `json:"transaction"`
}

type errorResponse struct {
	Error string `json:"error"`
}
