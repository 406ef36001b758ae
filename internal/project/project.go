// Package project defines the central aggregate of the lifecycle engine:
// the Project record, its deployment schema, and the stage state machine
// that governs legal transitions (spec §3, §4.4).
package project

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Stage is the internal lifecycle position of a project.
type Stage int32

const (
	StageCreated Stage = iota
	StageConfirmed
	StageOnStaticPool
	StageStaticPoolClosed
	StageOnCurvePool
	StageCurvePoolClosed
	StageGraduated
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageConfirmed:
		return "confirmed"
	case StageOnStaticPool:
		return "on_static_pool"
	case StageStaticPoolClosed:
		return "static_pool_closed"
	case StageOnCurvePool:
		return "on_curve_pool"
	case StageCurvePoolClosed:
		return "curve_pool_closed"
	case StageGraduated:
		return "graduated"
	default:
		return "unknown"
	}
}

// PublicStage maps the internal stage to the client-facing name, hiding
// Created and Confirmed per spec §4.3's public projection rule.
func (s Stage) PublicStage() string {
	switch s {
	case StageOnStaticPool:
		return "staticPoolActive"
	case StageStaticPoolClosed:
		return "staticPoolClosed"
	case StageOnCurvePool:
		return "curvePoolActive"
	case StageCurvePoolClosed:
		return "curvePoolClosed"
	case StageGraduated:
		return "graduated"
	default:
		return "pending"
	}
}

// CurveVariant distinguishes a pool run by the platform's own program from
// one run by an external, already-deployed curve (e.g. pump.fun).
type CurveVariant string

const (
	CurveInternal CurveVariant = "internal"
	CurveExternal CurveVariant = "external"
)

// LockKind selects whether a dev purchase sits in a time-locked escrow.
type LockKind string

const (
	LockDisabled LockKind = "disabled"
	LockInterval LockKind = "interval"
)

// DevPurchase describes an optional initial purchase by the project
// creator, optionally held under a time lock.
type DevPurchase struct {
	Amount       uint64
	Lock         LockKind
	LockInterval time.Duration
}

// StaticPoolSchema configures the optional timed pre-sale pool.
type StaticPoolSchema struct {
	LaunchTS time.Time
	CapLamports uint64
}

// DeploySchema is the tagged record chosen at project creation; every
// field here is immutable once the project exists.
type DeploySchema struct {
	StaticPool  *StaticPoolSchema
	CurvePool   CurveVariant
	DevPurchase *DevPurchase
}

// Project is the central aggregate: one token launch tracked end to end.
type Project struct {
	ID       uuid.UUID
	Owner    solana.PublicKey
	Schema   DeploySchema
	Stage    Stage

	StaticPoolPubkey *solana.PublicKey
	CurvePoolKeypair *solana.PublicKey // public half only; private half lives in the keypair vault
	DevLockKeypair   *solana.PublicKey

	CreatedAt time.Time
}

// NeedsKeypair reports whether this project's schema requires drawing from
// the Keypair Pool at creation time (invariant I2/I3).
func (p Project) NeedsKeypair() bool {
	return p.Schema.CurvePool == CurveInternal || (p.Schema.DevPurchase != nil && p.Schema.DevPurchase.Lock == LockInterval)
}

// TokenMetadata is the child record created alongside a project; URI is
// populated once the off-chain metadata upload succeeds.
type TokenMetadata struct {
	ProjectID   uuid.UUID
	Name        string
	Symbol      string
	Description string
	SocialURLs  []string
	URI         string
}

// TokenImage is the raw image payload keyed by project id, written once
// at creation and consumed by the metadata uploader.
type TokenImage struct {
	ProjectID uuid.UUID
	MimeType  string
	Bytes     []byte
}
