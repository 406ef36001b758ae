package project

import (
	"fmt"
	"time"
)

// ValidTransitions materializes the directed graph of spec §4.4 as a
// first-class value, so stage changes are enforced by CAS against this
// table rather than by free-form column updates.
var ValidTransitions = map[Stage][]Stage{
	StageCreated:          {StageConfirmed},
	StageConfirmed:        {StageOnStaticPool, StageOnCurvePool},
	StageOnStaticPool:     {StageStaticPoolClosed},
	StageStaticPoolClosed: {StageOnCurvePool},
	StageOnCurvePool:      {StageCurvePoolClosed},
	StageCurvePoolClosed:  {StageGraduated},
	StageGraduated:        {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Stage) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempted stage change that is not in
// ValidTransitions.
type TransitionError struct {
	From Stage
	To   Stage
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("project: invalid stage transition %s -> %s", e.From, e.To)
}

// NewTransitionError builds a TransitionError for from -> to.
func NewTransitionError(from, to Stage) TransitionError {
	return TransitionError{From: from, To: to}
}

// ObservedState is the subset of chain-synced data the eligibility
// predicates below need, independent of how the syncer delivered it.
type ObservedState struct {
	AccountObserved   bool
	CollectedLamports uint64
	CurveComplete     bool
}

// NeedsConfirm reports whether a project in Created has had its on-chain
// account observed by the syncer.
func NeedsConfirm(p Project, observed ObservedState) bool {
	return p.Stage == StageCreated && observed.AccountObserved
}

// NeedsStaticClose reports whether a static pool should close, either
// because its launch window elapsed or its cap was reached — whichever
// triggers first (spec §9 resolves the ambiguous "both configured" case
// this way).
func NeedsStaticClose(p Project, observed ObservedState, clusterTime func() time.Time) bool {
	if p.Stage != StageOnStaticPool || p.Schema.StaticPool == nil {
		return false
	}
	sp := p.Schema.StaticPool
	timedOut := !sp.LaunchTS.IsZero() && !clusterTime().Before(sp.LaunchTS)
	capped := sp.CapLamports > 0 && observed.CollectedLamports >= sp.CapLamports
	return timedOut || capped
}

// NeedsStaticGraduate reports whether a closed static pool is ready to
// migrate into the curve pool stage.
func NeedsStaticGraduate(p Project) bool {
	return p.Stage == StageStaticPoolClosed
}

// NeedsCurveClose reports whether the bonding curve has reached its
// completion condition.
func NeedsCurveClose(p Project, observed ObservedState) bool {
	return p.Stage == StageOnCurvePool && observed.CurveComplete
}

// NeedsAMMGraduate reports whether a closed external curve pool still
// needs its AMM deployment migration. Internal curves never match this
// predicate, and no migration moves an internal curve past
// CurvePoolClosed.
func NeedsAMMGraduate(p Project) bool {
	return p.Stage == StageCurvePoolClosed && p.Schema.CurvePool == CurveExternal
}
