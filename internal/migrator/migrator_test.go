package migrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moonzip/launchd/internal/project"
)

func TestObservedState_ReadsOnlyConfiguredPools(t *testing.T) {
	// A project with neither pool configured should need no lookups and
	// return the zero observed state.
	obs, err := (&Worker{}).observedState(context.Background(), project.Project{})
	assert.NoError(t, err)
	assert.False(t, obs.CurveComplete)
	assert.Equal(t, uint64(0), obs.CollectedLamports)
}

func TestCandidate_StaticPoolAtCapNeedsStaticClose(t *testing.T) {
	now := time.Now()
	p := project.Project{
		Stage: project.StageOnStaticPool,
		Schema: project.DeploySchema{
			StaticPool: &project.StaticPoolSchema{CapLamports: 1000},
		},
	}
	observed := project.ObservedState{CollectedLamports: 1000}
	assert.True(t, project.NeedsStaticClose(p, observed, func() time.Time { return now }))
}

func TestDefaultPrechecks_CreateCurvePool_FalseWithoutKeypair(t *testing.T) {
	checks := defaultPrechecks(nil, nil)
	check, ok := checks[0] // MigrationCreateCurvePool == 0
	assert.True(t, ok)
	done, err := check.AlreadyDone(context.Background(), project.Project{})
	assert.NoError(t, err)
	assert.False(t, done)
}

func TestDefaultPrechecks_StaticPoolGraduate_AlwaysFalse(t *testing.T) {
	checks := defaultPrechecks(nil, nil)
	check := checks[1] // MigrationStaticPoolGraduate == 1
	done, err := check.AlreadyDone(context.Background(), project.Project{})
	assert.NoError(t, err)
	assert.False(t, done)
}
