package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasisPoints_PartOf(t *testing.T) {
	bps := BasisPoints(100) // 1%
	assert.Equal(t, uint64(10), bps.PartOf(1000))
	assert.Equal(t, uint64(0), BasisPoints(0).PartOf(1000))
}

func TestBasisPoints_OnTopOf_InverseOfPartOf(t *testing.T) {
	bps := BasisPoints(500) // 5%
	net := uint64(1000000)

	fee := bps.OnTopOf(net)
	gross := net + fee

	// PartOf the grossed-up amount should recover ~the same fee.
	assert.InDelta(t, float64(fee), float64(bps.PartOf(gross)), 1)
}

func TestBasisPoints_OnTopOf_AtMaxSaturates(t *testing.T) {
	bps := BasisPoints(10000)
	assert.Equal(t, ^uint64(0), bps.OnTopOf(1000))
}
