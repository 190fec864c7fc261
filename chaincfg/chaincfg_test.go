package chaincfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegTestGenesisIsDeterministic(t *testing.T) {
	a := NewRegTest()
	b := NewRegTest()
	require.Equal(t, a.GenesisBlock().BlockHash(), b.GenesisBlock().BlockHash())
}

func TestSubsidyHalves(t *testing.T) {
	r := NewRegTest()
	require.Equal(t, uint64(initialSubsidy), r.Subsidy(0))
	require.Equal(t, uint64(initialSubsidy/2), r.Subsidy(subsidyHalvingInterval))
	require.Equal(t, uint64(initialSubsidy/4), r.Subsidy(subsidyHalvingInterval*2))
}

func TestCalcNextRequiredDifficultyHoldsBetweenRetargets(t *testing.T) {
	bits := CalcNextRequiredDifficulty(100, 0x1d00ffff, 1000, 2000, 2016, 600, regtestPowLimit)
	require.Equal(t, uint32(0x1d00ffff), bits)
}

func TestCalcNextRequiredDifficultyRetargetsAtWindowBoundary(t *testing.T) {
	firstTimestamp := int64(0)
	tipTimestamp := int64(2016 * 600 * 2)
	bits := CalcNextRequiredDifficulty(2015, 0x1d00ffff, firstTimestamp, tipTimestamp, 2016, 600, regtestPowLimit)
	require.NotEqual(t, uint32(0x1d00ffff), bits)
}
