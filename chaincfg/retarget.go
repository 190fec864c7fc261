package chaincfg

import (
	"math/big"

	"github.com/artea/corecoin/pow"
)

// maxRetargetFactor bounds how much a single retarget step may loosen or
// tighten the target, in either direction.
const maxRetargetFactor = 4

// CalcNextRequiredDifficulty implements the classic retarget rule: every
// window blocks, scale the previous target by the ratio of actual to target
// timespan, clamped to [1/maxRetargetFactor, maxRetargetFactor] and to
// powLimit.
func CalcNextRequiredDifficulty(tipHeight int32, tipBits uint32, firstBlockTimestampInWindow, tipTimestamp int64, window int32, targetSpacingSeconds int64, powLimit *big.Int) uint32 {
	if (tipHeight+1)%window != 0 {
		return tipBits
	}

	actualTimespan := tipTimestamp - firstBlockTimestampInWindow
	targetTimespan := targetSpacingSeconds * int64(window)

	minTimespan := targetTimespan / maxRetargetFactor
	maxTimespan := targetTimespan * maxRetargetFactor
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := pow.CompactToBig(tipBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	if newTarget.Cmp(powLimit) > 0 {
		newTarget = powLimit
	}
	return pow.BigToCompact(newTarget)
}
