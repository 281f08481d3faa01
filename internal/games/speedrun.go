package games

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SpeedrunMinCrash = 1.01
	SpeedrunMaxCrash = 200.0

	// TickInterval is how often the displayed multiplier advances one step.
	SpeedrunTickInterval = 100 * time.Millisecond

	speedrunBaseStep   = 0.01
	speedrunStepGrowth = 1.06
)

// SpeedrunOutcome is the predetermined crash point, fixed at bet time and
// hidden from the client until the round ends.
type SpeedrunOutcome struct {
	CrashPoint float64
}

// GenerateSpeedrun draws the crash point from a tiered distribution:
// 70% in [1.01, 2.01), 25% in [2, 10), 5% in [10, 200).
func GenerateSpeedrun(src Source) SpeedrunOutcome {
	var crash float64

	switch tier := src.Float64(); {
	case tier < 0.70:
		crash = 1.01 + src.Float64()*1.00
	case tier < 0.95:
		crash = 2.0 + src.Float64()*8.0
	default:
		crash = 10.0 + src.Float64()*190.0
	}

	return SpeedrunOutcome{CrashPoint: math.Floor(crash*100) / 100}
}

// SpeedrunMultiplierAt is the displayed multiplier after the given number of
// elapsed ticks: starts at 1.00 and climbs by an accelerating step, capped at
// SpeedrunMaxCrash.
func SpeedrunMultiplierAt(tick int) float64 {
	m := 1.0
	step := speedrunBaseStep

	for i := 0; i < tick; i++ {
		m += step
		step *= speedrunStepGrowth

		if m >= SpeedrunMaxCrash {
			return SpeedrunMaxCrash
		}
	}

	return math.Floor(m*100) / 100
}

// SpeedrunTicksSince converts elapsed round time into whole ticks.
func SpeedrunTicksSince(start, now time.Time) int {
	if !now.After(start) {
		return 0
	}

	return int(now.Sub(start) / SpeedrunTickInterval)
}

// SpeedrunCashoutCents is the signed ledger delta for cashing out at the
// given multiplier: the winnings over the stake already debited.
func SpeedrunCashoutCents(stakeCents int64, multiplier float64) int64 {
	stake := decimal.NewFromInt(stakeCents)
	payout := stake.Mul(decimal.NewFromFloat(multiplier))

	return payout.Sub(stake).Round(0).IntPart()
}
