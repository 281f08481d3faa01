package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Penalty shootout zones the shooter can aim at.
const (
	ZoneLeft = iota
	ZoneCenter
	ZoneRight
	zoneCount
)

// Goal probability per multiplier tier. Lower tiers pay less and score more.
var penaltyTiers = map[int]float64{
	2: 0.40,
	3: 0.35,
	4: 0.30,
	5: 0.20,
}

const (
	// A shot struck above this power can go wide regardless of the goal roll.
	penaltyWidePowerThreshold = 0.5
	penaltyWideProbability    = 0.2
)

// PenaltyParams is the multiplier tier committed at bet time.
type PenaltyParams struct {
	Tier int
}

func (p PenaltyParams) Validate() error {
	_, ok := penaltyTiers[p.Tier]
	if !ok {
		return fmt.Errorf("%w: unknown penalty tier %dx", ErrInvalidParameter, p.Tier)
	}

	return nil
}

// PenaltyGoalProbability reports the goal chance for a valid tier.
func PenaltyGoalProbability(tier int) float64 {
	return penaltyTiers[tier]
}

// PenaltyOutcome holds the rolls drawn at bet time, before the player has
// chosen zone or power. The verdict is derived from them at shot time, so the
// committed outcome cannot be previewed or influenced by the client.
type PenaltyOutcome struct {
	GoalRoll float64
	WideRoll float64
	ZonePick int // selects the keeper's zone among the non-shot zones on a goal
}

func GeneratePenalty(src Source) PenaltyOutcome {
	return PenaltyOutcome{
		GoalRoll: src.Float64(),
		WideRoll: src.Float64(),
		ZonePick: src.IntN(zoneCount - 1),
	}
}

// PenaltyResult is the verdict for one shot.
type PenaltyResult struct {
	Goal       bool
	Wide       bool
	KeeperZone int
}

// ResolvePenalty applies the shot to the committed rolls. The keeper dives to
// the shooter's zone on any non-goal (a save) and to a different zone on a
// goal.
func ResolvePenalty(out PenaltyOutcome, tier, shotZone int, power float64) (PenaltyResult, error) {
	prob, ok := penaltyTiers[tier]
	if !ok {
		return PenaltyResult{}, fmt.Errorf("%w: unknown penalty tier %dx", ErrInvalidParameter, tier)
	}

	if shotZone < 0 || shotZone >= zoneCount {
		return PenaltyResult{}, fmt.Errorf("%w: shot zone %d out of range", ErrInvalidParameter, shotZone)
	}

	if power < 0 || power > 1 {
		return PenaltyResult{}, fmt.Errorf("%w: shot power %.2f out of range [0,1]", ErrInvalidParameter, power)
	}

	res := PenaltyResult{Goal: out.GoalRoll < prob}

	if power > penaltyWidePowerThreshold && out.WideRoll < penaltyWideProbability {
		res.Goal = false
		res.Wide = true
	}

	if res.Goal {
		res.KeeperZone = otherZone(shotZone, out.ZonePick)
	} else {
		res.KeeperZone = shotZone
	}

	return res, nil
}

// otherZone maps pick in [0, zoneCount-2] onto the zones excluding shotZone.
func otherZone(shotZone, pick int) int {
	if pick >= shotZone {
		pick++
	}

	return pick
}

// PenaltyPayoutCents is the signed ledger delta: the full stake x tier payout
// on a goal, minus stake x tier on a save or miss (the "lose the potential
// win" rule, clamped to the available balance by the ledger).
func PenaltyPayoutCents(stakeCents int64, tier int, res PenaltyResult) int64 {
	amount := decimal.NewFromInt(stakeCents).Mul(decimal.NewFromInt(int64(tier))).Round(0).IntPart()
	if res.Goal {
		return amount
	}

	return -amount
}
