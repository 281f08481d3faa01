package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WheelSegment is one equal-weight slot on the wheel. Weighting is achieved by
// repeating segments of the same color in the list, so the index is always
// drawn uniformly.
type WheelSegment struct {
	Color      string
	Label      string
	Multiplier decimal.Decimal
}

var WheelSegments = buildWheel()

func buildWheel() []WheelSegment {
	seg := func(color, label string, mult string) WheelSegment {
		return WheelSegment{Color: color, Label: label, Multiplier: decimal.RequireFromString(mult)}
	}

	// 24 slots: 12 black (2x), 8 red (3x), 3 blue (5x), 1 gold (10x).
	wheel := make([]WheelSegment, 0, 24)
	for i := 0; i < 12; i++ {
		wheel = append(wheel, seg("black", "2x", "2"))
	}
	for i := 0; i < 8; i++ {
		wheel = append(wheel, seg("red", "3x", "3"))
	}
	for i := 0; i < 3; i++ {
		wheel = append(wheel, seg("blue", "5x", "5"))
	}
	wheel = append(wheel, seg("gold", "10x", "10"))

	return wheel
}

// WheelParams is the player's chosen color.
type WheelParams struct {
	Color string
}

func (p WheelParams) Validate() error {
	for _, s := range WheelSegments {
		if s.Color == p.Color {
			return nil
		}
	}

	return fmt.Errorf("%w: unknown wheel color %q", ErrInvalidParameter, p.Color)
}

// WheelOutcome is the landed slot index, fixed at bet time.
type WheelOutcome struct {
	Index int
}

func GenerateWheel(src Source) WheelOutcome {
	return WheelOutcome{Index: src.IntN(len(WheelSegments))}
}

// WheelPayoutCents is the signed ledger delta for a spin result: the full
// stake x multiplier payout on a color match, zero otherwise (the stake was
// forfeited at bet time).
func WheelPayoutCents(stakeCents int64, out WheelOutcome, chosenColor string) int64 {
	landed := WheelSegments[out.Index]
	if landed.Color != chosenColor {
		return 0
	}

	return decimal.NewFromInt(stakeCents).Mul(landed.Multiplier).Round(0).IntPart()
}
