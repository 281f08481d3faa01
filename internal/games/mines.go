package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	MinesGridSize = 25
	MinesMinCount = 1
	MinesMaxCount = MinesGridSize - 1
)

var (
	minesBaseMultiplier  = decimal.NewFromInt(1)                        // 0 gems revealed
	minesStartMultiplier = decimal.RequireFromString("1.05")            // 1 gem revealed
	minesCapMultiplier   = decimal.NewFromInt(10)                       // all gems revealed
	minesMultiplierSpan  = minesCapMultiplier.Sub(minesStartMultiplier) // 8.95
)

// MinesParams are the risk parameters committed at bet time.
type MinesParams struct {
	MineCount int
}

func (p MinesParams) Validate() error {
	if p.MineCount < MinesMinCount || p.MineCount > MinesMaxCount {
		return fmt.Errorf("%w: mine count %d out of range [%d,%d]",
			ErrInvalidParameter, p.MineCount, MinesMinCount, MinesMaxCount)
	}

	return nil
}

// MinesOutcome is the full board, generated at bet time and kept server-side.
type MinesOutcome struct {
	Mines [MinesGridSize]bool
}

func (o MinesOutcome) MineCount() int {
	n := 0
	for _, m := range o.Mines {
		if m {
			n++
		}
	}

	return n
}

// GenerateMines places exactly MineCount mines uniformly over the grid by
// rejection sampling: draw uniform cells, skip already-mined ones, until the
// requested count is reached. Every C(25, mineCount) placement is equally
// likely.
func GenerateMines(src Source, p MinesParams) (MinesOutcome, error) {
	err := p.Validate()
	if err != nil {
		return MinesOutcome{}, err
	}

	var out MinesOutcome

	placed := 0
	for placed < p.MineCount {
		cell := src.IntN(MinesGridSize)
		if out.Mines[cell] {
			continue
		}

		out.Mines[cell] = true
		placed++
	}

	return out, nil
}

// MinesMultiplier is the cash-out multiplier after gemsFound safe reveals:
// 1.00 at 0 gems, 1.05 at the first gem, then linear up to the 10.00 cap when
// every non-mine cell is revealed. The span is multiplied before dividing so
// the cap lands exactly at totalGems.
func MinesMultiplier(gemsFound, mineCount int) decimal.Decimal {
	if gemsFound <= 0 {
		return minesBaseMultiplier
	}

	totalGems := MinesGridSize - mineCount
	if gemsFound >= totalGems {
		return minesCapMultiplier
	}

	num := minesMultiplierSpan.Mul(decimal.NewFromInt(int64(gemsFound - 1)))

	return minesStartMultiplier.Add(num.Div(decimal.NewFromInt(int64(totalGems - 1))))
}

// MinesCashoutCents is the signed ledger delta for cashing out: the winnings
// over the stake already debited. Zero or negative means nothing to credit.
func MinesCashoutCents(stakeCents int64, gemsFound, mineCount int) int64 {
	stake := decimal.NewFromInt(stakeCents)
	payout := stake.Mul(MinesMultiplier(gemsFound, mineCount))

	return payout.Sub(stake).Round(0).IntPart()
}

// MinesPenaltyCents is the debit applied on hitting a mine: the potential
// payout at the moment of loss, not merely the stake.
func MinesPenaltyCents(stakeCents int64, gemsFound, mineCount int) int64 {
	stake := decimal.NewFromInt(stakeCents)

	return stake.Mul(MinesMultiplier(gemsFound, mineCount)).Round(0).IntPart()
}
