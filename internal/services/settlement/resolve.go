package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/games"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/metrics"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/rounds"
)

// Settled rounds linger this long so a client retry gets a clean
// already-settled answer instead of not-found, then get evicted to keep the
// in-memory store bounded.
const settledRoundRetention = 5 * time.Minute

type ActionKind string

const (
	ActionReveal  ActionKind = "reveal"  // mines: open one cell
	ActionCashout ActionKind = "cashout" // mines, speedrun: lock in the multiplier
	ActionSpin    ActionKind = "spin"    // wheel: run the committed spin
	ActionShoot   ActionKind = "shoot"   // penalty: take the shot
)

type ResolveInput struct {
	RoundID string
	UserID  uint64
	Action  ActionKind

	Cell  int     // reveal
	Zone  int     // shoot
	Power float64 // shoot
}

type ResolveOutput struct {
	RoundID      string `json:"roundId"`
	Settled      bool   `json:"settled"`
	SettledCents int64  `json:"settledCents"` // signed net delta applied at settlement
	BalanceCents int64  `json:"balanceCents"`

	Mines    *MinesProgress  `json:"mines,omitempty"`
	Wheel    *WheelResult    `json:"wheel,omitempty"`
	Penalty  *PenaltyVerdict `json:"penalty,omitempty"`
	Speedrun *SpeedrunResult `json:"speedrun,omitempty"`
}

type MinesProgress struct {
	GemsFound  int    `json:"gemsFound"`
	Multiplier string `json:"multiplier"`
	HitMine    bool   `json:"hitMine"`
	// MineCells is revealed only once the round is settled.
	MineCells []int `json:"mineCells,omitempty"`
}

type WheelResult struct {
	Index      int    `json:"index"`
	Color      string `json:"color"`
	Label      string `json:"label"`
	Multiplier string `json:"multiplier"`
	Win        bool   `json:"win"`
}

type PenaltyVerdict struct {
	Goal       bool `json:"goal"`
	Wide       bool `json:"wide"`
	KeeperZone int  `json:"keeperZone"`
}

type SpeedrunResult struct {
	Multiplier float64 `json:"multiplier"`
	CrashPoint float64 `json:"crashPoint"`
	Crashed    bool    `json:"crashed"`
}

// Resolve applies one player action to an active round. The round lock is
// held across the ledger call, so a concurrent retry observes either the
// still-active round or the terminal state, never a half-settled one.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (out *ResolveOutput, err error) {
	start := time.Now()
	result := "fail"

	r, err := s.rounds.Get(in.RoundID, in.UserID)
	if err != nil {
		metrics.RecordResolve(result, "unknown", start)
		return nil, err
	}

	defer func() { metrics.RecordResolve(result, string(r.Game), start) }()

	r.Lock()
	defer r.Unlock()

	switch r.State() {
	case rounds.StateActive:
	case rounds.StateSettled:
		return nil, rounds.ErrAlreadySettled
	default:
		return nil, rounds.ErrRoundNotActive
	}

	switch r.Game {
	case games.Mines:
		out, err = s.resolveMines(ctx, r, in)
	case games.Wheel:
		out, err = s.resolveWheel(ctx, r, in)
	case games.Penalty:
		out, err = s.resolvePenalty(ctx, r, in)
	case games.Speedrun:
		out, err = s.resolveSpeedrun(ctx, r, in)
	default:
		return nil, fmt.Errorf("%w: unknown game %q", games.ErrInvalidParameter, r.Game)
	}

	if err != nil {
		return nil, err
	}

	if out.Settled {
		s.rounds.RemoveAfter(r.ID, settledRoundRetention)

		slog.Info("round settled",
			"round_id", r.ID, "user_id", r.UserID, "game", r.Game,
			"settled_cents", out.SettledCents, "balance_cents", out.BalanceCents)
	}

	result = "success"

	return out, nil
}

func (s *Service) resolveMines(ctx context.Context, r *rounds.Round, in ResolveInput) (*ResolveOutput, error) {
	switch in.Action {
	case ActionReveal:
		return s.minesReveal(ctx, r, in.Cell)
	case ActionCashout:
		return s.minesCashout(ctx, r)
	default:
		return nil, fmt.Errorf("%w: action %q not valid for mines", games.ErrInvalidParameter, in.Action)
	}
}

func (s *Service) minesReveal(ctx context.Context, r *rounds.Round, cell int) (*ResolveOutput, error) {
	if r.MineHit {
		return s.minesSettleLoss(ctx, r)
	}

	if cell < 0 || cell >= games.MinesGridSize {
		return nil, fmt.Errorf("%w: cell %d out of range", games.ErrInvalidParameter, cell)
	}
	if r.Revealed[cell] {
		return nil, fmt.Errorf("%w: cell %d already revealed", games.ErrInvalidParameter, cell)
	}

	r.Revealed[cell] = true

	if r.MineGrid[cell] {
		// Latch the loss before the ledger write. If the settle fails the
		// round stays active with MineHit pinned, and any retry, reveal or
		// cash-out alike, replays the penalty instead of acting afresh.
		r.MineHit = true

		return s.minesSettleLoss(ctx, r)
	}

	r.GemsFound++

	// Clearing the whole board ends the round at the cap; there is nothing
	// left to reveal.
	if r.GemsFound >= r.TotalGems() {
		return s.minesCashout(ctx, r)
	}

	balance, err := s.ledger.GetBalance(ctx, r.UserID)
	if err != nil {
		return nil, err
	}

	return &ResolveOutput{
		RoundID:      r.ID,
		BalanceCents: balance,
		Mines: &MinesProgress{
			GemsFound:  r.GemsFound,
			Multiplier: games.MinesMultiplier(r.GemsFound, r.MineCount).StringFixed(2),
		},
	}, nil
}

// minesSettleLoss settles a round whose mine cell has been opened. GemsFound
// is frozen at the moment of loss, so a replay after a failed ledger write
// charges the identical penalty.
func (s *Service) minesSettleLoss(ctx context.Context, r *rounds.Round) (*ResolveOutput, error) {
	// The penalty is the potential payout at the moment of loss, clamped
	// so the balance never goes negative.
	penalty := games.MinesPenaltyCents(r.StakeCents, r.GemsFound, r.MineCount)

	applied, balance, err := s.settleRound(ctx, r, -penalty, entries.TypeDebitLossPenalty, true, minesDetails(r))
	if err != nil {
		return nil, err
	}

	return &ResolveOutput{
		RoundID:      r.ID,
		Settled:      true,
		SettledCents: applied,
		BalanceCents: balance,
		Mines: &MinesProgress{
			GemsFound:  r.GemsFound,
			Multiplier: games.MinesMultiplier(r.GemsFound, r.MineCount).StringFixed(2),
			HitMine:    true,
			MineCells:  mineCells(r),
		},
	}, nil
}

func (s *Service) minesCashout(ctx context.Context, r *rounds.Round) (*ResolveOutput, error) {
	if r.MineHit {
		return s.minesSettleLoss(ctx, r)
	}

	credit := games.MinesCashoutCents(r.StakeCents, r.GemsFound, r.MineCount)

	applied, balance, err := s.settleRound(ctx, r, credit, entries.TypeCreditWin, false, minesDetails(r))
	if err != nil {
		return nil, err
	}

	return &ResolveOutput{
		RoundID:      r.ID,
		Settled:      true,
		SettledCents: applied,
		BalanceCents: balance,
		Mines: &MinesProgress{
			GemsFound:  r.GemsFound,
			Multiplier: games.MinesMultiplier(r.GemsFound, r.MineCount).StringFixed(2),
			MineCells:  mineCells(r),
		},
	}, nil
}

func (s *Service) resolveWheel(ctx context.Context, r *rounds.Round, in ResolveInput) (*ResolveOutput, error) {
	if in.Action != ActionSpin {
		return nil, fmt.Errorf("%w: action %q not valid for wheel", games.ErrInvalidParameter, in.Action)
	}

	landed := games.WheelSegments[r.WheelOutcome.Index]
	payout := games.WheelPayoutCents(r.StakeCents, r.WheelOutcome, r.WheelColor)

	details, err := json.Marshal(map[string]any{
		"betAmountCents":   r.StakeCents,
		"landedColor":      landed.Color,
		"totalPayoutCents": payout,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	applied, balance, err := s.settleRound(ctx, r, payout, entries.TypeCreditWin, false, details)
	if err != nil {
		return nil, err
	}

	return &ResolveOutput{
		RoundID:      r.ID,
		Settled:      true,
		SettledCents: applied,
		BalanceCents: balance,
		Wheel: &WheelResult{
			Index:      r.WheelOutcome.Index,
			Color:      landed.Color,
			Label:      landed.Label,
			Multiplier: landed.Multiplier.StringFixed(2),
			Win:        payout > 0,
		},
	}, nil
}

func (s *Service) resolvePenalty(ctx context.Context, r *rounds.Round, in ResolveInput) (*ResolveOutput, error) {
	if in.Action != ActionShoot {
		return nil, fmt.Errorf("%w: action %q not valid for penalty", games.ErrInvalidParameter, in.Action)
	}

	// The verdict is latched on the first valid shot. A retry after a failed
	// ledger write settles that shot, whatever inputs it carries.
	if r.ShotVerdict == nil {
		verdict, err := games.ResolvePenalty(r.PenaltyRolls, r.PenaltyTier, in.Zone, in.Power)
		if err != nil {
			return nil, err
		}

		r.ShotVerdict = &verdict
	}

	verdict := *r.ShotVerdict
	delta := games.PenaltyPayoutCents(r.StakeCents, r.PenaltyTier, verdict)

	details, err := json.Marshal(map[string]any{
		"tier": r.PenaltyTier, "goal": verdict.Goal, "wide": verdict.Wide,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	entryType := entries.TypeCreditWin
	clamp := false

	if delta < 0 {
		// A save or miss charges the potential win, never past zero.
		entryType = entries.TypeDebitLossPenalty
		clamp = true
	}

	applied, balance, err := s.settleRound(ctx, r, delta, entryType, clamp, details)
	if err != nil {
		return nil, err
	}

	return &ResolveOutput{
		RoundID:      r.ID,
		Settled:      true,
		SettledCents: applied,
		BalanceCents: balance,
		Penalty: &PenaltyVerdict{
			Goal:       verdict.Goal,
			Wide:       verdict.Wide,
			KeeperZone: verdict.KeeperZone,
		},
	}, nil
}

func (s *Service) resolveSpeedrun(ctx context.Context, r *rounds.Round, in ResolveInput) (*ResolveOutput, error) {
	if in.Action != ActionCashout {
		return nil, fmt.Errorf("%w: action %q not valid for speedrun", games.ErrInvalidParameter, in.Action)
	}

	// The multiplier is read off the server clock once and latched, so a
	// retry after a failed ledger write pays the original cash-out moment
	// rather than wherever the clock has drifted to since.
	if r.LockedMultiplier == 0 {
		ticks := games.SpeedrunTicksSince(r.StartedAt, s.now())
		r.LockedMultiplier = games.SpeedrunMultiplierAt(ticks)
	}

	multiplier := r.LockedMultiplier

	if multiplier >= r.CrashPoint {
		// Crashed before cash-out: the stake is already forfeited, nothing
		// further moves.
		_, balance, err := s.settleRound(ctx, r, 0, entries.TypeCreditWin, false, nil)
		if err != nil {
			return nil, err
		}

		return &ResolveOutput{
			RoundID:      r.ID,
			Settled:      true,
			BalanceCents: balance,
			Speedrun: &SpeedrunResult{
				Multiplier: r.CrashPoint,
				CrashPoint: r.CrashPoint,
				Crashed:    true,
			},
		}, nil
	}

	credit := games.SpeedrunCashoutCents(r.StakeCents, multiplier)

	details, err := json.Marshal(map[string]any{
		"betAmountCents": r.StakeCents, "multiplier": multiplier,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	applied, balance, err := s.settleRound(ctx, r, credit, entries.TypeCreditWin, false, details)
	if err != nil {
		return nil, err
	}

	return &ResolveOutput{
		RoundID:      r.ID,
		Settled:      true,
		SettledCents: applied,
		BalanceCents: balance,
		Speedrun: &SpeedrunResult{
			Multiplier: multiplier,
			CrashPoint: r.CrashPoint,
		},
	}, nil
}

func minesDetails(r *rounds.Round) []byte {
	bs, err := json.Marshal(map[string]any{
		"mineCount": r.MineCount, "gemsFound": r.GemsFound, "betAmountCents": r.StakeCents,
	})
	if err != nil {
		return nil
	}

	return bs
}

func mineCells(r *rounds.Round) []int {
	cells := make([]int, 0, r.MineCount)
	for i, mine := range r.MineGrid {
		if mine {
			cells = append(cells, i)
		}
	}

	return cells
}
