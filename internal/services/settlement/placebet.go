package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/games"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/infra/redisutil"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/metrics"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/rounds"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/services/ledger"
)

const (
	// In-flight lock TTL: long enough to cover a slow debit, short enough
	// not to block a legitimate retry after a crashed request.
	betLockTTL = 45 * time.Second
	// Result cache TTL: covers the short-retry window after a success.
	betResultTTL = time.Minute
)

type PlaceBetInput struct {
	UserID         uint64
	Game           games.ID
	StakeCents     int64
	IdempotencyKey string

	// Game-specific risk parameters; only the fields for Game are read.
	MineCount   int
	WheelColor  string
	PenaltyTier int
}

// OutcomeView is what the presentation layer may see at bet time. Hidden
// information (mine placement, crash point) never leaves the server here.
type OutcomeView struct {
	Game     games.ID      `json:"game"`
	Mines    *MinesView    `json:"mines,omitempty"`
	Wheel    *WheelView    `json:"wheel,omitempty"`
	Penalty  *PenaltyView  `json:"penalty,omitempty"`
	Speedrun *SpeedrunView `json:"speedrun,omitempty"`
}

type MinesView struct {
	GridSize  int `json:"gridSize"`
	MineCount int `json:"mineCount"`
}

type WheelView struct {
	ChosenColor string `json:"chosenColor"`
	Slots       int    `json:"slots"`
}

type PenaltyView struct {
	Tier            int     `json:"tier"`
	GoalProbability float64 `json:"goalProbability"`
}

type SpeedrunView struct {
	StartedAtUnixMs int64 `json:"startedAtUnixMs"`
}

type PlaceBetOutput struct {
	RoundID      string      `json:"roundId"`
	BalanceCents int64       `json:"balanceCents"`
	View         OutcomeView `json:"view"`
}

// PlaceBet validates the stake and risk parameters, commits a server-side
// outcome, and debits the stake atomically with round activation. A failed
// debit leaves no trace: no round, no log entry, no balance change.
func (s *Service) PlaceBet(ctx context.Context, in PlaceBetInput) (out *PlaceBetOutput, err error) {
	start := time.Now()
	result := "fail"

	defer func() { metrics.RecordBet(result, string(in.Game), start) }()

	if in.StakeCents <= 0 {
		return nil, ErrInvalidStake
	}
	if in.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key required", games.ErrInvalidParameter)
	}

	err = validateParams(in)
	if err != nil {
		return nil, err
	}

	// Redis fast path: replay a cached result, or absorb a concurrent
	// duplicate with an in-flight lock. Purely an optimization; the ledger's
	// unique idempotency key stays the authority.
	if s.rdb != nil {
		if cached := s.cachedResult(ctx, in.IdempotencyKey); cached != nil {
			result = "success"
			return cached, nil
		}

		lockKey := redisutil.BetLockKey(in.IdempotencyKey)
		lockValue := uuid.New().String()

		ok, _ := s.rdb.SetNX(ctx, lockKey, lockValue, betLockTTL).Result()
		if !ok {
			if cached := s.cachedResult(ctx, in.IdempotencyKey); cached != nil {
				result = "success"
				return cached, nil
			}

			return nil, ErrDuplicateInFlight
		}

		defer func() {
			uerr := redisutil.Unlock(ctx, s.rdb, lockKey, lockValue)
			if uerr != nil {
				slog.Warn("release bet idempotency lock", "key", in.IdempotencyKey, "error", uerr)
			}
		}()
	}

	r, details, err := s.buildRound(in)
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		UserID:         in.UserID,
		AmountCents:    -in.StakeCents,
		Type:           entries.TypeDebitBet,
		Game:           string(in.Game),
		RoundID:        r.ID,
		IdempotencyKey: in.IdempotencyKey,
		Details:        details,
	})
	if err != nil {
		if errors.Is(err, entries.ErrDuplicateEntry) {
			return s.replayBet(ctx, in)
		}

		return nil, err
	}

	// Debit committed: activate and register in the same logical step.
	err = r.Begin()
	if err != nil {
		return nil, err
	}

	s.rounds.Put(r)

	out = &PlaceBetOutput{
		RoundID:      r.ID,
		BalanceCents: res.NewBalanceCents,
		View:         viewForRound(r),
	}

	result = "success"

	s.cacheResult(ctx, in.IdempotencyKey, out)

	slog.Info("bet placed",
		"round_id", r.ID, "user_id", in.UserID, "game", in.Game,
		"stake_cents", in.StakeCents, "balance_cents", res.NewBalanceCents)

	return out, nil
}

func validateParams(in PlaceBetInput) error {
	switch in.Game {
	case games.Mines:
		return games.MinesParams{MineCount: in.MineCount}.Validate()
	case games.Wheel:
		return games.WheelParams{Color: in.WheelColor}.Validate()
	case games.Penalty:
		return games.PenaltyParams{Tier: in.PenaltyTier}.Validate()
	case games.Speedrun:
		return nil
	default:
		return fmt.Errorf("%w: unknown game %q", games.ErrInvalidParameter, in.Game)
	}
}

// buildRound commits the outcome server-side before any money moves.
func (s *Service) buildRound(in PlaceBetInput) (*rounds.Round, []byte, error) {
	r := rounds.New(in.UserID, in.Game, in.StakeCents)

	var detail map[string]any

	switch in.Game {
	case games.Mines:
		out, err := games.GenerateMines(s.src, games.MinesParams{MineCount: in.MineCount})
		if err != nil {
			return nil, nil, err
		}

		r.MineCount = in.MineCount
		r.MineGrid = out.Mines
		detail = map[string]any{"mineCount": in.MineCount}

	case games.Wheel:
		r.WheelColor = in.WheelColor
		r.WheelOutcome = games.GenerateWheel(s.src)
		detail = map[string]any{"color": in.WheelColor}

	case games.Penalty:
		r.PenaltyTier = in.PenaltyTier
		r.PenaltyRolls = games.GeneratePenalty(s.src)
		detail = map[string]any{"tier": in.PenaltyTier}

	case games.Speedrun:
		r.CrashPoint = games.GenerateSpeedrun(s.src).CrashPoint
		detail = map[string]any{}
	}

	detail["betAmountCents"] = in.StakeCents

	details, err := json.Marshal(detail)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal details: %w", err)
	}

	return r, details, nil
}

// replayBet handles a bet whose idempotency key already paid: return the
// original round instead of debiting twice.
func (s *Service) replayBet(ctx context.Context, in PlaceBetInput) (*PlaceBetOutput, error) {
	roundID, err := s.ledger.RoundIDForKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, ErrDuplicateBet
	}

	r, err := s.rounds.Get(roundID, in.UserID)
	if err != nil {
		// The round is gone (session ended); the debit stands but there is
		// nothing to replay.
		return nil, ErrDuplicateBet
	}

	balance, err := s.ledger.GetBalance(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	slog.Info("bet replayed from ledger",
		"round_id", roundID, "user_id", in.UserID, "idempotency_key", in.IdempotencyKey)

	return &PlaceBetOutput{RoundID: r.ID, BalanceCents: balance, View: viewForRound(r)}, nil
}

func viewForRound(r *rounds.Round) OutcomeView {
	v := OutcomeView{Game: r.Game}

	switch r.Game {
	case games.Mines:
		v.Mines = &MinesView{GridSize: games.MinesGridSize, MineCount: r.MineCount}
	case games.Wheel:
		v.Wheel = &WheelView{ChosenColor: r.WheelColor, Slots: len(games.WheelSegments)}
	case games.Penalty:
		v.Penalty = &PenaltyView{Tier: r.PenaltyTier, GoalProbability: games.PenaltyGoalProbability(r.PenaltyTier)}
	case games.Speedrun:
		v.Speedrun = &SpeedrunView{StartedAtUnixMs: r.StartedAt.UnixMilli()}
	}

	return v
}

func (s *Service) cachedResult(ctx context.Context, key string) *PlaceBetOutput {
	bs, err := s.rdb.Get(ctx, redisutil.BetResultKey(key)).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}

	var out PlaceBetOutput
	if json.Unmarshal(bs, &out) != nil {
		return nil
	}

	return &out
}

func (s *Service) cacheResult(ctx context.Context, key string, out *PlaceBetOutput) {
	if s.rdb == nil {
		return
	}

	bs, err := json.Marshal(out)
	if err != nil {
		return
	}

	err = s.rdb.Set(ctx, redisutil.BetResultKey(key), bs, betResultTTL).Err()
	if err != nil {
		slog.Warn("cache bet result", "key", key, "error", err)
	}
}
