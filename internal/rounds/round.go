// Package rounds owns the lifecycle of a single wager round. A round is
// created when a bet is placed, holds the committed outcome server-side while
// the player acts, and settles exactly once. Rounds are session-scoped and
// kept in memory; audit linkage lives in the wallet ledger.
package rounds

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/games"
)

type State string

const (
	StateBetting State = "betting" // created, no funds committed yet
	StateActive  State = "active"  // stake debited, outcome committed
	StateSettled State = "settled" // terminal, no further mutation
)

type Event string

const (
	EvtBetPlaced Event = "bet_placed"
	EvtSettle    Event = "settle"
)

var (
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundNotActive    = errors.New("round not active")
	ErrAlreadySettled    = errors.New("round already settled")
	ErrInvalidTransition = errors.New("invalid round transition")
)

// nextState computes the successor state for an event, rejecting everything
// the lifecycle does not permit. There is no betting -> settled shortcut.
func nextState(cur State, evt Event) (State, error) {
	switch cur {
	case StateBetting:
		if evt == EvtBetPlaced {
			return StateActive, nil
		}
	case StateActive:
		if evt == EvtSettle {
			return StateSettled, nil
		}
	case StateSettled:
		if evt == EvtSettle {
			return cur, ErrAlreadySettled
		}
	}

	return cur, fmt.Errorf("%w: %s --%s--> ?", ErrInvalidTransition, cur, evt)
}

// Round is one play of one game by one user. The orchestrator holds the
// round's lock across resolve I/O, so state checks and the settle transition
// cannot interleave with a concurrent retry.
type Round struct {
	mu sync.Mutex

	ID         string
	UserID     uint64
	Game       games.ID
	StakeCents int64

	state        State
	CreatedAt    time.Time
	StartedAt    time.Time
	SettledCents int64 // signed net delta applied at settlement

	// Game-specific committed outcome and progress. Only the fields for
	// Round.Game are populated.
	MineCount    int
	MineGrid     [games.MinesGridSize]bool
	Revealed     [games.MinesGridSize]bool
	GemsFound    int
	WheelColor   string
	WheelOutcome games.WheelOutcome
	PenaltyTier  int
	PenaltyRolls games.PenaltyOutcome
	CrashPoint   float64

	// Terminal verdict latched before the settling ledger write. When that
	// write fails the round stays active with the verdict pinned, so every
	// retry replays the same settlement instead of acting afresh.
	MineHit          bool
	ShotVerdict      *games.PenaltyResult
	LockedMultiplier float64
}

func New(userID uint64, game games.ID, stakeCents int64) *Round {
	return &Round{
		ID:         uuid.New().String(),
		UserID:     userID,
		Game:       game,
		StakeCents: stakeCents,
		state:      StateBetting,
		CreatedAt:  time.Now(),
	}
}

func (r *Round) Lock()   { r.mu.Lock() }
func (r *Round) Unlock() { r.mu.Unlock() }

// State reports the current lifecycle state. Callers that act on it must hold
// the round lock.
func (r *Round) State() State { return r.state }

// Begin moves the round into play. The caller performs the stake debit in the
// same logical step; a failed debit means Begin is never called and the round
// is discarded unregistered.
func (r *Round) Begin() error {
	next, err := nextState(r.state, EvtBetPlaced)
	if err != nil {
		return err
	}

	r.state = next
	r.StartedAt = time.Now()

	return nil
}

// Settle records the terminal result. It must be called only after the ledger
// mutation for netCents has committed; a ledger failure leaves the round
// active so the client can retry resolution safely.
func (r *Round) Settle(netCents int64) error {
	next, err := nextState(r.state, EvtSettle)
	if err != nil {
		return err
	}

	r.state = next
	r.SettledCents = netCents

	return nil
}

// TotalGems is the number of safe cells on a mines board.
func (r *Round) TotalGems() int {
	return games.MinesGridSize - r.MineCount
}
