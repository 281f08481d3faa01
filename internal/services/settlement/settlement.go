// Package settlement orchestrates a wager round end to end: it validates risk
// parameters, commits a server-side outcome, debits the stake through the
// ledger primitive, and settles the round exactly once when it resolves.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/games"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/rounds"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/services/ledger"
)

var (
	ErrInvalidStake      = errors.New("stake must be positive")
	ErrDuplicateInFlight = errors.New("duplicate request in flight")
	ErrDuplicateBet      = errors.New("duplicate bet")
)

// Ledger is the atomic balance primitive the orchestrator settles through.
type Ledger interface {
	ApplyDelta(ctx context.Context, d ledger.Delta) (ledger.Result, error)
	GetBalance(ctx context.Context, userID uint64) (int64, error)
	RoundIDForKey(ctx context.Context, key string) (string, error)
	History(ctx context.Context, userID uint64, entryType entries.EntryType, limit int) ([]entries.Entry, error)
}

type Service struct {
	ledger Ledger
	rounds *rounds.Store
	src    games.Source
	rdb    *redis.Client // optional; nil disables the idempotency fast path
	now    func() time.Time
}

// New wires the orchestrator. rdb may be nil.
func New(l Ledger, rdb *redis.Client) *Service {
	return &Service{
		ledger: l,
		rounds: rounds.NewStore(),
		src:    games.NewSource(),
		rdb:    rdb,
		now:    time.Now,
	}
}

// AdminCredit writes a back-office adjustment straight through the ledger
// primitive, bypassing the round lifecycle.
func (s *Service) AdminCredit(ctx context.Context, userID uint64, amountCents int64, adminID string) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: admin credit must be positive", games.ErrInvalidParameter)
	}

	details, err := json.Marshal(map[string]string{"adminId": adminID})
	if err != nil {
		return 0, fmt.Errorf("marshal details: %w", err)
	}

	res, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		UserID:      userID,
		AmountCents: amountCents,
		Type:        entries.TypeAdminCredit,
		Details:     details,
	})
	if err != nil {
		return 0, fmt.Errorf("admin credit: %w", err)
	}

	return res.NewBalanceCents, nil
}

// Balance proxies the ledger's lock-free balance read.
func (s *Service) Balance(ctx context.Context, userID uint64) (int64, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// History proxies the ledger's audit log listing.
func (s *Service) History(ctx context.Context, userID uint64, entryType entries.EntryType, limit int) ([]entries.Entry, error) {
	return s.ledger.History(ctx, userID, entryType, limit)
}

// settleRound applies the terminal ledger delta, then flips the round to
// settled. The transition is confirmed only after the ledger commit, so a
// ledger failure leaves the round active and the resolve retryable. A zero
// delta settles with no ledger entry at all.
func (s *Service) settleRound(ctx context.Context, r *rounds.Round, deltaCents int64, entryType entries.EntryType, clamp bool, details []byte) (applied, newBalance int64, err error) {
	if deltaCents == 0 {
		balance, err := s.ledger.GetBalance(ctx, r.UserID)
		if err != nil {
			return 0, 0, fmt.Errorf("get balance: %w", err)
		}

		err = r.Settle(0)
		if err != nil {
			return 0, 0, err
		}

		return 0, balance, nil
	}

	res, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		UserID:         r.UserID,
		AmountCents:    deltaCents,
		ClampToBalance: clamp,
		Type:           entryType,
		Game:           string(r.Game),
		RoundID:        r.ID,
		Details:        details,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("settle round: %w", err)
	}

	err = r.Settle(res.AppliedCents)
	if err != nil {
		return 0, 0, err
	}

	return res.AppliedCents, res.NewBalanceCents, nil
}
