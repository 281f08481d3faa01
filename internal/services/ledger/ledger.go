// Package ledger implements the single atomic balance primitive every game
// settles through: read-check-mutate-log in one database transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/infra/pgutils"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries"
	pgentries "github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries/postgres"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/wallets"
	pgwallets "github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/wallets/postgres"
)

var ErrZeroDelta = errors.New("zero-amount ledger delta")

type Service struct {
	db      *sql.DB
	wallets wallets.Wallets
	entries entries.Entries
}

func New(dbx *sql.DB) *Service {
	return &Service{
		db:      dbx,
		wallets: pgwallets.New(dbx),
		entries: pgentries.New(dbx),
	}
}

// Delta is one requested balance mutation plus its audit entry. AmountCents
// is signed: positive credits, negative debits. ClampToBalance marks a loss
// penalty that may take at most what the wallet holds, so the balance never
// goes negative.
type Delta struct {
	UserID         uint64
	AmountCents    int64
	ClampToBalance bool

	Type           entries.EntryType
	Game           string
	RoundID        string
	IdempotencyKey string
	Details        []byte
}

// Result reports what actually happened. AppliedCents can differ from the
// requested amount only for clamped debits.
type Result struct {
	NewBalanceCents int64
	AppliedCents    int64
}

// ApplyDelta runs the full primitive in a single DB transaction:
//
// 1) Ensure the wallet exists.
// 2) Lock the wallet row (FOR UPDATE); concurrent deltas for one user serialize here.
// 3) Validate and apply the balance change.
// 4) Append exactly one ledger entry (unique idempotency key -> ErrDuplicateEntry).
//
// Nothing is written on failure: no partial balance change, no orphan entry.
func (s *Service) ApplyDelta(ctx context.Context, d Delta) (Result, error) {
	if d.AmountCents == 0 {
		return Result{}, ErrZeroDelta
	}

	var res Result

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.wallets.Exists(tx, d.UserID)
		if err != nil {
			return fmt.Errorf("check wallet exists: %w", err)
		}

		balance, err := s.wallets.LockAndGetBalance(tx, d.UserID)
		if err != nil {
			return fmt.Errorf("lock and get balance: %w", err)
		}

		applied := d.AmountCents

		switch {
		case applied > 0:
			err = s.wallets.IncreaseBalance(tx, d.UserID, applied)
			if err != nil {
				return fmt.Errorf("increase balance: %w", err)
			}

		default:
			debit := -applied

			if debit > balance {
				if !d.ClampToBalance {
					// pre-check against the locked balance
					return fmt.Errorf("pre-check decrease: %w", wallets.ErrInsufficientFunds)
				}

				debit = balance
				applied = -balance
			}

			if debit == 0 {
				// Clamped to nothing: the wallet is already empty. No
				// mutation, no zero-amount entry.
				res = Result{NewBalanceCents: balance, AppliedCents: 0}
				return nil
			}

			err = s.wallets.DecreaseBalance(tx, d.UserID, debit)
			if err != nil {
				return fmt.Errorf("decrease balance: %w", err)
			}
		}

		entry := entries.Entry{
			UserID:         d.UserID,
			Type:           d.Type,
			AmountCents:    abs(applied),
			Game:           d.Game,
			RoundID:        d.RoundID,
			IdempotencyKey: d.IdempotencyKey,
			Details:        d.Details,
		}

		err = s.entries.Insert(tx, entry)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}

		res = Result{NewBalanceCents: balance + applied, AppliedCents: applied}

		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply delta: %w", err)
	}

	return res, nil
}

// GetBalance returns the user's balance without locks.
func (s *Service) GetBalance(ctx context.Context, userID uint64) (int64, error) {
	balance, err := s.wallets.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// RoundIDForKey looks up which round a bet idempotency key already paid for.
func (s *Service) RoundIDForKey(ctx context.Context, key string) (string, error) {
	roundID, err := s.entries.GetRoundIDByIdempotencyKey(ctx, key)
	if err != nil {
		return "", fmt.Errorf("round id for key: %w", err)
	}

	return roundID, nil
}

// History lists a user's ledger entries, newest first, optionally filtered by
// entry type.
func (s *Service) History(ctx context.Context, userID uint64, entryType entries.EntryType, limit int) ([]entries.Entry, error) {
	list, err := s.entries.ListByUser(ctx, userID, entryType, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return list, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
