// Package entries defines the append-only wallet ledger log. Entries explain
// balance mutations for reconciliation and dispute resolution; the wallet
// balance itself stays the source of truth.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type EntryType string

const (
	TypeDebitBet         EntryType = "debit_bet"
	TypeCreditWin        EntryType = "credit_win"
	TypeDebitLossPenalty EntryType = "debit_loss_penalty"
	TypeAdminCredit      EntryType = "admin_credit"
)

var ErrDuplicateEntry = errors.New("duplicate ledger entry")
var ErrEntryNotFound = errors.New("ledger entry not found")

// Entry is one immutable audit record. AmountCents is always positive; the
// type carries the direction. IdempotencyKey is set only on debit_bet entries
// and is unique, which is what makes a bet attempt replay-safe.
type Entry struct {
	ID             int64
	UserID         uint64
	Type           EntryType
	AmountCents    int64
	Game           string
	RoundID        string
	IdempotencyKey string
	Details        json.RawMessage
	CreatedAt      time.Time
}

type Entries interface {
	Insert(tx *sql.Tx, e Entry) error
	GetRoundIDByIdempotencyKey(ctx context.Context, key string) (string, error)
	ListByUser(ctx context.Context, userID uint64, entryType EntryType, limit int) ([]Entry, error)
}
