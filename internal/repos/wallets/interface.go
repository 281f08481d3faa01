package wallets

import (
	"context"
	"database/sql"
	"errors"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrAccountNotFound = errors.New("account not found")

type Wallets interface {
	Exists(tx *sql.Tx, userID uint64) error
	GetBalance(ctx context.Context, userID uint64) (int64, error)
	LockAndGetBalance(tx *sql.Tx, userID uint64) (int64, error)
	IncreaseBalance(tx *sql.Tx, userID uint64, amountCents int64) error
	DecreaseBalance(tx *sql.Tx, userID uint64, amountCents int64) error
}
