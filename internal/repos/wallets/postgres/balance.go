package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/wallets"
)

func (r *walletsRepo) GetBalance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT balance_cents
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, wallets.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (r *walletsRepo) LockAndGetBalance(tx *sql.Tx, userID uint64) (int64, error) {
	var balance int64

	err := tx.QueryRow(`
		SELECT balance_cents
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, wallets.ErrAccountNotFound
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}

func (r *walletsRepo) IncreaseBalance(tx *sql.Tx, userID uint64, amountCents int64) error {
	_, err := tx.Exec(`
		UPDATE wallets
		SET balance_cents = balance_cents + $2
		WHERE user_id = $1
	`, userID, amountCents)
	if err != nil {
		return fmt.Errorf("increase balance: %w", err)
	}

	return nil
}

func (r *walletsRepo) DecreaseBalance(tx *sql.Tx, userID uint64, amountCents int64) error {
	res, err := tx.Exec(`
		UPDATE wallets
		SET balance_cents = balance_cents - $2
		WHERE user_id = $1
		  AND balance_cents >= $2
	`, userID, amountCents)
	if err != nil {
		return fmt.Errorf("decrease balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wallets.ErrInsufficientFunds
	}

	return nil
}
