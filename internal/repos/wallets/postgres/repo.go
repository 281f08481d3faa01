package wallets

import (
	"database/sql"
	"fmt"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/wallets"
)

var _ wallets.Wallets = (*walletsRepo)(nil)

type walletsRepo struct{ db *sql.DB }

func New(db *sql.DB) *walletsRepo {
	return &walletsRepo{db: db}
}

func (r *walletsRepo) Exists(tx *sql.Tx, userID uint64) error {
	var exists bool

	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}

	if !exists {
		return wallets.ErrAccountNotFound
	}

	return nil
}
