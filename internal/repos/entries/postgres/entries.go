package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries"
)

var _ entries.Entries = (*entriesRepo)(nil)

type entriesRepo struct{ db *sql.DB }

func New(db *sql.DB) *entriesRepo {
	return &entriesRepo{db: db}
}

func (r *entriesRepo) Insert(tx *sql.Tx, e entries.Entry) error {
	// NULLIF keeps the unique index on idempotency_key from tripping over
	// entries that carry no key (credits, penalties, admin adjustments).
	_, err := tx.Exec(`
		INSERT INTO wallet_ledger (user_id, entry_type, amount_cents, game, round_id, idempotency_key, details)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, e.UserID, e.Type, e.AmountCents, e.Game, e.RoundID, e.IdempotencyKey, e.Details)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return entries.ErrDuplicateEntry
			}
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}

func (r *entriesRepo) GetRoundIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var roundID string

	err := r.db.QueryRowContext(ctx, `
		SELECT round_id
		FROM wallet_ledger
		WHERE idempotency_key = $1
	`, key).Scan(&roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", entries.ErrEntryNotFound
		}

		return "", fmt.Errorf("get entry by idempotency key: %w", err)
	}

	return roundID, nil
}

func (r *entriesRepo) ListByUser(ctx context.Context, userID uint64, entryType entries.EntryType, limit int) ([]entries.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, user_id, entry_type, amount_cents, game, round_id, COALESCE(idempotency_key, ''), details, created_at
		FROM wallet_ledger
		WHERE user_id = $1
	`
	args := []any{userID}

	if entryType != "" {
		query += ` AND entry_type = $2`
		args = append(args, entryType)
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []entries.Entry

	for rows.Next() {
		var e entries.Entry

		err = rows.Scan(&e.ID, &e.UserID, &e.Type, &e.AmountCents, &e.Game,
			&e.RoundID, &e.IdempotencyKey, &e.Details, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return out, nil
}
