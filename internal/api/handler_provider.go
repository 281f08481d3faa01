package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/games"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/entries"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/repos/wallets"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/rounds"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/services/settlement"
)

// Settlement is the service boundary the HTTP layer talks to.
type Settlement interface {
	PlaceBet(ctx context.Context, in settlement.PlaceBetInput) (*settlement.PlaceBetOutput, error)
	Resolve(ctx context.Context, in settlement.ResolveInput) (*settlement.ResolveOutput, error)
	Balance(ctx context.Context, userID uint64) (int64, error)
	AdminCredit(ctx context.Context, userID uint64, amountCents int64, adminID string) (int64, error)
	History(ctx context.Context, userID uint64, entryType entries.EntryType, limit int) ([]entries.Entry, error)
}

// HandlerProvider wraps a Settlement service and exposes HTTP handlers.
type HandlerProvider struct {
	svc Settlement
}

// NewHandler returns a new handler provider.
func NewHandler(svc Settlement) *HandlerProvider {
	return &HandlerProvider{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, games.ErrInvalidParameter),
		errors.Is(err, settlement.ErrInvalidStake):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wallets.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, rounds.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, "round not found")
	case errors.Is(err, wallets.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, rounds.ErrAlreadySettled):
		writeError(w, http.StatusConflict, "round already settled")
	case errors.Is(err, rounds.ErrRoundNotActive):
		writeError(w, http.StatusConflict, "round not active")
	case errors.Is(err, settlement.ErrDuplicateInFlight),
		errors.Is(err, settlement.ErrDuplicateBet):
		writeError(w, http.StatusConflict, "duplicate request")
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseUserIDFromPath reads `{userId}` from chi routes like:
//
//	GET  /user/{userId}/balance
//	POST /user/{userId}/bet
func parseUserIDFromPath(r *http.Request) (uint64, error) {
	idStr := chi.URLParam(r, "userId")
	if idStr == "" {
		return 0, fmt.Errorf("missing userId")
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid userId: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid userId: must be positive")
	}

	return id, nil
}

// parseAmountCents converts a positive decimal string with up to 2 fractional
// digits into cents.
func parseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount")
	}

	scaled := d.Shift(2)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount supports up to 2 decimals")
	}

	cents := scaled.IntPart()
	if cents <= 0 {
		return 0, fmt.Errorf("amount must be > 0")
	}

	return cents, nil
}

// formatCents renders cents as a signed 2-decimal string.
func formatCents(c int64) string {
	return decimal.NewFromInt(c).Shift(-2).StringFixed(2)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}

		return fmt.Errorf("invalid JSON")
	}

	return nil
}

// --- Handlers ---

// GetBalanceHandler handles GET /user/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	bal, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"balance": formatCents(bal),
	})
}

type betRequest struct {
	Game           string `json:"game"`
	Stake          string `json:"stake"`
	IdempotencyKey string `json:"idempotencyKey"`

	MineCount   int    `json:"mineCount,omitempty"`
	WheelColor  string `json:"wheelColor,omitempty"`
	PenaltyTier int    `json:"penaltyTier,omitempty"`
}

// PlaceBetHandler handles POST /user/{userId}/bet
func (h *HandlerProvider) PlaceBetHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req betRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := games.ParseID(req.Game)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown game")
		return
	}

	stakeCents, err := parseAmountCents(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.svc.PlaceBet(r.Context(), settlement.PlaceBetInput{
		UserID:         userID,
		Game:           game,
		StakeCents:     stakeCents,
		IdempotencyKey: req.IdempotencyKey,
		MineCount:      req.MineCount,
		WheelColor:     req.WheelColor,
		PenaltyTier:    req.PenaltyTier,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roundId": out.RoundID,
		"balance": formatCents(out.BalanceCents),
		"view":    out.View,
	})
}

type resolveRequest struct {
	UserID uint64 `json:"userId"`
	Action string `json:"action"`

	Cell  int     `json:"cell,omitempty"`
	Zone  int     `json:"zone,omitempty"`
	Power float64 `json:"power,omitempty"`
}

// ResolveHandler handles POST /round/{roundId}/resolve
func (h *HandlerProvider) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")
	if roundID == "" {
		writeError(w, http.StatusBadRequest, "missing roundId in path")
		return
	}

	var req resolveRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	out, err := h.svc.Resolve(r.Context(), settlement.ResolveInput{
		RoundID: roundID,
		UserID:  req.UserID,
		Action:  settlement.ActionKind(req.Action),
		Cell:    req.Cell,
		Zone:    req.Zone,
		Power:   req.Power,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"roundId": out.RoundID,
		"settled": out.Settled,
		"balance": formatCents(out.BalanceCents),
	}
	if out.Settled {
		resp["settledAmount"] = formatCents(out.SettledCents)
	}
	if out.Mines != nil {
		resp["mines"] = out.Mines
	}
	if out.Wheel != nil {
		resp["wheel"] = out.Wheel
	}
	if out.Penalty != nil {
		resp["penalty"] = out.Penalty
	}
	if out.Speedrun != nil {
		resp["speedrun"] = out.Speedrun
	}

	writeJSON(w, http.StatusOK, resp)
}

type adminCreditRequest struct {
	Amount  string `json:"amount"`
	AdminID string `json:"adminId"`
}

// AdminCreditHandler handles POST /user/{userId}/admin-credit
func (h *HandlerProvider) AdminCreditHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req adminCreditRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.AdminID == "" {
		writeError(w, http.StatusBadRequest, "adminId required")
		return
	}

	amountCents, err := parseAmountCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.svc.AdminCredit(r.Context(), userID, amountCents, req.AdminID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"balance": formatCents(balance),
	})
}

// LedgerHandler handles GET /user/{userId}/ledger?type=&limit=
func (h *HandlerProvider) LedgerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	entryType := entries.EntryType(r.URL.Query().Get("type"))

	list, err := h.svc.History(r.Context(), userID, entryType, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type ledgerEntry struct {
		ID        int64           `json:"id"`
		Type      string          `json:"type"`
		Amount    string          `json:"amount"`
		Game      string          `json:"game,omitempty"`
		RoundID   string          `json:"roundId,omitempty"`
		Details   json.RawMessage `json:"details,omitempty"`
		CreatedAt string          `json:"createdAt"`
	}

	out := make([]ledgerEntry, 0, len(list))
	for _, e := range list {
		out = append(out, ledgerEntry{
			ID:        e.ID,
			Type:      string(e.Type),
			Amount:    formatCents(e.AmountCents),
			Game:      e.Game,
			RoundID:   e.RoundID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"entries": out,
	})
}
