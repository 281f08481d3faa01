// End-to-end tests against a running instance of the settlement API,
// seeded with wallets for users 1-3 (cmd/migrator with APP_ENV=DEV).
//
// Run the stack first, then: go test ./e2e_tests/ -run TestE2E
package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

const (
	baseURL   = "http://localhost:8080"
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

func TestE2E_BetAndSettleFlow(t *testing.T) {
	waitUntilReady(t)

	// Fund user 1 so stakes and loss penalties have room.
	code, body := postJSON(t, "/user/1/admin-credit", map[string]any{
		"amount":  "100.00",
		"adminId": "e2e",
	})
	if code != http.StatusOK {
		t.Fatalf("admin credit: want 200, got %d (%s)", code, body)
	}

	start := getBalanceCents(t, 1)

	t.Run("mines_bet_and_instant_cashout", func(t *testing.T) {
		roundID := placeBet(t, 1, map[string]any{
			"game":           "mines",
			"stake":          "2.00",
			"idempotencyKey": uniqKey("mines-cashout"),
			"mineCount":      5,
		})

		// Cashing out at 1.00x yields a zero net credit; the stake stays
		// debited and no zero-amount ledger entry is written.
		res := resolve(t, roundID, map[string]any{"userId": 1, "action": "cashout"})
		if !res.Settled {
			t.Fatalf("cashout did not settle: %+v", res)
		}

		got := getBalanceCents(t, 1)
		if got != start-200 {
			t.Fatalf("balance after 0-gem cashout = %d, want %d", got, start-200)
		}
	})

	t.Run("wheel_spin_settles_with_consistent_balance", func(t *testing.T) {
		before := getBalanceCents(t, 1)

		roundID := placeBet(t, 1, map[string]any{
			"game":           "wheel",
			"stake":          "1.00",
			"idempotencyKey": uniqKey("wheel"),
			"wheelColor":     "black",
		})

		afterBet := getBalanceCents(t, 1)
		if afterBet != before-100 {
			t.Fatalf("balance after bet = %d, want %d", afterBet, before-100)
		}

		res := resolve(t, roundID, map[string]any{"userId": 1, "action": "spin"})
		if !res.Settled {
			t.Fatalf("spin did not settle: %+v", res)
		}

		// Black pays 2x the stake or nothing; either way the final balance
		// must equal post-bet balance plus the reported settled amount.
		settled, err := parseMoney(res.SettledAmount)
		if err != nil {
			t.Fatalf("settled amount %q: %v", res.SettledAmount, err)
		}
		if settled != 0 && settled != 200 {
			t.Fatalf("wheel settled amount = %d, want 0 or 200", settled)
		}

		got := getBalanceCents(t, 1)
		if got != afterBet+settled {
			t.Fatalf("balance = %d, want %d", got, afterBet+settled)
		}
	})

	t.Run("double_resolve_conflicts_without_double_pay", func(t *testing.T) {
		roundID := placeBet(t, 1, map[string]any{
			"game":           "wheel",
			"stake":          "1.00",
			"idempotencyKey": uniqKey("wheel-double"),
			"wheelColor":     "red",
		})

		res := resolve(t, roundID, map[string]any{"userId": 1, "action": "spin"})
		if !res.Settled {
			t.Fatalf("spin did not settle: %+v", res)
		}

		after := getBalanceCents(t, 1)

		code, body := postJSON(t, "/round/"+roundID+"/resolve", map[string]any{
			"userId": 1, "action": "spin",
		})
		if code != http.StatusConflict {
			t.Fatalf("second resolve: want 409, got %d (%s)", code, body)
		}

		if got := getBalanceCents(t, 1); got != after {
			t.Fatalf("balance changed on retried resolve: %d -> %d", after, got)
		}
	})

	t.Run("duplicate_bet_key_replays_single_debit", func(t *testing.T) {
		key := uniqKey("dup-bet")
		before := getBalanceCents(t, 1)

		req := map[string]any{
			"game":           "mines",
			"stake":          "1.00",
			"idempotencyKey": key,
			"mineCount":      3,
		}

		first := placeBet(t, 1, req)

		code, body := postJSON(t, "/user/1/bet", req)
		if code != http.StatusOK && code != http.StatusConflict {
			t.Fatalf("duplicate bet: want 200 or 409, got %d (%s)", code, body)
		}

		if code == http.StatusOK {
			var resp struct {
				RoundID string `json:"roundId"`
			}
			if err := json.Unmarshal([]byte(body), &resp); err != nil {
				t.Fatalf("decode replay: %v", err)
			}
			if resp.RoundID != first {
				t.Fatalf("replay round = %s, want %s", resp.RoundID, first)
			}
		}

		if got := getBalanceCents(t, 1); got != before-100 {
			t.Fatalf("balance after duplicate bet = %d, want single debit to %d", got, before-100)
		}

		// Leave no active round behind.
		resolve(t, first, map[string]any{"userId": 1, "action": "cashout"})
	})
}

func TestE2E_RejectionsAndValidation(t *testing.T) {
	waitUntilReady(t)

	t.Run("user2_insufficient_funds", func(t *testing.T) {
		before := getBalanceCents(t, 2)

		stake := fmt.Sprintf("%d.00", before/100+1)
		code, body := postJSON(t, "/user/2/bet", map[string]any{
			"game":           "speedrun",
			"stake":          stake,
			"idempotencyKey": uniqKey("u2-broke"),
		})
		if code != http.StatusConflict {
			t.Fatalf("insufficient funds: want 409, got %d (%s)", code, body)
		}

		if got := getBalanceCents(t, 2); got != before {
			t.Fatalf("balance changed on rejected bet: %d -> %d", before, got)
		}
	})

	t.Run("unknown_account", func(t *testing.T) {
		code, _ := postJSON(t, "/user/424242/bet", map[string]any{
			"game":           "wheel",
			"stake":          "1.00",
			"idempotencyKey": uniqKey("ghost"),
			"wheelColor":     "red",
		})
		if code != http.StatusNotFound {
			t.Fatalf("unknown account: want 404, got %d", code)
		}
	})

	t.Run("bad_params", func(t *testing.T) {
		cases := []map[string]any{
			{"game": "mines", "stake": "1.00", "idempotencyKey": uniqKey("m0"), "mineCount": 0},
			{"game": "mines", "stake": "1.00", "idempotencyKey": uniqKey("m25"), "mineCount": 25},
			{"game": "wheel", "stake": "1.00", "idempotencyKey": uniqKey("wg"), "wheelColor": "green"},
			{"game": "penalty", "stake": "1.00", "idempotencyKey": uniqKey("p9"), "penaltyTier": 9},
			{"game": "poker", "stake": "1.00", "idempotencyKey": uniqKey("poker")},
			{"game": "wheel", "stake": "1.234", "idempotencyKey": uniqKey("prec"), "wheelColor": "red"},
			{"game": "wheel", "stake": "-1.00", "idempotencyKey": uniqKey("neg"), "wheelColor": "red"},
		}

		for i, c := range cases {
			code, body := postJSON(t, "/user/3/bet", c)
			if code != http.StatusBadRequest {
				t.Fatalf("case %d: want 400, got %d (%s)", i, code, body)
			}
		}
	})

	t.Run("unknown_round_resolve", func(t *testing.T) {
		code, _ := postJSON(t, "/round/no-such-round/resolve", map[string]any{
			"userId": 1, "action": "spin",
		})
		if code != http.StatusNotFound {
			t.Fatalf("unknown round: want 404, got %d", code)
		}
	})
}

/* -------------------- helpers -------------------- */

type resolveResponse struct {
	RoundID       string `json:"roundId"`
	Settled       bool   `json:"settled"`
	Balance       string `json:"balance"`
	SettledAmount string `json:"settledAmount"`
}

func placeBet(t *testing.T, userID uint64, req map[string]any) string {
	t.Helper()

	code, body := postJSON(t, fmt.Sprintf("/user/%d/bet", userID), req)
	if code != http.StatusOK {
		t.Fatalf("place bet: want 200, got %d (%s)", code, body)
	}

	var resp struct {
		RoundID string `json:"roundId"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode bet response: %v", err)
	}
	if resp.RoundID == "" {
		t.Fatalf("bet response missing roundId: %s", body)
	}

	return resp.RoundID
}

func resolve(t *testing.T, roundID string, req map[string]any) resolveResponse {
	t.Helper()

	code, body := postJSON(t, "/round/"+roundID+"/resolve", req)
	if code != http.StatusOK {
		t.Fatalf("resolve: want 200, got %d (%s)", code, body)
	}

	var resp resolveResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode resolve response: %v", err)
	}

	return resp
}

func postJSON(t *testing.T, path string, payload map[string]any) (int, string) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

func getBalanceCents(t *testing.T, userID uint64) int64 {
	t.Helper()

	u := fmt.Sprintf("%s/user/%d/balance", baseURL, userID)

	resp, err := httpClient.Get(u)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: want 200, got %d (%s)", u, resp.StatusCode, string(b))
	}

	var payload struct {
		UserID  uint64 `json:"userId"`
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload.UserID != userID {
		t.Fatalf("userId mismatch: want %d, got %d", userID, payload.UserID)
	}

	cents, err := parseMoney(payload.Balance)
	if err != nil {
		t.Fatalf("invalid balance format %q: %v", payload.Balance, err)
	}

	return cents
}

// waitUntilReady polls the health endpoint until the service answers.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", baseURL, waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(baseURL + "/healthz")
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func uniqKey(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// parseMoney turns a signed "12.34" string into cents.
func parseMoney(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.Split(s, ".")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("need 2 decimals")
	}

	intPart, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}

	fracPart, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, err
	}

	cents := intPart*100 + fracPart
	if neg {
		cents = -cents
	}

	return cents, nil
}
