package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/handlers/render"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/service/balance"
)

func handleUserBalance(accounts accountService, balances balanceService, l logger.Logger) http.Handler {
	type response struct {
		Total     decimal.Decimal `json:"total"`
		Available decimal.Decimal `json:"available"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := resolveAccount(w, r, accounts, l)
		if !ok {
			return
		}

		at, err := parseUnixParam(r, "ts")
		if err != nil {
			render.ServiceError(w, "Invalid 'ts' parameter", http.StatusBadRequest)
			return
		}

		var amounts balance.Amounts
		if at != nil {
			amounts, err = balances.AmountsAt(r.Context(), account.ID, *at)
		} else {
			amounts, err = balances.Amounts(r.Context(), account.ID)
		}
		if err != nil {
			l.Error("Failed to get balance", "error", err, "card_id", account.CardID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Total: amounts.Total, Available: amounts.Available})
	})
}

func handleListTransactions(accounts accountService, balances balanceService, l logger.Logger) http.Handler {
	type transaction struct {
		Code        string          `json:"code"`
		Status      string          `json:"status"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := resolveAccount(w, r, accounts, l)
		if !ok {
			return
		}

		begin, err := parseUnixParam(r, "begin_ts")
		if err != nil {
			render.ServiceError(w, "Invalid 'begin_ts' parameter", http.StatusBadRequest)
			return
		}
		end, err := parseUnixParam(r, "end_ts")
		if err != nil {
			render.ServiceError(w, "Invalid 'end_ts' parameter", http.StatusBadRequest)
			return
		}

		list, err := balances.ListTransactions(r.Context(), account.ID, begin, end)
		if err != nil {
			l.Error("Failed to list transactions", "error", err, "card_id", account.CardID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		transactions := make([]transaction, 0, len(list))
		for _, t := range list {
			amount := decimal.Zero
			for _, leg := range t.Transfers {
				amount = amount.Add(leg.Amount)
			}

			transactions = append(transactions, transaction{
				Code:        t.Code,
				Status:      models.StatusName(t.Status),
				Amount:      amount,
				Description: t.Description,
				CreatedAt:   t.CreatedAt,
			})
		}

		render.JSON(w, transactions)
	})
}

// resolveAccount translates the card id path segment to the account, writing
// the error response itself when it can't
func resolveAccount(w http.ResponseWriter, r *http.Request, accounts accountService, l logger.Logger) (models.UserAccount, bool) {
	cardID := r.PathValue("card_id")

	account, err := accounts.GetByCardID(r.Context(), cardID)
	switch {
	case err == nil:
		return account, true
	case errors.Is(err, apperrors.ErrAccountNotFound):
		render.ServiceError(w, "Unknown card", http.StatusNotFound)
	default:
		l.Error("Failed to resolve account", "error", err, "card_id", cardID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}

	return account, false
}

// parseUnixParam reads an optional unix timestamp query parameter
func parseUnixParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}

	t := time.Unix(seconds, 0).UTC()
	return &t, nil
}
