package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/service/balance"
	"github.com/nkiryanov/cardissuer/internal/service/processing"
)

type stubProcessor struct {
	transaction models.Transaction
	err         error
}

func (s *stubProcessor) Process(_ context.Context, _ processing.SchemaRequest) (models.Transaction, error) {
	return s.transaction, s.err
}

type stubAccounts struct {
	account models.UserAccount
	err     error
}

func (s *stubAccounts) GetByCardID(_ context.Context, _ string) (models.UserAccount, error) {
	return s.account, s.err
}

type stubBalances struct {
	amounts balance.Amounts
	list    []models.Transaction
}

func (s *stubBalances) Amounts(_ context.Context, _ int64) (balance.Amounts, error) {
	return s.amounts, nil
}

func (s *stubBalances) AmountsAt(_ context.Context, _ int64, _ time.Time) (balance.Amounts, error) {
	return s.amounts, nil
}

func (s *stubBalances) ListTransactions(_ context.Context, _ int64, _ *time.Time, _ *time.Time) ([]models.Transaction, error) {
	return s.list, nil
}

func TestWebhookHandler(t *testing.T) {
	t.Parallel()

	validBody := `{
		"type": "authorization",
		"card_id": "11112222",
		"transaction_id": "CODE00001",
		"billing_amount": "10.00",
		"billing_currency": "EUR"
	}`

	post := func(t *testing.T, processor processorService, body string) *httptest.ResponseRecorder {
		t.Helper()
		router := NewRouter(processor, &stubAccounts{}, &stubBalances{}, logger.NewNoOpLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("processed ok", func(t *testing.T) {
		processor := &stubProcessor{transaction: models.Transaction{
			Code:   "CODE00001",
			Status: models.StatusAuthorization,
		}}

		rec := post(t, processor, validBody)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Code   string `json:"code"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "CODE00001", resp.Code)
		require.Equal(t, "Authorization", resp.Status)
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{apperrors.ErrAlreadyDone, http.StatusConflict},
			{apperrors.ErrTransactionNotFound, http.StatusNotFound},
			{apperrors.ErrNotEnoughMoney, http.StatusForbidden},
			{apperrors.ErrInvalidFormat, http.StatusBadRequest},
			{apperrors.ErrInvalidUser, http.StatusNotAcceptable},
			{apperrors.ErrInvalidConfiguration, http.StatusInternalServerError},
			{errors.New("anything else"), http.StatusInternalServerError},
		}

		for _, tc := range cases {
			t.Run(tc.err.Error(), func(t *testing.T) {
				rec := post(t, &stubProcessor{err: tc.err}, validBody)

				require.Equal(t, tc.want, rec.Code, "each error symbol maps to its own response code")
			})
		}
	})

	t.Run("broken json is a bad request", func(t *testing.T) {
		rec := post(t, &stubProcessor{}, "{not json")

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short card id fails validation", func(t *testing.T) {
		body := strings.Replace(validBody, "11112222", "123", 1)

		rec := post(t, &stubProcessor{}, body)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBalanceHandlers(t *testing.T) {
	t.Parallel()

	account := models.UserAccount{ID: 7, CardID: "11112222", Role: models.RoleRealUser}

	newServer := func(accounts accountService, balances balanceService) http.Handler {
		return NewRouter(&stubProcessor{}, accounts, balances, logger.NewNoOpLogger())
	}

	t.Run("balance ok", func(t *testing.T) {
		balances := &stubBalances{amounts: balance.Amounts{
			Total:     decimal.NewFromInt(15),
			Available: decimal.RequireFromString("12.5"),
		}}
		router := newServer(&stubAccounts{account: account}, balances)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/11112222/balance", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Total     decimal.Decimal `json:"total"`
			Available decimal.Decimal `json:"available"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Total.Equal(decimal.NewFromInt(15)))
		require.True(t, resp.Available.Equal(decimal.RequireFromString("12.5")))
	})

	t.Run("balance at instant ok", func(t *testing.T) {
		router := newServer(&stubAccounts{account: account}, &stubBalances{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/11112222/balance?ts=1756500000", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad ts is a bad request", func(t *testing.T) {
		router := newServer(&stubAccounts{account: account}, &stubBalances{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/11112222/balance?ts=yesterday", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown card is not found", func(t *testing.T) {
		router := newServer(&stubAccounts{err: apperrors.ErrAccountNotFound}, &stubBalances{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/00000000/balance", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("transactions ok", func(t *testing.T) {
		balances := &stubBalances{list: []models.Transaction{
			{
				Code:      "CODE00001",
				Status:    models.StatusLoadMoney,
				CreatedAt: time.Now(),
				Transfers: []models.Transfer{{Amount: decimal.NewFromInt(15)}},
			},
		}}
		router := newServer(&stubAccounts{account: account}, balances)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/11112222/transactions", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp []struct {
			Code   string          `json:"code"`
			Status string          `json:"status"`
			Amount decimal.Decimal `json:"amount"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		require.Equal(t, "CODE00001", resp[0].Code)
		require.Equal(t, "Load money", resp[0].Status)
		require.True(t, resp[0].Amount.Equal(decimal.NewFromInt(15)))
	})
}
