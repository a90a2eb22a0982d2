package processing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/models"
)

// Request types the schema may send
const (
	RequestTypeAuthorization = "authorization"
	RequestTypePresentment   = "presentment"
)

// SchemaRequest is the payment event as the schema delivers it. Amounts are
// decimal strings in the schema's currency and get converted to ours before
// they touch the ledger.
type SchemaRequest struct {
	Type               string          `json:"type" validate:"required"`
	CardID             string          `json:"card_id" validate:"required,cardid"`
	TransactionID      string          `json:"transaction_id" validate:"required,len=9"`
	BillingAmount      decimal.Decimal `json:"billing_amount" validate:"required"`
	BillingCurrency    string          `json:"billing_currency" validate:"required,len=3"`
	SettlementAmount   decimal.Decimal `json:"settlement_amount"`
	SettlementCurrency string          `json:"settlement_currency"`
}

type accountService interface {
	GetByCardID(ctx context.Context, cardID string) (models.UserAccount, error)
	GetOrCreateRoleAccount(ctx context.Context, role string) (models.UserAccount, error)
}

type ledgerService interface {
	Authorize(ctx context.Context, code string, amount decimal.Decimal, userAccountID int64) (models.Transaction, error)
	Present(ctx context.Context, code string, billedAmount decimal.Decimal, settledAmount decimal.Decimal, userAccountID int64, toAccountID int64, extraAccountID *int64) (models.Transaction, error)
	UpdateDescriptions(ctx context.Context, transaction models.Transaction, rawDetails string) error
}

type converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error)
}

// Processor consumes schema payment requests and drives the ledger state
// machine. Every failure maps to one of the apperrors symbols, the transport
// turns them into response codes.
type Processor struct {
	accounts  accountService
	ledger    ledgerService
	converter converter
	logger    logger.Logger
}

func NewProcessor(accounts accountService, ledger ledgerService, converter converter, l logger.Logger) *Processor {
	return &Processor{
		accounts:  accounts,
		ledger:    ledger,
		converter: converter,
		logger:    l,
	}
}

// Process handles a single schema request and returns the created
// transaction.
func (p *Processor) Process(ctx context.Context, req SchemaRequest) (models.Transaction, error) {
	var transaction models.Transaction

	req, err := p.convertAmounts(ctx, req)
	if err != nil {
		// fail fast before any ledger mutation: a dead converter is an
		// operator problem, not a client one
		return transaction, fmt.Errorf("%w: currency conversion failed: %s", apperrors.ErrInvalidConfiguration, err)
	}

	account, err := p.accounts.GetByCardID(ctx, req.CardID)
	if err != nil {
		if errors.Is(err, apperrors.ErrAccountNotFound) {
			return transaction, apperrors.ErrInvalidUser
		}
		return transaction, fmt.Errorf("can't get account. Err: %w", err)
	}

	switch req.Type {
	case RequestTypeAuthorization:
		transaction, err = p.ledger.Authorize(ctx, req.TransactionID, req.BillingAmount, account.ID)
	case RequestTypePresentment:
		transaction, err = p.present(ctx, req, account)
	default:
		return transaction, fmt.Errorf("%w: unknown request type '%s'", apperrors.ErrInvalidFormat, req.Type)
	}
	if err != nil {
		return transaction, err
	}

	if err := p.ledger.UpdateDescriptions(ctx, transaction, encodeRawDetails(req)); err != nil {
		// the money already moved, a lost description is not worth a retry
		p.logger.Error("Failed to store transaction descriptions", "code", transaction.Code, "error", err)
	}

	return transaction, nil
}

func (p *Processor) present(ctx context.Context, req SchemaRequest, account models.UserAccount) (models.Transaction, error) {
	var transaction models.Transaction

	// Broken bootstrap has to surface immediately: without the settlement
	// and revenue accounts no presentment can balance
	settlement, err := p.accounts.GetOrCreateRoleAccount(ctx, models.RoleInnerSettlement)
	if err != nil {
		return transaction, fmt.Errorf("%w: no inner settlement account: %s", apperrors.ErrInvalidConfiguration, err)
	}
	revenue, err := p.accounts.GetOrCreateRoleAccount(ctx, models.RoleRevenue)
	if err != nil {
		return transaction, fmt.Errorf("%w: no revenue account: %s", apperrors.ErrInvalidConfiguration, err)
	}

	extraAccountID := revenue.Available.ID

	return p.ledger.Present(
		ctx,
		req.TransactionID,
		req.BillingAmount,
		req.SettlementAmount,
		account.ID,
		settlement.Available.ID,
		&extraAccountID,
	)
}

func (p *Processor) convertAmounts(ctx context.Context, req SchemaRequest) (SchemaRequest, error) {
	billing, err := p.converter.Convert(ctx, req.BillingAmount, req.BillingCurrency)
	if err != nil {
		return req, err
	}
	req.BillingAmount = billing

	if req.SettlementCurrency == "" {
		return req, nil
	}

	settlement, err := p.converter.Convert(ctx, req.SettlementAmount, req.SettlementCurrency)
	if err != nil {
		return req, err
	}
	req.SettlementAmount = settlement

	return req, nil
}

// encodeRawDetails keeps the original payload with the transaction in base64
func encodeRawDetails(req SchemaRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}
