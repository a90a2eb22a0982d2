package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/logger"
)

const requestTimeout = 5 * time.Second

// Client talks to the payment schema's settlement API. The schema side is
// someone else's system: any non-success answer is reported as an error and
// the caller decides how to retry.
type Client struct {
	SchemaAddr string

	client *http.Client
	logger logger.Logger
}

func NewClient(addr string, l logger.Logger) *Client {
	return &Client{
		SchemaAddr: addr,
		client:     &http.Client{},
		logger:     l.With("component", "schema-client"),
	}
}

// TransferDebt asks the schema to accept the accumulated settlement debt.
func (c *Client) TransferDebt(ctx context.Context, amount decimal.Decimal) error {
	type request struct {
		Amount decimal.Decimal `json:"amount"`
	}

	body, err := json.Marshal(request{Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SchemaAddr+"/api/settlement/debt", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		c.logger.Debug("Schema accepted debt", "amount", amount)
		return nil
	default:
		c.logger.Warn("Schema refused debt", "status_code", resp.StatusCode, "amount", amount)
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}
