// Package oracle provides exchange-rate sources for converting the nominal
// instance setup cost into a settlement fee at registration time.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// FixedOracle returns a constant exchange rate. Suited to deployments that
// settle fees in the same unit the setup cost is quoted in.
type FixedOracle struct {
	Rate *big.Int
}

// CurrentExchangeRate implements interfaces.ExchangeOracle.
func (o *FixedOracle) CurrentExchangeRate(ctx context.Context) (*big.Int, error) {
	if o.Rate == nil {
		return nil, fmt.Errorf("%w: no rate configured", interfaces.ErrOracleUnavailable)
	}
	return new(big.Int).Set(o.Rate), nil
}

// rateResponse is the JSON body an HTTP rate endpoint returns.
type rateResponse struct {
	// Rate is the decimal exchange rate.
	Rate string `json:"rate"`
}

// HTTPOracle fetches the current exchange rate from an external HTTP
// endpoint. Any failure is reported as ErrOracleUnavailable so registration
// aborts cleanly instead of recording an unpriced instance.
type HTTPOracle struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPOracle creates an oracle backed by the given rate endpoint.
func NewHTTPOracle(endpoint string, log *slog.Logger) *HTTPOracle {
	return &HTTPOracle{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// CurrentExchangeRate implements interfaces.ExchangeOracle.
func (o *HTTPOracle) CurrentExchangeRate(ctx context.Context) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrOracleUnavailable, err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.log.Warn("Oracle request failed", "err", err, "endpoint", o.endpoint)
		return nil, fmt.Errorf("%w: %s", interfaces.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		o.log.Warn("Oracle returned non-200 response", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: endpoint returned %d", interfaces.ErrOracleUnavailable, resp.StatusCode)
	}

	var parsed rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid rate response: %s", interfaces.ErrOracleUnavailable, err)
	}

	rate, ok := new(big.Int).SetString(parsed.Rate, 10)
	if !ok {
		return nil, fmt.Errorf("%w: unparsable rate %q", interfaces.ErrOracleUnavailable, parsed.Rate)
	}
	return rate, nil
}
