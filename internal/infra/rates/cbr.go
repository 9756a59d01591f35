// Package rates fetches the USD reference rate from the Central Bank of
// Russia daily JSON feed.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/config"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ReferenceRateSource = (*CBRSource)(nil)

// CBRSource reads the cbr-xml-daily mirror of the official CBR rates.
type CBRSource struct {
	url     string
	retries int
	client  *http.Client
	log     *zerolog.Logger
}

func NewCBRSource(cfg config.RatesConfig, logger *zerolog.Logger) *CBRSource {
	l := logger.With().Str("component", "CBRSource").Logger()
	return &CBRSource{
		url:     cfg.SourceURL,
		retries: cfg.Retries,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     &l,
	}
}

type cbrDaily struct {
	Valute map[string]struct {
		Value float64 `json:"Value"`
	} `json:"Valute"`
}

// FetchUsdRub returns the current USD/RUB rate. Transient failures are
// retried with a short backoff before the error is surfaced.
func (s *CBRSource) FetchUsdRub(ctx context.Context) (decimal.Decimal, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
		}
		rate, err := s.fetchOnce(ctx)
		if err == nil {
			return rate, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("rate fetch failed")
	}
	return decimal.Zero, lastErr
}

func (s *CBRSource) fetchOnce(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var daily cbrDaily
	if err := json.NewDecoder(resp.Body).Decode(&daily); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate payload: %w", err)
	}
	usd, ok := daily.Valute["USD"]
	if !ok || usd.Value <= 0 {
		return decimal.Zero, fmt.Errorf("rate payload has no usable USD rate")
	}
	return decimal.NewFromFloat(usd.Value), nil
}
