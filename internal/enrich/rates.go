package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hacksignal/hacksignal/internal/model"
)

// RateSource supplies USD conversion rates for detected currencies. The
// estimator depends only on this interface; a live HTTP implementation
// lives in pkg/rates, and StaticRates serves as the offline fallback.
type RateSource interface {
	// Rate returns how many USD one unit of the currency is worth.
	Rate(ctx context.Context, currency model.Currency) (float64, error)
}

// staticRateTable holds the pinned fallback conversion rates.
var staticRateTable = map[model.Currency]float64{
	model.CurrencyUSD: 1.0,
	model.CurrencyEUR: 0.92,
	model.CurrencyETH: 2800.0,
	model.CurrencyBTC: 45000.0,
}

// StaticRates is the table-backed RateSource used when no live source is
// configured or when the live lookup fails.
type StaticRates struct{}

// Rate returns the pinned conversion rate for the currency.
func (StaticRates) Rate(_ context.Context, currency model.Currency) (float64, error) {
	r, ok := staticRateTable[currency]
	if !ok {
		return 0, eris.Errorf("enrich: currency %s not supported", currency)
	}
	return r, nil
}
