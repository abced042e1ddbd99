package chain

import (
	"math"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/resolve"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
)

// OptionRecord is one row of an assembled chain. Nullable market-data fields
// are pointers so "no quote" serializes as null instead of a sentinel.
// OpenInterest starts at 0 and is only ever overwritten by enrichment.
type OptionRecord struct {
	Symbol            string             `json:"symbol"`
	UnderlyingSymbol  string             `json:"underlying_symbol"` // alias actually qualified, e.g. SPXW
	Contract          session.ContractID `json:"contract_id"`
	Strike            float64            `json:"strike"`
	Right             session.Right      `json:"right"`
	Expiry            string             `json:"expiry"`
	Bid               *float64           `json:"bid"`
	Ask               *float64           `json:"ask"`
	ImpliedVolatility *float64           `json:"implied_volatility"`
	OpenInterest      int64              `json:"open_interest"`
	Gamma             *float64           `json:"gamma"`
	Delta             *float64           `json:"delta"`
	SpotAtFetch       float64            `json:"underlying_price_at_fetch"`
	SpotEstimated     bool               `json:"spot_estimated"`
}

// newRecord builds an OptionRecord from a qualification and its snapshot
// quote. Sentinel bid/ask map to nil; implied volatility prefers the
// model-derived figure over the raw one when both are numeric; greeks are
// copied only when numeric.
func newRecord(q *resolve.OptionQualification, quote session.Quote, spot float64, spotEstimated bool) OptionRecord {
	iv := fromNaN(quote.ModelIV)
	if iv == nil {
		iv = fromNaN(quote.RawIV)
	}

	return OptionRecord{
		Symbol:            q.Symbol,
		UnderlyingSymbol:  q.Alias,
		Contract:          quote.Contract,
		Strike:            q.Strike,
		Right:             q.Right,
		Expiry:            q.Expiry,
		Bid:               fromSentinel(quote.Bid),
		Ask:               fromSentinel(quote.Ask),
		ImpliedVolatility: iv,
		OpenInterest:      0, // populated by enrichment only
		Gamma:             fromNaN(quote.Gamma),
		Delta:             fromNaN(quote.Delta),
		SpotAtFetch:       spot,
		SpotEstimated:     spotEstimated,
	}
}

func fromSentinel(v float64) *float64 {
	if v == session.NoQuote || math.IsNaN(v) {
		return nil
	}
	return &v
}

func fromNaN(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
