package session

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/logger"
)

// SyntheticSession is a deterministic offline Session. It qualifies a fixed
// universe of aliases and fabricates quotes from strike distance, so repeated
// calls always produce identical chains. Used when no API key is configured
// and as the backend in integration-style tests.
type SyntheticSession struct {
	// Universe maps qualifiable aliases to their synthetic spot price.
	// Aliases absent from the map never qualify.
	Universe map[string]float64
}

// NewSyntheticSession returns a session whose universe covers the default
// policy table, with the weekly SPX class standing in for SPX options.
func NewSyntheticSession() *SyntheticSession {
	logger.Infof("initializing synthetic market session")
	return &SyntheticSession{Universe: map[string]float64{
		"SPX":  5003,
		"SPXW": 5003,
		"RUT":  2151,
		"SPY":  498.7,
		"QQQ":  431.2,
		"IWM":  214.6,
		"VIX":  16.4,
		"NDX":  17600,
	}}
}

// OCCTicker formats an option contract identifier in OCC style:
// O:<alias><YYMMDD><C|P><strike*1000 zero-padded to 8 digits>.
func OCCTicker(alias, expiry string, right Right, strike float64) string {
	t, err := time.Parse("20060102", expiry)
	if err != nil {
		t = time.Now().UTC()
	}
	return fmt.Sprintf("O:%s%s%s%08d",
		strings.ToUpper(alias), t.Format("060102"), right, int(math.Round(strike*1000)))
}

// parseOCC splits an OCC-style identifier back into its parts. The strike
// and right sit at fixed offsets from the end; whatever precedes the date is
// the alias.
func parseOCC(id ContractID) (alias, expiry string, right Right, strike float64, ok bool) {
	s := strings.TrimPrefix(string(id), "O:")
	if len(s) < 15 {
		return "", "", "", 0, false
	}

	strikeRaw := s[len(s)-8:]
	rightRaw := s[len(s)-9 : len(s)-8]
	dateRaw := s[len(s)-15 : len(s)-9]
	alias = s[:len(s)-15]

	n, err := strconv.Atoi(strikeRaw)
	if err != nil {
		return "", "", "", 0, false
	}
	t, err := time.Parse("060102", dateRaw)
	if err != nil {
		return "", "", "", 0, false
	}

	return alias, t.Format("20060102"), Right(rightRaw), float64(n) / 1000, true
}

func (ss *SyntheticSession) Qualify(ctx context.Context, d Descriptor) (ContractID, error) {
	spot, ok := ss.Universe[d.Symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrNotQualified, d.Symbol, d.Exchange)
	}

	if d.SecType != SecOption {
		return ContractID(d.Symbol), nil
	}

	// Options only exist within a plausible band around spot, so far
	// out-of-range ladder rungs fail to qualify the way dead strikes do
	// on a real venue.
	if math.Abs(d.Strike-spot) > spot*0.25 {
		return "", fmt.Errorf("%w: %s %.8g %s", ErrNotQualified, d.Symbol, d.Strike, d.Right)
	}

	return ContractID(OCCTicker(d.Symbol, d.Expiry, d.Right, d.Strike)), nil
}

func (ss *SyntheticSession) SpotQuote(ctx context.Context, id ContractID) (float64, error) {
	spot, ok := ss.Universe[string(id)]
	if !ok {
		return 0, nil
	}
	return spot, nil
}

func (ss *SyntheticSession) Quotes(ctx context.Context, ids []ContractID) ([]Quote, error) {
	out := make([]Quote, 0, len(ids))
	for _, id := range ids {
		alias, _, right, strike, ok := parseOCC(id)
		if !ok {
			out = append(out, emptyQuote(id))
			continue
		}

		spot := ss.Universe[alias]
		moneyness := spot - strike
		if right == Put {
			moneyness = -moneyness
		}

		intrinsic := math.Max(moneyness, 0)
		extrinsic := math.Max(0.05, 2.5*math.Exp(-math.Abs(spot-strike)/math.Max(spot*0.01, 1)))
		mid := intrinsic + extrinsic

		delta := 0.5 + moneyness/(0.05*spot)
		delta = math.Max(0.01, math.Min(0.99, delta))
		if right == Put {
			delta = -delta
		}
		gamma := 0.02 * math.Exp(-math.Abs(spot-strike)/math.Max(spot*0.005, 1))

		out = append(out, Quote{
			Contract:     id,
			Bid:          round2(mid - 0.05),
			Ask:          round2(mid + 0.05),
			Last:         round2(mid),
			ModelIV:      0.18,
			RawIV:        0.2,
			Delta:        delta,
			Gamma:        gamma,
			OpenInterest: int64(500 + int(strike)%1000),
		})
	}
	return out, nil
}

// Expiries returns the next five weekdays, today included.
func (ss *SyntheticSession) Expiries(ctx context.Context, alias string) ([]string, error) {
	if _, ok := ss.Universe[alias]; !ok {
		return nil, fmt.Errorf("unknown alias %s", alias)
	}

	out := []string{}
	d := time.Now().UTC()
	for len(out) < 5 {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d.Format("20060102"))
		}
		d = d.AddDate(0, 0, 1)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
