// Package chain orchestrates the ATM chain pipeline: qualify the underlying,
// fetch spot, build the strike ladder, bulk-qualify the ladder, fetch one
// batched quote snapshot per symbol and construct records, optionally
// enriched with open interest.
//
// Failure policy: everything below symbol granularity is absorbed locally.
// A symbol whose underlying never qualifies contributes zero records; a
// strike that fails to qualify is omitted; a missing spot price degrades to
// a flagged placeholder. Only an unusable session aborts the whole batch.
package chain

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/logger"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/policy"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/resolve"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/strike"
)

// PlaceholderSpot is substituted when no usable spot price comes back for a
// qualified underlying. Records built from it carry SpotEstimated=true so
// the degradation stays visible downstream.
const PlaceholderSpot = 5000.0

// Assembler builds ATM chain snapshots for batches of symbols.
type Assembler struct {
	sess     session.Session
	resolver *resolve.Resolver
	table    *policy.Table
	enricher Enricher
	sides    int
	now      func() time.Time
}

// NewAssembler wires an assembler over a session and policy table. A nil
// enricher defaults to NopEnricher.
func NewAssembler(sess session.Session, table *policy.Table, enricher Enricher) *Assembler {
	if enricher == nil {
		enricher = NopEnricher{}
	}
	return &Assembler{
		sess:     sess,
		resolver: resolve.New(sess, table),
		table:    table,
		enricher: enricher,
		sides:    strike.DefaultSides,
		now:      time.Now,
	}
}

// BuildChain assembles records for every symbol, in order, independently:
// one bad symbol never aborts the batch, and an empty result is a valid
// outcome. Only session-level unavailability is returned as an error.
// Record order is symbol order, then strike ascending, then call before put.
func (a *Assembler) BuildChain(ctx context.Context, symbols []string, daysToExpiry int) ([]OptionRecord, error) {
	records := []OptionRecord{}
	if len(symbols) == 0 {
		return records, nil
	}

	runID := uuid.NewString()[:8]
	logger.Infof("[%s] building chain for %d symbols, dte=%d", runID, len(symbols), daysToExpiry)

	for _, symbol := range symbols {
		symRecords, err := a.buildSymbol(ctx, runID, symbol, daysToExpiry)
		if err != nil {
			// session unusable is the only hard failure
			return nil, err
		}
		records = append(records, symRecords...)
	}

	logger.Infof("[%s] assembled %d records", runID, len(records))
	return records, nil
}

func (a *Assembler) buildSymbol(ctx context.Context, runID, symbol string, daysToExpiry int) ([]OptionRecord, error) {
	uq, err := a.resolver.QualifyUnderlying(ctx, symbol)
	if err != nil {
		if errors.Is(err, session.ErrSessionUnavailable) {
			return nil, err
		}
		logger.Errorf("[%s] could not qualify underlying for %s, skipping", runID, symbol)
		return nil, nil
	}

	spot, spotEstimated, err := a.spotPrice(ctx, uq)
	if err != nil {
		return nil, err
	}

	pol := a.table.Lookup(symbol)
	atm, err := strike.SelectATM(spot, pol.Increment)
	if err != nil {
		// unreachable with the placeholder policy, but degrade anyway
		logger.Errorf("[%s] no usable ATM anchor for %s: %v", runID, symbol, err)
		return nil, nil
	}
	ladder := strike.BuildLadder(atm, pol.Increment, a.sides)

	expiry := a.resolveExpiry(ctx, uq.Alias, daysToExpiry)

	quals := make([]*resolve.OptionQualification, 0, 2*len(ladder))
	for _, k := range ladder {
		for _, right := range []session.Right{session.Call, session.Put} {
			oq, err := a.resolver.QualifyOption(ctx, symbol, expiry, k, right, uq.TradingClass)
			if err != nil {
				if errors.Is(err, session.ErrSessionUnavailable) {
					return nil, err
				}
				continue // unqualified strikes are simply omitted
			}
			quals = append(quals, oq)
		}
	}

	if len(quals) == 0 {
		logger.Warnf("[%s] no qualified option contracts for %s expiry %s", runID, symbol, expiry)
		return nil, nil
	}

	ids := make([]session.ContractID, len(quals))
	for i, q := range quals {
		ids[i] = q.Contract
	}

	// One batched request per symbol bounds the request volume.
	quotes, err := a.sess.Quotes(ctx, ids)
	if err != nil {
		if errors.Is(err, session.ErrSessionUnavailable) {
			return nil, err
		}
		logger.Errorf("[%s] quote snapshot failed for %s: %v", runID, symbol, err)
		return nil, nil
	}
	if len(quotes) != len(quals) {
		logger.Errorf("[%s] snapshot returned %d rows for %d contracts of %s",
			runID, len(quotes), len(quals), symbol)
		return nil, nil
	}

	out := make([]OptionRecord, 0, len(quals))
	for i, q := range quals {
		out = append(out, newRecord(q, quotes[i], spot, spotEstimated))
	}

	enriched, err := a.enricher.Enhance(ctx, out, ids)
	if err != nil {
		logger.Errorf("[%s] open-interest enrichment failed for %s: %v", runID, symbol, err)
		return out, nil // keep 0-valued open interest
	}
	if len(enriched) != len(out) {
		logger.Errorf("[%s] enricher changed cardinality for %s (%d -> %d), keeping originals",
			runID, symbol, len(out), len(enriched))
		return out, nil
	}

	return enriched, nil
}

// spotPrice fetches the underlying's spot, substituting the documented
// placeholder when the quote is missing, non-positive or NaN. The bool
// result flags the substitution.
func (a *Assembler) spotPrice(ctx context.Context, uq *resolve.UnderlyingQualification) (float64, bool, error) {
	price, err := a.sess.SpotQuote(ctx, uq.Contract)
	if err != nil {
		if errors.Is(err, session.ErrSessionUnavailable) {
			return 0, false, err
		}
		logger.Warnf("spot quote failed for %s (%s): %v, using placeholder %.0f",
			uq.Symbol, uq.Alias, err, PlaceholderSpot)
		return PlaceholderSpot, true, nil
	}

	if math.IsNaN(price) || price <= 0 {
		logger.Warnf("no valid spot price for %s (%s), using placeholder %.0f",
			uq.Symbol, uq.Alias, PlaceholderSpot)
		return PlaceholderSpot, true, nil
	}

	return price, false, nil
}

// resolveExpiry turns daysToExpiry into an 8-digit expiry date. The target
// is now+daysToExpiry; when the session can list expiries for the resolved
// alias the target snaps to the first listed expiry on or after it (falling
// back to the last listed one past end of calendar). Listing failures keep
// the computed target.
func (a *Assembler) resolveExpiry(ctx context.Context, alias string, daysToExpiry int) string {
	target := a.now().UTC().AddDate(0, 0, daysToExpiry).Format("20060102")

	listed, err := a.sess.Expiries(ctx, alias)
	if err != nil || len(listed) == 0 {
		logger.Debugf("expiry listing unavailable for %s, using computed %s", alias, target)
		return target
	}

	// listed is ascending YYYYMMDD, so string comparison is date comparison
	for _, e := range listed {
		if e >= target {
			if e != target {
				logger.Debugf("snapped expiry %s to listed %s for %s", target, e, alias)
			}
			return e
		}
	}
	return listed[len(listed)-1]
}
