// Package resolve performs fallback contract qualification: each canonical
// symbol maps to an ordered list of (alias, exchange) candidates, and the
// resolver walks that list against the market session until one attempt
// returns a contract id. Individual failures never abort the search;
// exhausting the list is a NotFound, not an error condition for the batch.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/logger"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/policy"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
)

// ErrNoQualification reports that every alias/exchange combination for a
// symbol was tried and none qualified. Non-fatal to callers: the symbol
// contributes nothing and the batch moves on.
var ErrNoQualification = errors.New("no alias/exchange combination qualified")

// UnderlyingQualification is the outcome of resolving an underlying.
// Consumed immediately by the chain assembler, never persisted.
type UnderlyingQualification struct {
	Symbol       string
	Alias        string
	Exchange     string
	TradingClass string
	Contract     session.ContractID
}

// OptionQualification is the outcome of resolving one option contract.
type OptionQualification struct {
	Symbol       string
	Expiry       string
	Strike       float64
	Right        session.Right
	Alias        string
	Exchange     string
	TradingClass string
	Contract     session.ContractID
}

// Resolver qualifies contracts against a session using the policy tables.
type Resolver struct {
	sess  session.Session
	table *policy.Table
}

func New(sess session.Session, table *policy.Table) *Resolver {
	return &Resolver{sess: sess, table: table}
}

// QualifyUnderlying resolves a canonical symbol to a tradable underlying
// contract. Candidates are tried strictly in table order and the first
// non-empty contract id wins. A candidate failure is logged at debug and
// skipped; only ErrSessionUnavailable passes through. Exhaustion returns
// ErrNoQualification.
func (r *Resolver) QualifyUnderlying(ctx context.Context, symbol string) (*UnderlyingQualification, error) {
	pol := r.table.Lookup(symbol)

	secType := session.SecStock
	if pol.Class == policy.ClassIndex {
		secType = session.SecIndex
	}

	for _, cand := range r.table.UnderlyingCandidates(symbol) {
		d := session.Descriptor{
			SecType:  secType,
			Symbol:   cand.Alias,
			Exchange: cand.Exchange,
			Currency: "USD",
		}

		id, err := r.sess.Qualify(ctx, d)
		if err != nil {
			if errors.Is(err, session.ErrSessionUnavailable) {
				return nil, err
			}
			logger.Debugf("failed to qualify %s on %s: %v", cand.Alias, cand.Exchange, err)
			continue
		}
		if id == "" {
			logger.Debugf("empty contract id for %s on %s", cand.Alias, cand.Exchange)
			continue
		}

		logger.Infof("qualified %s as %s on %s", symbol, cand.Alias, cand.Exchange)

		tradingClass := ""
		if policy.IsWeeklyAlias(symbol, cand.Alias) {
			tradingClass = cand.Alias
		}

		return &UnderlyingQualification{
			Symbol:       symbol,
			Alias:        cand.Alias,
			Exchange:     cand.Exchange,
			TradingClass: tradingClass,
			Contract:     id,
		}, nil
	}

	logger.Errorf("failed to qualify %s with any symbol/exchange combination", symbol)
	return nil, fmt.Errorf("%w: %s", ErrNoQualification, symbol)
}

// QualifyOption resolves one strike/right of a symbol's chain using the
// option tables, which differ from the underlying's (weekly variant first).
// A supplied trading-class hint is attached to every candidate; without a
// hint, one is inferred when the alias is a known weekly variant. Same
// short-circuit and non-fatal-exhaustion semantics as QualifyUnderlying.
func (r *Resolver) QualifyOption(ctx context.Context, symbol, expiry string, strike float64, right session.Right, tradingClass string) (*OptionQualification, error) {
	for _, cand := range r.table.OptionCandidates(symbol) {
		class := tradingClass
		if class == "" && policy.IsWeeklyAlias(symbol, cand.Alias) {
			class = cand.Alias
		}

		d := session.Descriptor{
			SecType:      session.SecOption,
			Symbol:       cand.Alias,
			Exchange:     cand.Exchange,
			Currency:     "USD",
			Expiry:       expiry,
			Strike:       strike,
			Right:        right,
			TradingClass: class,
		}

		id, err := r.sess.Qualify(ctx, d)
		if err != nil {
			if errors.Is(err, session.ErrSessionUnavailable) {
				return nil, err
			}
			logger.Debugf("failed to qualify %s %.8g %s on %s: %v",
				cand.Alias, strike, right, cand.Exchange, err)
			continue
		}
		if id == "" {
			continue
		}

		if cand.Alias != symbol {
			logger.Infof("qualified %s option as %s %.8g %s on %s",
				symbol, cand.Alias, strike, right, cand.Exchange)
		}

		return &OptionQualification{
			Symbol:       symbol,
			Expiry:       expiry,
			Strike:       strike,
			Right:        right,
			Alias:        cand.Alias,
			Exchange:     cand.Exchange,
			TradingClass: class,
			Contract:     id,
		}, nil
	}

	logger.Warnf("failed to qualify %s %.8g %s option with any symbol/exchange combination",
		symbol, strike, right)
	return nil, fmt.Errorf("%w: %s %.8g %s", ErrNoQualification, symbol, strike, right)
}
