// Package policy holds the static symbol resolution tables: for each
// canonical symbol, the ordered tradable aliases to try and, per alias, the
// ordered exchanges to try. Underlyings and options carry separate tables
// because their preferences differ (options prefer the weekly variant first,
// underlyings the standard listing).
//
// The tables are data, not code: resolution logic iterates them in declared
// order and never branches on individual symbols. New symbols are added by
// editing the table (or a YAML overlay), not the resolver.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Class describes the instrument class of an underlying, which decides the
// security type used during qualification and the default strike increment.
type Class string

const (
	ClassIndex  Class = "index"
	ClassEquity Class = "equity"
)

// SmartExchange is the generic smart-routed exchange used when an alias has
// no explicit exchange preference list.
const SmartExchange = "SMART"

// Candidate is one (alias, exchange) qualification attempt. Candidates are
// produced in strict priority order; the resolver tries them linearly.
type Candidate struct {
	Alias    string
	Exchange string
}

// Policy is the resolution policy for one canonical symbol.
type Policy struct {
	Class               Class               `yaml:"class"`
	Increment           float64             `yaml:"increment"`
	UnderlyingAliases   []string            `yaml:"underlying_aliases"`
	UnderlyingExchanges map[string][]string `yaml:"underlying_exchanges"`
	OptionAliases       []string            `yaml:"option_aliases"`
	OptionExchanges     map[string][]string `yaml:"option_exchanges"`
}

// Table maps canonical symbols to their policies. Immutable after load.
type Table struct {
	policies map[string]Policy
}

// Default returns the built-in table covering the symbols this system is
// normally pointed at. Preference orders mirror what is known to actually
// qualify: SPX options usually only qualify as SPXW (the weekly class), NDX
// underlyings prefer NASDAQ while NDX options prefer smart routing.
func Default() *Table {
	return &Table{policies: map[string]Policy{
		"SPX": {
			Class:             ClassIndex,
			Increment:         5,
			UnderlyingAliases: []string{"SPX", "SPXW"},
			UnderlyingExchanges: map[string][]string{
				"SPX":  {"CBOE", "SMART"},
				"SPXW": {"CBOE", "SMART"},
			},
			OptionAliases: []string{"SPXW", "SPX"},
			OptionExchanges: map[string][]string{
				"SPXW": {"SMART", "CBOE"},
				"SPX":  {"SMART", "CBOE"},
			},
		},
		"RUT": {
			Class:             ClassIndex,
			Increment:         5,
			UnderlyingAliases: []string{"RUT"},
			UnderlyingExchanges: map[string][]string{
				"RUT": {"SMART", "CBOE", "RUSSELL"},
			},
			OptionAliases: []string{"RUT"},
			OptionExchanges: map[string][]string{
				"RUT": {"SMART", "CBOE", "RUSSELL"},
			},
		},
		"SPY": {
			Class:             ClassEquity,
			Increment:         1,
			UnderlyingAliases: []string{"SPY"},
			UnderlyingExchanges: map[string][]string{
				"SPY": {"SMART", "CBOE", "ARCA", "BATS"},
			},
			OptionAliases: []string{"SPY"},
			OptionExchanges: map[string][]string{
				"SPY": {"SMART", "CBOE", "ARCA", "BATS", "AMEX", "ISE"},
			},
		},
		"QQQ": {
			Class:             ClassEquity,
			Increment:         1,
			UnderlyingAliases: []string{"QQQ"},
			UnderlyingExchanges: map[string][]string{
				"QQQ": {"SMART", "NASDAQ", "CBOE"},
			},
			OptionAliases: []string{"QQQ"},
			OptionExchanges: map[string][]string{
				"QQQ": {"SMART", "NASDAQ", "CBOE", "ARCA"},
			},
		},
		"IWM": {
			Class:             ClassEquity,
			Increment:         1,
			UnderlyingAliases: []string{"IWM"},
			UnderlyingExchanges: map[string][]string{
				"IWM": {"SMART", "ARCA", "CBOE"},
			},
			OptionAliases: []string{"IWM"},
			OptionExchanges: map[string][]string{
				"IWM": {"SMART", "ARCA", "CBOE"},
			},
		},
		"VIX": {
			Class:             ClassIndex,
			Increment:         5,
			UnderlyingAliases: []string{"VIX"},
			UnderlyingExchanges: map[string][]string{
				"VIX": {"CBOE", "SMART"},
			},
			OptionAliases: []string{"VIX"},
			OptionExchanges: map[string][]string{
				"VIX": {"CBOE", "SMART"},
			},
		},
		"NDX": {
			Class:             ClassIndex,
			Increment:         5,
			UnderlyingAliases: []string{"NDX"},
			UnderlyingExchanges: map[string][]string{
				"NDX": {"NASDAQ", "SMART"},
			},
			OptionAliases: []string{"NDX"},
			OptionExchanges: map[string][]string{
				"NDX": {"SMART", "NASDAQ"},
			},
		},
	}}
}

// Load returns the default table with per-symbol overrides read from a YAML
// file. Symbols present in the file replace the built-in policy wholesale;
// symbols absent from the file keep the defaults.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	overrides := map[string]Policy{}
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing policy file: %w", err)
	}

	t := Default()
	for sym, p := range overrides {
		if p.Increment <= 0 {
			p.Increment = 5
		}
		if p.Class == "" {
			p.Class = ClassEquity
		}
		t.policies[strings.ToUpper(sym)] = p
	}
	return t, nil
}

// Lookup returns the policy for a canonical symbol. Unlisted symbols get a
// synthesized policy: the symbol is its own only alias, smart-routed, equity
// class, 5-point increment. Lookup never fails so that an unknown symbol
// flows through normal resolution instead of erroring out early.
func (t *Table) Lookup(symbol string) Policy {
	if p, ok := t.policies[symbol]; ok {
		return p
	}
	return Policy{
		Class:             ClassEquity,
		Increment:         5,
		UnderlyingAliases: []string{symbol},
		OptionAliases:     []string{symbol},
	}
}

// UnderlyingCandidates returns the ordered (alias, exchange) pairs to try
// when qualifying the underlying for symbol.
func (t *Table) UnderlyingCandidates(symbol string) []Candidate {
	p := t.Lookup(symbol)
	return flatten(p.UnderlyingAliases, p.UnderlyingExchanges)
}

// OptionCandidates returns the ordered (alias, exchange) pairs to try when
// qualifying an option contract for symbol.
func (t *Table) OptionCandidates(symbol string) []Candidate {
	p := t.Lookup(symbol)
	return flatten(p.OptionAliases, p.OptionExchanges)
}

// IsWeeklyAlias reports whether alias is a weekly variant of the canonical
// symbol (e.g. SPXW for SPX). Weekly variants double as the trading-class
// hint during option qualification.
func IsWeeklyAlias(symbol, alias string) bool {
	return alias != symbol && strings.HasSuffix(alias, "W")
}

// flatten expands alias and exchange preference lists into the single
// ordered candidate list the resolver iterates. An alias without an explicit
// exchange list is tried on the smart-routed exchange only.
func flatten(aliases []string, exchanges map[string][]string) []Candidate {
	out := []Candidate{}
	for _, alias := range aliases {
		exs := exchanges[alias]
		if len(exs) == 0 {
			exs = []string{SmartExchange}
		}
		for _, ex := range exs {
			out = append(out, Candidate{Alias: alias, Exchange: ex})
		}
	}
	return out
}
