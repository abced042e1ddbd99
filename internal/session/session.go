// Package session defines the market-data session boundary: contract
// qualification, spot quotes and batched option snapshots. The session's
// connection lifecycle (connect/reconnect) is owned by the backend behind the
// interface, not by callers.
package session

import (
	"context"
	"errors"
)

// SecType is the security type of a contract descriptor.
type SecType string

const (
	SecIndex  SecType = "IND"
	SecStock  SecType = "STK"
	SecOption SecType = "OPT"
)

// Right is an option right.
type Right string

const (
	Call Right = "C"
	Put  Right = "P"
)

// NoQuote is the sentinel the wire uses for an absent bid or ask. Record
// construction maps it to nil, never passes it through.
const NoQuote = -1.0

// Descriptor identifies a candidate contract for qualification. For
// underlyings only SecType, Symbol, Exchange and Currency are set; options
// additionally carry Expiry (YYYYMMDD), Strike, Right and an optional
// TradingClass hint.
type Descriptor struct {
	SecType      SecType
	Symbol       string
	Exchange     string
	Currency     string
	Expiry       string
	Strike       float64
	Right        Right
	TradingClass string
}

// ContractID is the opaque identifier of a qualified contract.
type ContractID string

// Quote is one snapshot row for a qualified contract. Bid and Ask use the
// NoQuote sentinel when the venue returned nothing. ModelIV/RawIV, Delta and
// Gamma are NaN when unavailable; OpenInterest is whatever the snapshot
// carried (0 when the backend does not supply it).
type Quote struct {
	Contract     ContractID
	Bid          float64
	Ask          float64
	Last         float64
	ModelIV      float64
	RawIV        float64
	Delta        float64
	Gamma        float64
	OpenInterest int64
}

var (
	// ErrNotQualified reports that one qualification attempt did not
	// resolve. Callers treat it as "try the next candidate".
	ErrNotQualified = errors.New("contract not qualified")

	// ErrSessionUnavailable reports that the session itself cannot be
	// used. This is the only session error that aborts a pipeline.
	ErrSessionUnavailable = errors.New("market session unavailable")
)

// Session supplies qualification, spot prices and batched snapshots.
// Implementations impose their own per-attempt timeouts and surface them as
// ordinary ErrNotQualified failures so fallback semantics are preserved.
type Session interface {
	// Qualify resolves a single candidate descriptor to a contract id.
	// A failed attempt returns ErrNotQualified (possibly wrapped).
	Qualify(ctx context.Context, d Descriptor) (ContractID, error)

	// SpotQuote returns a best-effort last/market price for a qualified
	// underlying. Zero with nil error means no usable price.
	SpotQuote(ctx context.Context, id ContractID) (float64, error)

	// Quotes returns one batched snapshot for the given contracts. The
	// result preserves input order; contracts with no data come back with
	// sentinel/NaN fields rather than being dropped.
	Quotes(ctx context.Context, ids []ContractID) ([]Quote, error)

	// Expiries lists available option expiries (YYYYMMDD, ascending) for
	// an underlying alias. Failures are non-fatal to callers, which fall
	// back to computing the expiry date themselves.
	Expiries(ctx context.Context, alias string) ([]string, error)
}
