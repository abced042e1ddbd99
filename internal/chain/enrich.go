package chain

import (
	"context"
	"fmt"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/logger"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
)

// Enricher populates open interest on freshly built records. Implementations
// must return the same records in the same order and cardinality. The
// assembler always calls its enricher; "enrichment disabled" is expressed by
// wiring NopEnricher, not by branching.
type Enricher interface {
	Enhance(ctx context.Context, records []OptionRecord, contracts []session.ContractID) ([]OptionRecord, error)
}

// NopEnricher leaves open interest at its default of 0.
type NopEnricher struct{}

func (NopEnricher) Enhance(ctx context.Context, records []OptionRecord, contracts []session.ContractID) ([]OptionRecord, error) {
	logger.Debugf("open-interest enrichment disabled, keeping default values")
	return records, nil
}

// SnapshotEnricher fills open interest from a session quote snapshot of the
// same contracts.
type SnapshotEnricher struct {
	Sess session.Session
}

func (e SnapshotEnricher) Enhance(ctx context.Context, records []OptionRecord, contracts []session.ContractID) ([]OptionRecord, error) {
	if len(records) != len(contracts) {
		return records, fmt.Errorf("enrich: %d records vs %d contracts", len(records), len(contracts))
	}

	quotes, err := e.Sess.Quotes(ctx, contracts)
	if err != nil {
		return records, fmt.Errorf("enrich: snapshot failed: %w", err)
	}
	if len(quotes) != len(records) {
		return records, fmt.Errorf("enrich: snapshot returned %d rows for %d contracts", len(quotes), len(contracts))
	}

	for i := range records {
		records[i].OpenInterest = quotes[i].OpenInterest
	}
	return records, nil
}
