package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
)

func TestNopEnricherLeavesRecordsUntouched(t *testing.T) {
	records := []OptionRecord{{Symbol: "SPX", Strike: 5000}, {Symbol: "SPX", Strike: 5005}}

	out, err := NopEnricher{}.Enhance(context.Background(), records, []session.ContractID{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, records, out)
	assert.Zero(t, out[0].OpenInterest)
}

func TestSnapshotEnricherFillsOpenInterest(t *testing.T) {
	sess := newFakeSession(map[string]float64{"SPY": 500})
	sess.openInterest = 42

	id1, err := sess.Qualify(context.Background(), session.Descriptor{
		SecType: session.SecOption, Symbol: "SPY", Expiry: "20260828", Strike: 500, Right: session.Call,
	})
	require.NoError(t, err)
	id2, err := sess.Qualify(context.Background(), session.Descriptor{
		SecType: session.SecOption, Symbol: "SPY", Expiry: "20260828", Strike: 500, Right: session.Put,
	})
	require.NoError(t, err)

	records := []OptionRecord{
		{Symbol: "SPY", Strike: 500, Right: session.Call},
		{Symbol: "SPY", Strike: 500, Right: session.Put},
	}

	out, err := SnapshotEnricher{Sess: sess}.Enhance(context.Background(), records, []session.ContractID{id1, id2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(42), out[0].OpenInterest)
	assert.Equal(t, int64(42), out[1].OpenInterest)
}

func TestSnapshotEnricherCardinalityMismatch(t *testing.T) {
	sess := newFakeSession(map[string]float64{"SPY": 500})

	records := []OptionRecord{{Symbol: "SPY"}}
	out, err := SnapshotEnricher{Sess: sess}.Enhance(context.Background(), records, nil)

	assert.Error(t, err)
	assert.Equal(t, records, out, "records are handed back untouched on failure")
}

func TestSnapshotEnricherSessionFailure(t *testing.T) {
	sess := newFakeSession(map[string]float64{"SPY": 500})
	sess.quotesDown = true

	records := []OptionRecord{{Symbol: "SPY"}}
	out, err := SnapshotEnricher{Sess: sess}.Enhance(context.Background(), records, []session.ContractID{"x"})

	assert.Error(t, err)
	assert.Len(t, out, 1)
	assert.Zero(t, out[0].OpenInterest)
}
