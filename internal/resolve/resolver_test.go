package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/policy"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
)

// scriptedSession fails the first failures qualification attempts and
// succeeds afterwards, recording every descriptor it saw.
type scriptedSession struct {
	failures int
	attempts []session.Descriptor
	hardFail bool
}

func (s *scriptedSession) Qualify(ctx context.Context, d session.Descriptor) (session.ContractID, error) {
	if s.hardFail {
		return "", session.ErrSessionUnavailable
	}
	s.attempts = append(s.attempts, d)
	if len(s.attempts) <= s.failures {
		return "", session.ErrNotQualified
	}
	return session.ContractID("CON-" + d.Symbol + "-" + d.Exchange), nil
}

func (s *scriptedSession) SpotQuote(ctx context.Context, id session.ContractID) (float64, error) {
	return 0, nil
}

func (s *scriptedSession) Quotes(ctx context.Context, ids []session.ContractID) ([]session.Quote, error) {
	return nil, nil
}

func (s *scriptedSession) Expiries(ctx context.Context, alias string) ([]string, error) {
	return nil, nil
}

func TestQualifyUnderlyingFirstCandidateWins(t *testing.T) {
	sess := &scriptedSession{}
	r := New(sess, policy.Default())

	uq, err := r.QualifyUnderlying(context.Background(), "SPX")
	require.NoError(t, err)

	require.Len(t, sess.attempts, 1)
	assert.Equal(t, "SPX", uq.Alias)
	assert.Equal(t, "CBOE", uq.Exchange)
	assert.Equal(t, session.SecIndex, sess.attempts[0].SecType)
	assert.Equal(t, "USD", sess.attempts[0].Currency)
	assert.Empty(t, uq.TradingClass)
}

func TestQualifyUnderlyingFallsBackInDeclaredOrder(t *testing.T) {
	// SPX table: SPX/CBOE, SPX/SMART, SPXW/CBOE, SPXW/SMART. Fail the
	// first three, succeed on the fourth: exactly 4 attempts.
	sess := &scriptedSession{failures: 3}
	r := New(sess, policy.Default())

	uq, err := r.QualifyUnderlying(context.Background(), "SPX")
	require.NoError(t, err)

	require.Len(t, sess.attempts, 4)
	assert.Equal(t, "SPX", sess.attempts[0].Symbol)
	assert.Equal(t, "CBOE", sess.attempts[0].Exchange)
	assert.Equal(t, "SPX", sess.attempts[1].Symbol)
	assert.Equal(t, "SMART", sess.attempts[1].Exchange)
	assert.Equal(t, "SPXW", sess.attempts[2].Symbol)
	assert.Equal(t, "CBOE", sess.attempts[2].Exchange)

	assert.Equal(t, "SPXW", uq.Alias)
	assert.Equal(t, "SMART", uq.Exchange)
	// resolving through the weekly variant surfaces the trading class hint
	assert.Equal(t, "SPXW", uq.TradingClass)
}

func TestQualifyUnderlyingExhaustionIsNotFound(t *testing.T) {
	sess := &scriptedSession{failures: 1000}
	table := policy.Default()
	r := New(sess, table)

	_, err := r.QualifyUnderlying(context.Background(), "SPX")
	assert.ErrorIs(t, err, ErrNoQualification)
	assert.Len(t, sess.attempts, len(table.UnderlyingCandidates("SPX")))
}

func TestQualifyUnderlyingEquityClass(t *testing.T) {
	sess := &scriptedSession{}
	r := New(sess, policy.Default())

	_, err := r.QualifyUnderlying(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, session.SecStock, sess.attempts[0].SecType)
}

func TestQualifyUnderlyingSessionFailurePropagates(t *testing.T) {
	sess := &scriptedSession{hardFail: true}
	r := New(sess, policy.Default())

	_, err := r.QualifyUnderlying(context.Background(), "SPX")
	assert.ErrorIs(t, err, session.ErrSessionUnavailable)
}

func TestQualifyOptionPrefersWeeklyAndInfersClass(t *testing.T) {
	sess := &scriptedSession{}
	r := New(sess, policy.Default())

	oq, err := r.QualifyOption(context.Background(), "SPX", "20260824", 5005, session.Call, "")
	require.NoError(t, err)

	require.Len(t, sess.attempts, 1)
	d := sess.attempts[0]
	assert.Equal(t, session.SecOption, d.SecType)
	assert.Equal(t, "SPXW", d.Symbol)
	assert.Equal(t, "SMART", d.Exchange)
	assert.Equal(t, "SPXW", d.TradingClass, "weekly alias must infer its trading class")
	assert.Equal(t, "20260824", d.Expiry)
	assert.Equal(t, 5005.0, d.Strike)

	assert.Equal(t, "SPXW", oq.Alias)
	assert.Equal(t, session.Call, oq.Right)
}

func TestQualifyOptionSuppliedClassWins(t *testing.T) {
	sess := &scriptedSession{}
	r := New(sess, policy.Default())

	_, err := r.QualifyOption(context.Background(), "SPX", "20260824", 5005, session.Put, "SPXQ")
	require.NoError(t, err)
	assert.Equal(t, "SPXQ", sess.attempts[0].TradingClass)
}

func TestQualifyOptionExhaustion(t *testing.T) {
	sess := &scriptedSession{failures: 1000}
	table := policy.Default()
	r := New(sess, table)

	_, err := r.QualifyOption(context.Background(), "SPX", "20260824", 5005, session.Call, "")
	assert.ErrorIs(t, err, ErrNoQualification)
	assert.Len(t, sess.attempts, len(table.OptionCandidates("SPX")))
}

func TestQualifyOptionUnknownSymbolUsesSmartDefault(t *testing.T) {
	sess := &scriptedSession{}
	r := New(sess, policy.Default())

	oq, err := r.QualifyOption(context.Background(), "XYZ", "20260824", 100, session.Call, "")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", oq.Alias)
	assert.Equal(t, policy.SmartExchange, oq.Exchange)
}
