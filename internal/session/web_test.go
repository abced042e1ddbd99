package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestSession(srv *httptest.Server) *WebSession {
	return &WebSession{
		APIKey:  "test",
		Client:  srv.Client(),
		BaseURL: srv.URL,
	}
}

func TestWebQualifyUnderlying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ticker"); got != "SPX" {
			t.Errorf("expected ticker=SPX, got %q", got)
		}
		if got := r.URL.Query().Get("exchange"); got != "CBOE" {
			t.Errorf("expected exchange=CBOE, got %q", got)
		}
		w.Write([]byte(`{"results":[{"ticker":"SPX"}]}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	id, err := ws.Qualify(context.Background(), Descriptor{
		SecType: SecIndex, Symbol: "SPX", Exchange: "CBOE", Currency: "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "SPX" {
		t.Fatalf("expected contract id SPX, got %s", id)
	}
}

func TestWebQualifyUnderlyingEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	_, err := ws.Qualify(context.Background(), Descriptor{SecType: SecIndex, Symbol: "NOPE", Exchange: "SMART"})
	if !errors.Is(err, ErrNotQualified) {
		t.Fatalf("expected ErrNotQualified, got %v", err)
	}
}

func TestWebQualifyAuthFailureIsSessionUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	_, err := ws.Qualify(context.Background(), Descriptor{SecType: SecIndex, Symbol: "SPX", Exchange: "CBOE"})
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
}

func TestWebQualifyOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("underlying_ticker"); got != "SPXW" {
			t.Errorf("expected underlying_ticker=SPXW, got %q", got)
		}
		if got := q.Get("expiration_date"); got != "2026-08-24" {
			t.Errorf("expected expiration_date=2026-08-24, got %q", got)
		}
		if got := q.Get("contract_type"); got != "call" {
			t.Errorf("expected contract_type=call, got %q", got)
		}
		if got := q.Get("trading_class"); got != "SPXW" {
			t.Errorf("expected trading_class=SPXW, got %q", got)
		}
		w.Write([]byte(`{"results":[{"ticker":"O:SPXW260824C05005000","strike_price":5005,"expiration_date":"2026-08-24","contract_type":"call"}]}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	id, err := ws.Qualify(context.Background(), Descriptor{
		SecType: SecOption, Symbol: "SPXW", Exchange: "SMART", Currency: "USD",
		Expiry: "20260824", Strike: 5005, Right: Call, TradingClass: "SPXW",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "O:SPXW260824C05005000" {
		t.Fatalf("unexpected contract id %s", id)
	}
}

func TestWebQualifyOptionBadExpiry(t *testing.T) {
	ws := &WebSession{APIKey: "test", Client: http.DefaultClient, BaseURL: "http://127.0.0.1:0"}
	_, err := ws.Qualify(context.Background(), Descriptor{
		SecType: SecOption, Symbol: "SPXW", Expiry: "not-a-date", Strike: 5005, Right: Call,
	})
	if !errors.Is(err, ErrNotQualified) {
		t.Fatalf("expected ErrNotQualified, got %v", err)
	}
}

func TestWebSpotQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"c":5003.25}]}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	price, err := ws.SpotQuote(context.Background(), "SPX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 5003.25 {
		t.Fatalf("expected 5003.25, got %f", price)
	}
}

func TestWebSpotQuoteMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	price, err := ws.SpotQuote(context.Background(), "SPX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 0 {
		t.Fatalf("expected 0 for missing spot, got %f", price)
	}
}

func TestWebQuotesParsesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{
			"last_quote":{"bid":12.1,"ask":12.5},
			"last_trade":{"price":12.3},
			"greeks":{"delta":0.52,"gamma":0.004,"mid_iv":0.181},
			"implied_volatility":0.2,
			"open_interest":1543
		}}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	quotes, err := ws.Quotes(context.Background(), []ContractID{"O:SPXW260824C05005000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}

	q := quotes[0]
	if q.Bid != 12.1 || q.Ask != 12.5 {
		t.Fatalf("unexpected bid/ask: %f/%f", q.Bid, q.Ask)
	}
	if q.ModelIV != 0.181 || q.RawIV != 0.2 {
		t.Fatalf("unexpected IVs: %f/%f", q.ModelIV, q.RawIV)
	}
	if q.OpenInterest != 1543 {
		t.Fatalf("unexpected open interest: %d", q.OpenInterest)
	}
}

func TestWebQuotesMissingSnapshotYieldsSentinelRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	quotes, err := ws.Quotes(context.Background(), []ContractID{"O:XXX260824C00100000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected sentinel row, got %d rows", len(quotes))
	}
	if quotes[0].Bid != NoQuote || quotes[0].Ask != NoQuote {
		t.Fatalf("expected sentinel bid/ask, got %f/%f", quotes[0].Bid, quotes[0].Ask)
	}
}

func TestWebExpiriesPagination(t *testing.T) {
	callCount := 0

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++

		if callCount == 1 {
			w.Write([]byte(`{
				"results": [
					{"ticker":"O:A","expiration_date":"2026-08-24"},
					{"ticker":"O:B","expiration_date":"2026-08-25"}
				],
				"next_url": "` + srv.URL + `/page2"
			}`))
			return
		}

		w.Write([]byte(`{
			"results": [
				{"ticker":"O:C","expiration_date":"2026-08-25"},
				{"ticker":"O:D","expiration_date":"2026-08-28"}
			]
		}`))
	}))
	defer srv.Close()

	ws := newTestSession(srv)
	expiries, err := ws.Expiries(context.Background(), "SPXW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"20260824", "20260825", "20260828"}
	if len(expiries) != len(want) {
		t.Fatalf("expected %d expiries, got %d: %v", len(want), len(expiries), expiries)
	}
	for i := range want {
		if expiries[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, expiries)
		}
	}
	if callCount != 2 {
		t.Fatalf("expected 2 requests, got %d", callCount)
	}
}
