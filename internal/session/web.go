package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/logger"
)

// WebSession implements Session against a Massive-style market-data gateway
// over plain HTTP. Qualification goes through the reference endpoints, spot
// prices through the aggregates endpoints, and option snapshots through the
// snapshot endpoint. Raw HTTP is used instead of the vendor SDK; the SDK
// covers none of the reference filters qualification needs.
type WebSession struct {
	// APIKey used for authenticating requests with the gateway.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint (e.g. https://api.massive.com).
	BaseURL string
}

// webContract is a single option contract row from the reference endpoint.
type webContract struct {
	ContractType     string  `json:"contract_type"`
	ExpiryDate       string  `json:"expiration_date"`
	PrimaryExchange  string  `json:"primary_exchange"`
	StrikePrice      float64 `json:"strike_price"`
	Ticker           string  `json:"ticker"`
	UnderlyingTicker string  `json:"underlying_ticker"`
}

// webContractsResp models the paginated reference response.
type webContractsResp struct {
	Results   []webContract `json:"results"`
	Status    string        `json:"status"`
	RequestID string        `json:"request_id"`
	NextURL   string        `json:"next_url"`
}

// NewWebSession constructs an HTTP-backed session with timeouts, connection
// pooling, HTTP/2 and gzip decompression configured.
func NewWebSession(apiKey string) *WebSession {
	logger.Infof("initializing web market session")

	return &WebSession{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DisableCompression:    false, // must be false to enable gzip auto-decompression
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL: "https://api.massive.com",
	}
}

// Qualify resolves one candidate descriptor through the reference endpoints.
// Underlyings hit the ticker reference, options the contract reference with
// exact expiry/strike/right filters. Any miss, malformed response or
// per-attempt timeout comes back wrapped in ErrNotQualified so the caller
// can move to its next candidate; only an auth rejection is escalated to
// ErrSessionUnavailable.
func (ws *WebSession) Qualify(ctx context.Context, d Descriptor) (ContractID, error) {
	switch d.SecType {
	case SecOption:
		return ws.qualifyOption(ctx, d)
	default:
		return ws.qualifyUnderlying(ctx, d)
	}
}

func (ws *WebSession) qualifyUnderlying(ctx context.Context, d Descriptor) (ContractID, error) {
	u, err := url.Parse(ws.BaseURL + "/v3/reference/tickers")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotQualified, err)
	}

	q := u.Query()
	q.Set("ticker", d.Symbol)
	q.Set("exchange", d.Exchange)
	q.Set("limit", "1")
	q.Set("apiKey", ws.APIKey)
	u.RawQuery = q.Encode()

	var body struct {
		Results []struct {
			Ticker string `json:"ticker"`
		} `json:"results"`
	}
	if err := ws.getJSON(ctx, u.String(), &body); err != nil {
		return "", err
	}

	if len(body.Results) == 0 || body.Results[0].Ticker == "" {
		return "", fmt.Errorf("%w: %s on %s", ErrNotQualified, d.Symbol, d.Exchange)
	}
	return ContractID(body.Results[0].Ticker), nil
}

func (ws *WebSession) qualifyOption(ctx context.Context, d Descriptor) (ContractID, error) {
	expiry, err := time.Parse("20060102", d.Expiry)
	if err != nil {
		return "", fmt.Errorf("%w: bad expiry %q", ErrNotQualified, d.Expiry)
	}

	u, err := url.Parse(ws.BaseURL + "/v3/reference/options/contracts")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotQualified, err)
	}

	contractType := "call"
	if d.Right == Put {
		contractType = "put"
	}

	q := u.Query()
	q.Set("underlying_ticker", d.Symbol)
	q.Set("strike_price", fmt.Sprintf("%.8g", d.Strike))
	q.Set("expiration_date", expiry.Format("2006-01-02"))
	q.Set("contract_type", contractType)
	q.Set("exchange", d.Exchange)
	if d.TradingClass != "" {
		q.Set("trading_class", d.TradingClass)
	}
	q.Set("limit", "1")
	q.Set("apiKey", ws.APIKey)
	u.RawQuery = q.Encode()

	var body webContractsResp
	if err := ws.getJSON(ctx, u.String(), &body); err != nil {
		return "", err
	}

	if len(body.Results) == 0 || body.Results[0].Ticker == "" {
		return "", fmt.Errorf("%w: %s %s %.8g %s on %s",
			ErrNotQualified, d.Symbol, d.Expiry, d.Strike, d.Right, d.Exchange)
	}
	return ContractID(body.Results[0].Ticker), nil
}

// SpotQuote returns the most recent price for a qualified underlying using
// the previous-close aggregate. Zero with nil error means no usable price;
// the caller decides how to degrade.
func (ws *WebSession) SpotQuote(ctx context.Context, id ContractID) (float64, error) {
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s",
		ws.BaseURL, url.PathEscape(string(id)), ws.APIKey)

	var body struct {
		Results []struct {
			Close float64 `json:"c"`
		} `json:"results"`
	}
	if err := ws.getJSON(ctx, u, &body); err != nil {
		return 0, err
	}

	if len(body.Results) == 0 {
		logger.Debugf("no spot aggregate for %s", id)
		return 0, nil
	}
	return body.Results[0].Close, nil
}

// webSnapshot models one option snapshot row. Optional fields are pointers
// so "absent" survives decoding and can map to NaN.
type webSnapshot struct {
	Results struct {
		LastQuote struct {
			Bid *float64 `json:"bid"`
			Ask *float64 `json:"ask"`
		} `json:"last_quote"`
		LastTrade struct {
			Price float64 `json:"price"`
		} `json:"last_trade"`
		Greeks struct {
			Delta *float64 `json:"delta"`
			Gamma *float64 `json:"gamma"`
			MidIV *float64 `json:"mid_iv"`
		} `json:"greeks"`
		ImpliedVolatility *float64 `json:"implied_volatility"`
		OpenInterest      int64    `json:"open_interest"`
	} `json:"results"`
}

// Quotes fetches a snapshot for every contract id, preserving input order.
// A contract with no snapshot data yields a sentinel/NaN row instead of
// being dropped, so callers can rely on cardinality.
func (ws *WebSession) Quotes(ctx context.Context, ids []ContractID) ([]Quote, error) {
	out := make([]Quote, 0, len(ids))
	for _, id := range ids {
		u := fmt.Sprintf("%s/v3/snapshot/options/%s?apiKey=%s",
			ws.BaseURL, url.PathEscape(string(id)), ws.APIKey)

		var snap webSnapshot
		if err := ws.getJSON(ctx, u, &snap); err != nil {
			if errors.Is(err, ErrSessionUnavailable) {
				return nil, err
			}
			logger.Debugf("no snapshot for %s: %v", id, err)
			out = append(out, emptyQuote(id))
			continue
		}

		r := snap.Results
		out = append(out, Quote{
			Contract:     id,
			Bid:          orSentinel(r.LastQuote.Bid),
			Ask:          orSentinel(r.LastQuote.Ask),
			Last:         r.LastTrade.Price,
			ModelIV:      orNaN(r.Greeks.MidIV),
			RawIV:        orNaN(r.ImpliedVolatility),
			Delta:        orNaN(r.Greeks.Delta),
			Gamma:        orNaN(r.Greeks.Gamma),
			OpenInterest: r.OpenInterest,
		})
	}
	return out, nil
}

// Expiries lists the available option expiries for an underlying alias by
// walking the paginated contract reference and deduplicating expiry dates.
func (ws *WebSession) Expiries(ctx context.Context, alias string) ([]string, error) {
	u, err := url.Parse(ws.BaseURL + "/v3/reference/options/contracts")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("underlying_ticker", alias)
	q.Set("expiration_date.gte", time.Now().UTC().Format("2006-01-02"))
	q.Set("limit", "1000")
	q.Set("apiKey", ws.APIKey)
	u.RawQuery = q.Encode()
	reqURL := u.String()

	seen := map[string]struct{}{}

	// Handle pagination
	for reqURL != "" {
		logger.Tracef("expiries request URL: %s", reqURL)

		var body webContractsResp
		if err := ws.getJSON(ctx, reqURL, &body); err != nil {
			return nil, err
		}

		for _, c := range body.Results {
			t, err := time.Parse("2006-01-02", c.ExpiryDate)
			if err != nil {
				continue // skip malformed expiry dates
			}
			seen[t.Format("20060102")] = struct{}{}
		}

		reqURL = body.NextURL
		if reqURL != "" && !strings.Contains(reqURL, "apiKey=") {
			sep := "?"
			if strings.Contains(reqURL, "?") {
				sep = "&"
			}
			reqURL = reqURL + sep + "apiKey=" + ws.APIKey
		}
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)

	logger.Debugf("resolved %d expiries for %s", len(out), alias)
	return out, nil
}

// getJSON executes an authorized GET with rate-limit handling and decodes
// the response into v. 401/403 map to ErrSessionUnavailable; everything
// else comes back as an ordinary wrapped error.
func (ws *WebSession) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+ws.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := ws.processGetRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrSessionUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		var dbg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &dbg)
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, dbg.Message)
	}

	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}

	return json.Unmarshal(body, v)
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Retries on HTTP 429, sleeping until the next minute boundary
//   - Returns immediately on success (<400)
//   - Returns an error for other status codes after handing back the response
func (ws *WebSession) processGetRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	for {
		resp, err := ws.Client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()

		// Sleep until the next minute boundary, the granularity the
		// gateway enforces its per-minute limit at.
		now := time.Now()
		sleepDuration := time.Until(now.Truncate(time.Minute).Add(time.Minute))

		logger.Infof("rate limit hit, sleeping for %s", sleepDuration)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepDuration):
		}
	}
}

func emptyQuote(id ContractID) Quote {
	return Quote{
		Contract: id,
		Bid:      NoQuote,
		Ask:      NoQuote,
		ModelIV:  math.NaN(),
		RawIV:    math.NaN(),
		Delta:    math.NaN(),
		Gamma:    math.NaN(),
	}
}

func orSentinel(p *float64) float64 {
	if p == nil {
		return NoQuote
	}
	return *p
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
