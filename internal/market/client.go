package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// providerIDs maps watch symbols to the provider's asset identifiers.
// Symbols without a mapping are silently skipped by the client.
var providerIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"USDC":  "usd-coin",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"ETC":   "ethereum-classic",
	"FIL":   "filecoin",
	"NEAR":  "near",
}

// Quote is one row of the provider's markets response.
type Quote struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Price        *float64 `json:"current_price"`
	MarketCap    *float64 `json:"market_cap"`
	Volume24h    *float64 `json:"total_volume"`
	Change24h    *float64 `json:"price_change_24h"`
	ChangePct24h *float64 `json:"price_change_percentage_24h"`
}

// Client fetches raw quotes from the market data provider. It carries no
// business logic beyond symbol-to-id mapping and error classification.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchMarkets issues one batched request for every mapped symbol and
// returns the raw quotes. Failures come back as a classified *FetchError.
func (c *Client) FetchMarkets(ctx context.Context, symbols []string) ([]Quote, error) {
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if id, ok := providerIDs[strings.ToUpper(symbol)]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("ids", strings.Join(ids, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+query.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Kind: KindClient, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{Kind: KindRateLimit, Status: resp.StatusCode, Err: errors.New("rate limited")}
	case resp.StatusCode >= 500:
		return nil, &FetchError{Kind: KindServer, Status: resp.StatusCode, Err: fmt.Errorf("server error")}
	default:
		return nil, &FetchError{Kind: KindClient, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var quotes []Quote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, &FetchError{Kind: KindServer, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return quotes, nil
}

// SymbolForID reverses the provider-id mapping, uppercased.
func SymbolForID(id string) (string, bool) {
	for symbol, providerID := range providerIDs {
		if providerID == id {
			return symbol, true
		}
	}
	return "", false
}

func classifyTransportError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	return &FetchError{Kind: KindConnection, Err: err}
}
