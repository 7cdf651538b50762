package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

// CryptoPrice looks up spot prices via the CoinGecko simple price API. The
// endpoint works without a key; a demo key raises the rate limit when set.
type CryptoPrice struct {
	apiKey string
	client httpclient.HTTPClient
}

func NewCryptoPrice(apiKey string, client httpclient.HTTPClient) *CryptoPrice {
	return &CryptoPrice{apiKey: apiKey, client: client}
}

func (c *CryptoPrice) Name() string { return "crypto_price" }

func (c *CryptoPrice) Description() string {
	return "Get crypto price. Input 'bitcoin usd' or 'ethereum eur'. Uses CoinGecko simple price API."
}

func (c *CryptoPrice) Invoke(ctx context.Context, input string) string {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) < 2 {
		return "Format: '<coin> <fiat>', e.g., 'bitcoin usd'."
	}
	coin := strings.ToLower(fields[0])
	vs := strings.ToLower(fields[1])

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-cg-demo-api-key": c.apiKey}
	}

	var resp map[string]map[string]float64
	u := fmt.Sprintf("https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=%s",
		url.QueryEscape(coin), url.QueryEscape(vs))
	if err := getJSON(ctx, c.client, u, headers, &resp); err != nil {
		return fmt.Sprintf("Crypto lookup failed: %v", err)
	}

	price, ok := resp[coin][vs]
	if !ok {
		return "Price not available."
	}
	return fmt.Sprintf("%s = %g %s", coin, price, vs)
}
