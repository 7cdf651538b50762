package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

var fxPattern = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)\s+)?([A-Za-z]{3})\s+to\s+([A-Za-z]{3})$`)

// ExchangeRate converts between currencies via exchangerate.host (no API key).
type ExchangeRate struct {
	client httpclient.HTTPClient
}

func NewExchangeRate(client httpclient.HTTPClient) *ExchangeRate {
	return &ExchangeRate{client: client}
}

func (e *ExchangeRate) Name() string { return "fx_convert" }

func (e *ExchangeRate) Description() string {
	return "Convert currency. Input formats: 'USD to INR', '100 USD to EUR'. Returns converted amount."
}

func (e *ExchangeRate) Invoke(ctx context.Context, input string) string {
	m := fxPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "Invalid format. Try '100 USD to EUR' or 'USD to INR'."
	}

	amount := 1.0
	if m[1] != "" {
		amount, _ = strconv.ParseFloat(m[1], 64)
	}
	from := strings.ToUpper(m[2])
	to := strings.ToUpper(m[3])

	var resp struct {
		Result *float64 `json:"result"`
	}
	u := fmt.Sprintf("https://api.exchangerate.host/convert?from=%s&to=%s&amount=%g", from, to, amount)
	if err := getJSON(ctx, e.client, u, nil, &resp); err != nil {
		return fmt.Sprintf("FX conversion failed: %v", err)
	}
	if resp.Result == nil {
		return "Conversion failed."
	}

	return fmt.Sprintf("%g %s = %g %s", amount, from, *resp.Result, to)
}
