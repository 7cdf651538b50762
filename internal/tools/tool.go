package tools

import (
	"context"
	"net/http"
	"time"

	"github.com/nulzo/polly/internal/httpclient"
	"github.com/nulzo/polly/internal/llm"
)

// Tool wraps one external capability behind a uniform contract: free-text
// input, free-text output, and no error path. Every failure mode (network,
// empty result, malformed upstream payload) is absorbed and returned as a
// descriptive string, so the agent loop always gets a textual observation it
// can keep reasoning over.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) string
}

// Config selects which tools a toolset carries. Keyed tools whose credential
// is absent are left out entirely, never included in a broken state.
type Config struct {
	ExaAPIKey        string
	TavilyAPIKey     string
	CoinGeckoDemoKey string

	// HTTPClient overrides the transport for every tool; nil uses a
	// 10s-timeout default. Tests inject failing transports here.
	HTTPClient httpclient.HTTPClient
}

func (c Config) client() httpclient.HTTPClient {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Toolkit assembles the toolset for one agent request.
func Toolkit(cfg Config) []Tool {
	client := cfg.client()

	ts := []Tool{
		NewCalculator(),
	}

	if cfg.ExaAPIKey != "" {
		ts = append(ts,
			NewExaSearch(cfg.ExaAPIKey, client),
			NewExaSearchWithContent(cfg.ExaAPIKey, client),
			NewExaAnswer(cfg.ExaAPIKey, client),
		)
	}
	if cfg.TavilyAPIKey != "" {
		ts = append(ts, NewTavilySearch(cfg.TavilyAPIKey, client))
	}

	ts = append(ts,
		NewWikipedia(client),
		NewWeather(client),
		NewWorldTime(client),
		NewExchangeRate(client),
		NewCryptoPrice(cfg.CoinGeckoDemoKey, client),
		NewArxivSearch(client),
		NewHackerNewsSearch(client),
	)

	return ts
}

// Specs converts a toolset into the dialect-neutral tool declarations sent
// to the model.
func Specs(ts []Tool) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(ts))
	for _, t := range ts {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  inputSchema(),
		})
	}
	return specs
}

// ByName indexes a toolset for dispatch.
func ByName(ts []Tool) map[string]Tool {
	m := make(map[string]Tool, len(ts))
	for _, t := range ts {
		m[t.Name()] = t
	}
	return m
}

// inputSchema is the shared parameter shape: every tool takes one free-text
// input field.
func inputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{
				"type":        "string",
				"description": "The input to the tool",
			},
		},
		"required": []string{"input"},
	}
}
