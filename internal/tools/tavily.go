package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

// TavilySearch queries the Tavily search API, capped at 3 results.
type TavilySearch struct {
	apiKey string
	client httpclient.HTTPClient
}

func NewTavilySearch(apiKey string, client httpclient.HTTPClient) *TavilySearch {
	return &TavilySearch{apiKey: apiKey, client: client}
}

func (t *TavilySearch) Name() string { return "tavily_search" }

func (t *TavilySearch) Description() string {
	return "A search engine optimized for comprehensive, accurate, and trusted results. Useful for when you need to answer questions about current events. Input should be a search query."
}

func (t *TavilySearch) Invoke(ctx context.Context, input string) string {
	body := map[string]interface{}{
		"api_key":     t.apiKey,
		"query":       input,
		"max_results": 3,
	}
	var resp struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := postJSON(ctx, t.client, "https://api.tavily.com/search", nil, body, &resp); err != nil {
		return fmt.Sprintf("Search failed: %v", err)
	}
	if len(resp.Results) == 0 {
		return "No search results found for the given query."
	}

	var b strings.Builder
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n\n", i+1, r.Title, r.URL, truncate(r.Content, 300))
	}
	return strings.TrimRight(b.String(), "\n")
}
