package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

// HackerNewsSearch queries Hacker News through the Algolia search API.
type HackerNewsSearch struct {
	client httpclient.HTTPClient
}

func NewHackerNewsSearch(client httpclient.HTTPClient) *HackerNewsSearch {
	return &HackerNewsSearch{client: client}
}

func (h *HackerNewsSearch) Name() string { return "hn_search" }

func (h *HackerNewsSearch) Description() string {
	return "Search Hacker News via Algolia. Input should be a query string. Returns top stories with titles and URLs."
}

type hnResponse struct {
	Hits []struct {
		Title    string `json:"title"`
		URL      string `json:"url"`
		StoryURL string `json:"story_url"`
	} `json:"hits"`
}

func (h *HackerNewsSearch) Invoke(ctx context.Context, input string) string {
	u := fmt.Sprintf("https://hn.algolia.com/api/v1/search?query=%s", url.QueryEscape(strings.TrimSpace(input)))
	var resp hnResponse
	if err := getJSON(ctx, h.client, u, nil, &resp); err != nil {
		return fmt.Sprintf("HN search failed: %v", err)
	}
	if len(resp.Hits) == 0 {
		return "No results"
	}

	hits := resp.Hits
	if len(hits) > 5 {
		hits = hits[:5]
	}
	var lines []string
	for i, hit := range hits {
		link := hit.URL
		if link == "" {
			link = hit.StoryURL
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s", i+1, hit.Title, link))
	}
	return strings.Join(lines, "\n")
}
