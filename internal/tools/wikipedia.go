package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

// Wikipedia answers encyclopedic queries through the MediaWiki API: one
// search call to find the best page, one to pull its plain-text intro.
type Wikipedia struct {
	client httpclient.HTTPClient
}

func NewWikipedia(client httpclient.HTTPClient) *Wikipedia {
	return &Wikipedia{client: client}
}

func (w *Wikipedia) Name() string { return "wikipedia" }

func (w *Wikipedia) Description() string {
	return "Look up a topic on Wikipedia. Input should be a topic or entity name. Returns a short summary of the best-matching article."
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *Wikipedia) Invoke(ctx context.Context, input string) string {
	q := url.QueryEscape(strings.TrimSpace(input))

	var search wikiSearchResponse
	searchURL := fmt.Sprintf("https://en.wikipedia.org/w/api.php?action=query&list=search&srsearch=%s&srlimit=1&format=json", q)
	if err := getJSON(ctx, w.client, searchURL, nil, &search); err != nil {
		return fmt.Sprintf("Wikipedia lookup failed: %v", err)
	}
	if len(search.Query.Search) == 0 {
		return fmt.Sprintf("No Wikipedia article found for %s.", input)
	}

	title := search.Query.Search[0].Title
	var extract wikiExtractResponse
	extractURL := fmt.Sprintf("https://en.wikipedia.org/w/api.php?action=query&prop=extracts&exintro=1&explaintext=1&titles=%s&format=json",
		url.QueryEscape(title))
	if err := getJSON(ctx, w.client, extractURL, nil, &extract); err != nil {
		return fmt.Sprintf("Wikipedia lookup failed: %v", err)
	}

	for _, page := range extract.Query.Pages {
		if page.Extract != "" {
			summary := page.Extract
			if len(summary) > 1500 {
				summary = summary[:1500] + "..."
			}
			return fmt.Sprintf("%s\n\n%s", page.Title, summary)
		}
	}
	return fmt.Sprintf("No summary available for %s.", title)
}
