package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

// ArxivSearch queries the arXiv Atom API for academic papers.
type ArxivSearch struct {
	client httpclient.HTTPClient
}

func NewArxivSearch(client httpclient.HTTPClient) *ArxivSearch {
	return &ArxivSearch{client: client}
}

func (a *ArxivSearch) Name() string { return "arxiv_search" }

func (a *ArxivSearch) Description() string {
	return "Search arXiv for academic papers. Input should be a query string; returns top 3 results with titles and links."
}

type arxivFeed struct {
	Entries []struct {
		Title string `xml:"title"`
		ID    string `xml:"id"`
	} `xml:"entry"`
}

func (a *ArxivSearch) Invoke(ctx context.Context, input string) string {
	u := fmt.Sprintf("http://export.arxiv.org/api/query?search_query=all:%s&start=0&max_results=3",
		url.QueryEscape(strings.TrimSpace(input)))
	body, err := getText(ctx, a.client, u)
	if err != nil {
		return fmt.Sprintf("arXiv search failed: %v", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal([]byte(body), &feed); err != nil {
		return fmt.Sprintf("arXiv search failed: %v", err)
	}
	if len(feed.Entries) == 0 {
		return "No results"
	}

	var items []string
	for _, entry := range feed.Entries {
		title := strings.Join(strings.Fields(entry.Title), " ")
		items = append(items, fmt.Sprintf("- %s\n  %s", title, strings.TrimSpace(entry.ID)))
	}
	return "Top arXiv results:\n" + strings.Join(items, "\n")
}
