package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

const exaBaseURL = "https://api.exa.ai"

func exaHeaders(apiKey string) map[string]string {
	return map[string]string{"x-api-key": apiKey}
}

type exaResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

type exaSearchResponse struct {
	Results []exaResult `json:"results"`
}

// ExaSearch runs a neural web search against the Exa API.
type ExaSearch struct {
	apiKey string
	client httpclient.HTTPClient
}

func NewExaSearch(apiKey string, client httpclient.HTTPClient) *ExaSearch {
	return &ExaSearch{apiKey: apiKey, client: client}
}

func (e *ExaSearch) Name() string { return "exa_search" }

func (e *ExaSearch) Description() string {
	return "Search the web for current information. Useful for finding recent news, facts, or data. Input should be a search query."
}

func (e *ExaSearch) Invoke(ctx context.Context, input string) string {
	body := map[string]interface{}{
		"query":         input,
		"numResults":    5,
		"type":          "neural",
		"useAutoprompt": true,
	}
	var resp exaSearchResponse
	if err := postJSON(ctx, e.client, exaBaseURL+"/search", exaHeaders(e.apiKey), body, &resp); err != nil {
		return fmt.Sprintf("Error performing search: %v", err)
	}
	if len(resp.Results) == 0 {
		return "No search results found for the given query."
	}

	var b strings.Builder
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n", i+1, r.Title, r.URL)
		if r.Text != "" {
			fmt.Fprintf(&b, "   Content: %s...\n", truncate(r.Text, 200))
		}
		b.WriteString("\n")
	}
	return fmt.Sprintf("Search results for %q:\n\n%s", input, strings.TrimRight(b.String(), "\n"))
}

// ExaSearchWithContent searches and pulls page text for the top results, for
// deeper research turns.
type ExaSearchWithContent struct {
	apiKey string
	client httpclient.HTTPClient
}

func NewExaSearchWithContent(apiKey string, client httpclient.HTTPClient) *ExaSearchWithContent {
	return &ExaSearchWithContent{apiKey: apiKey, client: client}
}

func (e *ExaSearchWithContent) Name() string { return "exa_search_with_content" }

func (e *ExaSearchWithContent) Description() string {
	return "Search the web and retrieve full content of results. Useful for detailed research and analysis. Input should be a search query."
}

func (e *ExaSearchWithContent) Invoke(ctx context.Context, input string) string {
	body := map[string]interface{}{
		"query":         input,
		"numResults":    3,
		"type":          "neural",
		"useAutoprompt": true,
		"contents": map[string]interface{}{
			"text": true,
		},
	}
	var resp exaSearchResponse
	if err := postJSON(ctx, e.client, exaBaseURL+"/search", exaHeaders(e.apiKey), body, &resp); err != nil {
		return fmt.Sprintf("Error performing search: %v", err)
	}
	if len(resp.Results) == 0 {
		return "No search results found for the given query."
	}

	var b strings.Builder
	for i, r := range resp.Results {
		content := "No content available"
		if r.Text != "" {
			content = truncate(r.Text, 500) + "..."
		}
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   Content: %s\n\n", i+1, r.Title, r.URL, content)
	}
	return fmt.Sprintf("Detailed search results for %q:\n\n%s", input, strings.TrimRight(b.String(), "\n"))
}

// ExaAnswer asks Exa for a direct, citation-backed answer.
type ExaAnswer struct {
	apiKey string
	client httpclient.HTTPClient
}

func NewExaAnswer(apiKey string, client httpclient.HTTPClient) *ExaAnswer {
	return &ExaAnswer{apiKey: apiKey, client: client}
}

func (e *ExaAnswer) Name() string { return "exa_answer" }

func (e *ExaAnswer) Description() string {
	return "Get direct answers to questions using web search. Useful for factual questions and current information. Input should be a question."
}

func (e *ExaAnswer) Invoke(ctx context.Context, input string) string {
	body := map[string]interface{}{
		"query": input,
		"text":  true,
	}
	var resp struct {
		Answer    string `json:"answer"`
		Citations []struct {
			Title string `json:"title"`
		} `json:"citations"`
	}
	if err := postJSON(ctx, e.client, exaBaseURL+"/answer", exaHeaders(e.apiKey), body, &resp); err != nil {
		return fmt.Sprintf("Error getting answer: %v", err)
	}

	sources := "No citations available"
	if len(resp.Citations) > 0 {
		titles := make([]string, 0, len(resp.Citations))
		for _, c := range resp.Citations {
			titles = append(titles, c.Title)
		}
		sources = strings.Join(titles, ", ")
	}
	return fmt.Sprintf("Answer: %s\n\nSources: %s", resp.Answer, sources)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
