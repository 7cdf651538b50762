package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/nulzo/polly/internal/httpclient"
)

// getJSON and postJSON are thin wrappers shared by the adapters; tools must
// translate any returned error into text before handing it to the agent.
func getJSON(ctx context.Context, client httpclient.HTTPClient, url string, headers map[string]string, out interface{}) error {
	return httpclient.SendRequest(ctx, client, http.MethodGet, url, headers, nil, out)
}

func postJSON(ctx context.Context, client httpclient.HTTPClient, url string, headers map[string]string, body, out interface{}) error {
	return httpclient.SendRequest(ctx, client, http.MethodPost, url, headers, body, out)
}

// getText fetches a raw body for non-JSON upstreams (arXiv's Atom feed).
func getText(ctx context.Context, client httpclient.HTTPClient, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
