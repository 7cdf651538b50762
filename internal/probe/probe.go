package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/polly/internal/registry"
)

// Status classifies the result of a connectivity probe.
type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusNetworkError
)

// Outcome is the normalized result of one probe.
type Outcome struct {
	Status Status
	Reason string
}

// Prober confirms a credential is actually accepted upstream with exactly one
// minimal live call per invocation. It never retries; the caller may re-invoke.
type Prober struct {
	registry *registry.Registry
	client   *http.Client
}

func New(reg *registry.Registry) *Prober {
	return &Prober{
		registry: reg,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// probeBody is the minimal completion used where no cheap listing call exists.
type probeBody struct {
	Model     string         `json:"model"`
	Messages  []probeMessage `json:"messages,omitempty"`
	MaxTokens int            `json:"max_tokens"`
}

type probeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Probe performs one low-cost request against the provider's API and maps the
// result into a normalized outcome.
func (p *Prober) Probe(ctx context.Context, providerID, apiKey string) Outcome {
	prov, ok := p.registry.Get(providerID)
	if !ok {
		return Outcome{Status: StatusInvalid, Reason: fmt.Sprintf("Unsupported provider: %s", providerID)}
	}

	req, err := p.buildRequest(ctx, prov, apiKey)
	if err != nil {
		return Outcome{Status: StatusNetworkError, Reason: err.Error()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Outcome{Status: StatusNetworkError, Reason: fmt.Sprintf("Failed to connect to %s API", prov.Name)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Outcome{Status: StatusValid}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Outcome{Status: StatusInvalid, Reason: "invalid credential"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return Outcome{Status: StatusInvalid, Reason: "rate limited, try later"}
	default:
		return Outcome{Status: StatusInvalid, Reason: fmt.Sprintf("%s API error: %s", prov.Name, upstreamMessage(body))}
	}
}

func (p *Prober) buildRequest(ctx context.Context, prov registry.Provider, apiKey string) (*http.Request, error) {
	base := prov.BaseURL
	if base == "" {
		switch prov.Dialect {
		case registry.DialectAnthropic:
			base = "https://api.anthropic.com/v1"
		case registry.DialectGoogle:
			base = "https://generativelanguage.googleapis.com/v1beta"
		default:
			base = "https://api.openai.com/v1"
		}
	}
	base = strings.TrimRight(base, "/")

	if prov.ProbeViaListing {
		if prov.Dialect == registry.DialectGoogle {
			url := fmt.Sprintf("%s/models?key=%s", base, apiKey)
			return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	}

	model := prov.ProbeModel
	if model == "" && len(prov.Models) > 0 {
		model = prov.Models[0].ID
	}
	body, _ := json.Marshal(probeBody{
		Model:     model,
		Messages:  []probeMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: 10,
	})

	if prov.Dialect == registry.DialectAnthropic {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/messages", strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// upstreamMessage pulls the human-readable message out of a vendor error
// payload, falling back to the raw body.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}
