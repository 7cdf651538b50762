package registry

import (
	"github.com/nulzo/polly/internal/httpclient"
	"github.com/nulzo/polly/internal/llm"
	"github.com/nulzo/polly/internal/llm/anthropic"
	"github.com/nulzo/polly/internal/llm/google"
	"github.com/nulzo/polly/internal/llm/openai"
	"github.com/nulzo/polly/pkg/api"
)

// Dialect identifies the wire protocol a provider speaks. It is a closed set:
// the registry maps every provider onto one of these, so nothing downstream
// ever branches on vendor identity.
type Dialect string

const (
	DialectOpenAI    Dialect = "openai"
	DialectAnthropic Dialect = "anthropic"
	DialectGoogle    Dialect = "google"
)

// Provider is one upstream LLM vendor in the catalog.
type Provider struct {
	ID     string
	Name   string
	KeyEnv string // conventional env var holding a default credential

	// KeyPrefix is the required credential prefix; empty means any
	// non-blank key passes the local format check.
	KeyPrefix string

	BaseURL string
	Dialect Dialect
	Models  []Model

	// ProbeViaListing selects the cheap connectivity probe: a model
	// listing call instead of a minimal completion.
	ProbeViaListing bool
	// ProbeModel overrides the model used for completion probes.
	ProbeModel string
}

// Model is one named LLM under a provider.
type Model struct {
	ID            string
	Name          string
	MaxTokens     int
	ContextWindow int
}

// Registry is the static provider catalog. Immutable after construction.
type Registry struct {
	providers []Provider
	byID      map[string]int

	// transport override for every constructed client; nil keeps the
	// per-client default. Used by tests to point at mock upstreams.
	transport httpclient.HTTPClient
}

// New builds a registry from an explicit provider list, insertion order
// preserved. Use Default for the standard catalog.
func New(providers ...Provider) *Registry {
	r := &Registry{
		providers: providers,
		byID:      make(map[string]int, len(providers)),
	}
	for i, p := range providers {
		r.byID[p.ID] = i
	}
	return r
}

// WithTransport returns the registry with every constructed client using the
// given HTTP transport.
func (r *Registry) WithTransport(c httpclient.HTTPClient) *Registry {
	r.transport = c
	return r
}

// List returns the catalog in insertion order.
func (r *Registry) List() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Provider{}, false
	}
	return r.providers[i], true
}

// Model looks up a model under a provider. Absent ids return ok=false,
// never an error.
func (r *Registry) Model(providerID, modelID string) (Model, bool) {
	p, ok := r.Get(providerID)
	if !ok {
		return Model{}, false
	}
	for _, m := range p.Models {
		if m.ID == modelID {
			return m, true
		}
	}
	return Model{}, false
}

// NewClient constructs a configured client for the (provider, model, key)
// triple. Pure construction: no network I/O happens here.
func (r *Registry) NewClient(providerID, modelID, apiKey string) (llm.Client, error) {
	p, ok := r.Get(providerID)
	if !ok {
		return nil, api.UnknownProvider(providerID)
	}
	if _, ok := r.Model(providerID, modelID); !ok {
		return nil, api.UnknownModel(providerID, modelID)
	}

	switch p.Dialect {
	case DialectAnthropic:
		return anthropic.NewClient(anthropic.Options{
			APIKey:     apiKey,
			Model:      modelID,
			BaseURL:    p.BaseURL,
			HTTPClient: r.transport,
		}), nil
	case DialectGoogle:
		return google.NewClient(google.Options{
			APIKey:     apiKey,
			Model:      modelID,
			BaseURL:    p.BaseURL,
			HTTPClient: r.transport,
		}), nil
	default:
		return openai.NewClient(openai.Options{
			APIKey:     apiKey,
			Model:      modelID,
			BaseURL:    p.BaseURL,
			HTTPClient: r.transport,
		}), nil
	}
}
