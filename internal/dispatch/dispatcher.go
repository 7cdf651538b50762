package dispatch

import (
	"errors"
	"strings"

	"github.com/nulzo/polly/internal/config"
	"github.com/nulzo/polly/internal/httpclient"
	"github.com/nulzo/polly/internal/llm"
	"github.com/nulzo/polly/internal/registry"
	"github.com/nulzo/polly/pkg/api"
)

// Dispatcher turns validated API requests into provider invocations. It is
// stateless across requests: every call constructs a fresh client bound to
// that request's provider, model, and credential, and nothing about the
// credential outlives the call.
type Dispatcher struct {
	registry *registry.Registry
	defaults config.DefaultsConfig
	keys     config.KeysConfig
	tools    config.ToolsConfig

	// toolClient overrides the transport tools use; nil keeps the tools
	// package default. Tests inject mock transports here.
	toolClient httpclient.HTTPClient
}

func New(reg *registry.Registry, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		defaults: cfg.Defaults,
		keys:     cfg.Keys,
		tools:    cfg.Tools,
	}
}

// WithToolTransport returns the dispatcher with every tool using the given
// HTTP transport.
func (d *Dispatcher) WithToolTransport(c httpclient.HTTPClient) *Dispatcher {
	d.toolClient = c
	return d
}

// resolve applies defaults, validates the provider/model pair, resolves the
// credential, and constructs the client. No network I/O.
func (d *Dispatcher) resolve(req *api.ChatRequest) (llm.Client, error) {
	if len(req.Messages) == 0 {
		return nil, api.BadRequest("messages must not be empty")
	}

	provider := req.Provider
	if provider == "" {
		provider = d.defaults.Provider
	}
	model := req.Model
	if model == "" {
		model = d.defaults.Model
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = d.keys.ForProvider(provider)
	}

	if _, ok := d.registry.Get(provider); !ok {
		return nil, api.UnknownProvider(provider)
	}
	if _, ok := d.registry.Model(provider, model); !ok {
		return nil, api.UnknownModel(provider, model)
	}
	if apiKey == "" {
		return nil, api.MissingCredential()
	}

	return d.registry.NewClient(provider, model, apiKey)
}

// mapUpstream converts transport-layer failures into boundary errors. A
// provider refusal keeps its status and message; anything that never got an
// HTTP answer becomes a 502.
func mapUpstream(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		return api.UpstreamRejected(upstream.StatusCode, upstreamMessage(upstream.Body))
	}
	return api.UpstreamUnavailable(err)
}

// upstreamMessage pulls the human-readable message out of a vendor error
// payload, falling back to the raw body.
func upstreamMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "provider rejected the request"
	}
	return msg
}
