package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/polly/internal/registry"
)

func listingProvider(baseURL string) registry.Provider {
	return registry.Provider{
		ID:              "openai",
		Name:            "OpenAI",
		KeyPrefix:       "sk-",
		BaseURL:         baseURL,
		Dialect:         registry.DialectOpenAI,
		Models:          []registry.Model{{ID: "gpt-4o-mini", Name: "GPT-4o Mini"}},
		ProbeViaListing: true,
	}
}

func completionProvider(baseURL string) registry.Provider {
	return registry.Provider{
		ID:         "groq",
		Name:       "Groq",
		KeyPrefix:  "gsk_",
		BaseURL:    baseURL,
		Dialect:    registry.DialectOpenAI,
		Models:     []registry.Model{{ID: "llama3-8b-8192", Name: "Llama 3 8B"}},
		ProbeModel: "llama3-8b-8192",
	}
}

func TestProbeValidCredential(t *testing.T) {
	var calls int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-good", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer upstream.Close()

	p := New(registry.New(listingProvider(upstream.URL)))
	outcome := p.Probe(context.Background(), "openai", "sk-good")

	assert.Equal(t, StatusValid, outcome.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "probe must make exactly one call")
}

func TestProbeCompletionStrategy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hi"}}]}`))
	}))
	defer upstream.Close()

	p := New(registry.New(completionProvider(upstream.URL)))
	outcome := p.Probe(context.Background(), "groq", "gsk_good")

	assert.Equal(t, StatusValid, outcome.Status)
}

func TestProbeInvalidCredential(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	p := New(registry.New(listingProvider(upstream.URL)))
	outcome := p.Probe(context.Background(), "openai", "sk-bad")

	assert.Equal(t, StatusInvalid, outcome.Status)
	assert.Equal(t, "invalid credential", outcome.Reason)
}

func TestProbeRateLimited(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	p := New(registry.New(listingProvider(upstream.URL)))
	outcome := p.Probe(context.Background(), "openai", "sk-busy")

	assert.Equal(t, StatusInvalid, outcome.Status)
	assert.Equal(t, "rate limited, try later", outcome.Reason)
}

func TestProbePassesUpstreamMessageThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded"}}`))
	}))
	defer upstream.Close()

	p := New(registry.New(listingProvider(upstream.URL)))
	outcome := p.Probe(context.Background(), "openai", "sk-x")

	assert.Equal(t, StatusInvalid, outcome.Status)
	assert.Equal(t, "OpenAI API error: upstream exploded", outcome.Reason)
}

func TestProbeNetworkFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // refuse connections

	p := New(registry.New(listingProvider(upstream.URL)))
	outcome := p.Probe(context.Background(), "openai", "sk-x")

	assert.Equal(t, StatusNetworkError, outcome.Status)
	assert.Equal(t, "Failed to connect to OpenAI API", outcome.Reason)
}

func TestProbeUnknownProvider(t *testing.T) {
	p := New(registry.New())
	outcome := p.Probe(context.Background(), "closedai", "sk-x")

	require.Equal(t, StatusInvalid, outcome.Status)
	assert.Equal(t, "Unsupported provider: closedai", outcome.Reason)
}

func TestProbeGoogleUsesKeyQuery(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "AIza-test", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer upstream.Close()

	p := New(registry.New(registry.Provider{
		ID:              "google",
		Name:            "Google",
		BaseURL:         upstream.URL,
		Dialect:         registry.DialectGoogle,
		Models:          []registry.Model{{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash"}},
		ProbeViaListing: true,
	}))
	outcome := p.Probe(context.Background(), "google", "AIza-test")

	assert.Equal(t, StatusValid, outcome.Status)
}
