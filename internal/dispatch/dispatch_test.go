package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/polly/internal/config"
	"github.com/nulzo/polly/internal/registry"
	"github.com/nulzo/polly/pkg/api"
)

// scriptedTransport answers upstream calls from a fixed script, one response
// per call, and records every request body it saw.
type scriptedTransport struct {
	mu     sync.Mutex
	script []*http.Response
	calls  int
	bodies [][]byte
}

func (s *scriptedTransport) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, body)
	}
	if s.calls >= len(s.script) {
		return nil, errors.New("unexpected upstream call")
	}
	resp := s.script[s.calls]
	s.calls++
	return resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func sseResponse(events ...string) *http.Response {
	var b strings.Builder
	for _, e := range events {
		b.WriteString("data: ")
		b.WriteString(e)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(b.String())),
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
	}
}

func newTestDispatcher(transport *scriptedTransport) *Dispatcher {
	reg := registry.Default().WithTransport(transport)
	cfg := &config.Config{
		Defaults: config.DefaultsConfig{Provider: "openai", Model: "gpt-4o-mini"},
	}
	return New(reg, cfg)
}

func TestChatStreamsContentInOrder(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		sseResponse(
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		),
	}}
	d := newTestDispatcher(transport)

	stream, err := d.Chat(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{
			{Role: "user", Content: "earlier turn"},
			{Role: "assistant", Content: "earlier answer"},
			{Role: "user", Content: "Say hello"},
		},
		APIKey: "sk-test",
	})
	require.NoError(t, err)

	var got []string
	for res := range stream {
		require.NoError(t, res.Err)
		if res.Chunk.HasContent() {
			got = append(got, res.Chunk.Content)
		}
	}
	assert.Equal(t, []string{"Hel", "lo"}, got)

	// The rendered prompt carries history lines and the final input.
	var sent struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(transport.bodies[0], &sent))
	require.Len(t, sent.Messages, 1)
	assert.Contains(t, sent.Messages[0].Content, "user: earlier turn")
	assert.Contains(t, sent.Messages[0].Content, "assistant: earlier answer")
	assert.Contains(t, sent.Messages[0].Content, "User: Say hello")
}

func TestChatRequiresCredential(t *testing.T) {
	d := newTestDispatcher(&scriptedTransport{})

	_, err := d.Chat(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, api.StatusOf(err))
	assert.Equal(t, "API key is required", err.Error())
}

func TestChatFallsBackToConfiguredKey(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		sseResponse(`{"choices":[{"delta":{"content":"ok"}}]}`),
	}}
	reg := registry.Default().WithTransport(transport)
	d := New(reg, &config.Config{
		Defaults: config.DefaultsConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Keys:     config.KeysConfig{OpenAI: "sk-from-env"},
	})

	stream, err := d.Chat(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	for range stream {
	}
}

func TestChatRejectsUnknownProviderAndModel(t *testing.T) {
	d := newTestDispatcher(&scriptedTransport{})
	ctx := context.Background()

	_, err := d.Chat(ctx, &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
		Provider: "nonexistent",
		APIKey:   "sk-test",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, api.StatusOf(err))
	assert.Equal(t, "Provider nonexistent not found", err.Error())

	_, err = d.Chat(ctx, &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
		Provider: "openai",
		Model:    "gpt-99",
		APIKey:   "sk-test",
	})
	require.Error(t, err)
	assert.Equal(t, "Model gpt-99 not found for provider openai", err.Error())
}

func TestChatSurfacesUpstreamRejection(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		jsonResponse(http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`),
	}}
	d := newTestDispatcher(transport)

	stream, err := d.Chat(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
		APIKey:   "sk-bad",
	})
	require.NoError(t, err)

	var streamErr error
	for res := range stream {
		if res.Err != nil {
			streamErr = res.Err
		}
	}
	require.Error(t, streamErr)
	assert.Equal(t, http.StatusBadRequest, api.StatusOf(streamErr))
	assert.Equal(t, "Incorrect API key provided", streamErr.Error())
}

func TestAgentStreamFiltersToolOnlyChunks(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		// Round one: the model only asks for a tool, no content at all.
		sseResponse(
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"calculator","arguments":"{\"inp"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ut\":\"1 + 2\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		),
		// Round two: final answer.
		sseResponse(
			`{"choices":[{"delta":{"content":"Squawk! "}}]}`,
			`{"choices":[{"delta":{"content":"3"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		),
	}}
	d := newTestDispatcher(transport)

	stream, err := d.AgentStream(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "What is 1 + 2?"}},
		APIKey:   "sk-test",
	})
	require.NoError(t, err)

	var got []string
	for res := range stream {
		require.NoError(t, res.Err)
		require.True(t, res.Chunk.HasContent(), "a content-free chunk leaked through")
		got = append(got, res.Chunk.Content)
	}
	assert.Equal(t, []string{"Squawk! ", "3"}, got)

	// The second round carried the tool observation back to the model.
	require.Len(t, transport.bodies, 2)
	var second struct {
		Messages []struct {
			Role       string `json:"role"`
			Content    string `json:"content"`
			ToolCallID string `json:"tool_call_id"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(transport.bodies[1], &second))
	var sawObservation bool
	for _, m := range second.Messages {
		if m.Role == "tool" && m.Content == "3" && m.ToolCallID == "call_1" {
			sawObservation = true
		}
	}
	assert.True(t, sawObservation, "tool result missing from follow-up round")
}

func TestAgentStreamUsesParrotPersonaByDefault(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		sseResponse(`{"choices":[{"delta":{"content":"Squawk!"}}]}`),
	}}
	d := newTestDispatcher(transport)

	stream, err := d.AgentStream(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	for range stream {
	}

	body := string(transport.bodies[0])
	assert.Contains(t, body, "talking parrot named Polly")
}

func TestAgentStreamHonorsSystemPromptOverride(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		sseResponse(`{"choices":[{"delta":{"content":"Ahoy"}}]}`),
	}}
	d := newTestDispatcher(transport)

	stream, err := d.AgentStream(context.Background(), &api.ChatRequest{
		Messages:     []api.ChatMessage{{Role: "user", Content: "hi"}},
		APIKey:       "sk-test",
		SystemPrompt: "You are a pirate.",
	})
	require.NoError(t, err)
	for range stream {
	}

	body := string(transport.bodies[0])
	assert.Contains(t, body, "You are a pirate.")
	assert.NotContains(t, body, "Polly")
}

func TestAgentTranscriptPreservesGenerationOrder(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","function":{"name":"calculator","arguments":"{\"input\":\"2 + 2\"}"}}]},"finish_reason":"tool_calls"}]}`),
		jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Squawk! The answer is 4."},"finish_reason":"stop"}]}`),
	}}
	d := newTestDispatcher(transport)

	resp, err := d.AgentTranscript(context.Background(), &api.ChatRequest{
		Messages:              []api.ChatMessage{{Role: "user", Content: "What is 2 + 2?"}},
		APIKey:                "sk-test",
		ShowIntermediateSteps: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 4)

	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "What is 2 + 2?", resp.Messages[0].Content)

	assert.Equal(t, "assistant", resp.Messages[1].Role)
	require.Len(t, resp.Messages[1].ToolCalls, 1)
	assert.Equal(t, "calculator", resp.Messages[1].ToolCalls[0].Name)

	assert.Equal(t, "tool", resp.Messages[2].Role)
	assert.Equal(t, "4", resp.Messages[2].Content)
	assert.Equal(t, "call_1", resp.Messages[2].ToolCallID)
	assert.Equal(t, "calculator", resp.Messages[2].Name)

	assert.Equal(t, "assistant", resp.Messages[3].Role)
	assert.Equal(t, "Squawk! The answer is 4.", resp.Messages[3].Content)
	assert.Empty(t, resp.Messages[3].ToolCalls)
}

func TestAgentRunDropsIntermediateDisplayMessages(t *testing.T) {
	d := newTestDispatcher(&scriptedTransport{})
	run := d.newAgentRun(&api.ChatRequest{
		Messages: []api.ChatMessage{
			{Role: "user", Content: "question"},
			{Role: "system", Content: "displayed step"},
			{Role: "tool", Content: "displayed observation"},
			{Role: "assistant", Content: "answer"},
		},
	})
	require.Len(t, run.conversation, 2)
	assert.Equal(t, "user", run.conversation[0].Role)
	assert.Equal(t, "assistant", run.conversation[1].Role)
}

func TestStructuredOutputValid(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","function":{"name":"output_formatter","arguments":"{\"tone\":\"positive\",\"entity\":\"Go\",\"word_count\":5,\"chat_response\":\"Nice input!\",\"final_punctuation\":\"!\"}"}}]},"finish_reason":"tool_calls"}]}`),
	}}
	d := newTestDispatcher(transport)

	out, err := d.Structured(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "I love Go!"}},
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, "positive", out.Tone)
	assert.Equal(t, "Go", out.Entity)
	require.NotNil(t, out.WordCount)
	assert.Equal(t, 5.0, *out.WordCount)
	assert.Equal(t, "Nice input!", out.ChatResponse)
	require.NotNil(t, out.FinalPunctuation)
	assert.Equal(t, "!", *out.FinalPunctuation)
}

func TestStructuredOutputRejectsWrongTypes(t *testing.T) {
	transport := &scriptedTransport{script: []*http.Response{
		jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","function":{"name":"output_formatter","arguments":"{\"tone\":\"positive\",\"entity\":\"Go\",\"word_count\":\"five\",\"chat_response\":\"Nice!\"}"}}]},"finish_reason":"tool_calls"}]}`),
	}}
	d := newTestDispatcher(transport)

	_, err := d.Structured(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "I love Go!"}},
		APIKey:   "sk-test",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, api.StatusOf(err))
}

func TestDecodeStructuredEnforcesToneEnum(t *testing.T) {
	_, err := decodeStructured(`{"tone":"ecstatic","entity":"Go","word_count":3,"chat_response":"ok"}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, api.StatusOf(err))
}

func TestDecodeStructuredRejectsUnknownFields(t *testing.T) {
	_, err := decodeStructured(`{"tone":"neutral","entity":"Go","word_count":3,"chat_response":"ok","mood":"sly"}`)
	require.Error(t, err)
}

func TestStructuredSchemaShape(t *testing.T) {
	schema := structuredOutputSchema()
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, field := range []string{"tone", "entity", "word_count", "chat_response", "final_punctuation"} {
		assert.Contains(t, props, field)
	}

	tone, ok := props["tone"].(map[string]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"positive", "negative", "neutral"}, tone["enum"])
}
