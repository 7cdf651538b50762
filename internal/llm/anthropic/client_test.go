package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/polly/internal/llm"
)

func TestChatMapsRequestAndResponse(t *testing.T) {
	captured := map[string]interface{}{}
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		fmt.Fprint(w, `{
			"id": "msg_1",
			"content": [
				{"type": "text", "text": "Checking the weather."},
				{"type": "tool_use", "id": "toolu_1", "name": "weather", "input": {"input": "Oslo"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 20, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "sk-ant-test", Model: "claude-3-5-sonnet-20241022", BaseURL: srv.URL, HTTPClient: srv.Client()})
	out, err := client.Chat(context.Background(), &llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "Stay brief."},
			{Role: "user", Content: "weather in Oslo?"},
			{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "toolu_0", Name: "weather", Arguments: `{"input":"Oslo"}`}}},
			{Role: "tool", Content: "sunny", ToolCallID: "toolu_0"},
		},
		Tools: []llm.ToolSpec{{Name: "weather", Description: "Current weather", Parameters: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-test", headers.Get("x-api-key"))
	assert.Equal(t, apiVersion, headers.Get("anthropic-version"))

	// System content rides out of band, never as a message.
	assert.Equal(t, "Stay brief.", captured["system"])
	assert.Equal(t, float64(defaultMaxTokens), captured["max_tokens"])

	msgs := captured["messages"].([]interface{})
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]interface{})
	assert.Equal(t, "assistant", assistant["role"])
	block := assistant["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "tool_use", block["type"])
	assert.Equal(t, "Oslo", block["input"].(map[string]interface{})["input"])
	toolResult := msgs[2].(map[string]interface{})
	assert.Equal(t, "user", toolResult["role"])
	resultBlock := toolResult["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "tool_result", resultBlock["type"])
	assert.Equal(t, "toolu_0", resultBlock["tool_use_id"])
	assert.Equal(t, "sunny", resultBlock["content"])

	assert.Equal(t, "Checking the weather.", out.Content)
	assert.Equal(t, "tool_use", out.FinishReason)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "toolu_1", out.ToolCalls[0].ID)
	assert.JSONEq(t, `{"input":"Oslo"}`, out.ToolCalls[0].Arguments)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 20, out.Usage.PromptTokens)
	assert.Equal(t, 7, out.Usage.CompletionTokens)
}

func TestChatForcesStructuredTool(t *testing.T) {
	captured := map[string]interface{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		fmt.Fprint(w, `{
			"content": [{"type": "tool_use", "id": "toolu_9", "name": "output_formatter", "input": {"tone": "formal"}}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 5, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "sk-ant-test", Model: "claude-3-5-haiku-20241022", BaseURL: srv.URL, HTTPClient: srv.Client()})
	out, err := client.Chat(context.Background(), &llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "format"}},
		ResponseSchema: &llm.ResponseSchema{
			Name:   "output_formatter",
			Schema: map[string]interface{}{"type": "object"},
		},
	})
	require.NoError(t, err)

	choice := captured["tool_choice"].(map[string]interface{})
	assert.Equal(t, "tool", choice["type"])
	assert.Equal(t, "output_formatter", choice["name"])
	tools := captured["tools"].([]interface{})
	require.Len(t, tools, 1)
	assert.Equal(t, "output_formatter", tools[0].(map[string]interface{})["name"])

	assert.JSONEq(t, `{"tone":"formal"}`, out.Content)
	assert.Empty(t, out.ToolCalls)
}

func TestStreamMapsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"type":"message_start","message":{"usage":{"input_tokens":15}}}`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Sure, "}}`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"checking."}}`,
			`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_5","name":"weather"}}`,
			`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"input\":"}}`,
			`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}`,
			`data: {"type":"message_delta","usage":{"output_tokens":11}}`,
			`data: {"type":"message_stop"}`,
		}
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "sk-ant-test", Model: "claude-3-opus-20240229", BaseURL: srv.URL, HTTPClient: srv.Client()})
	stream, err := client.Stream(context.Background(), &llm.Request{Messages: []llm.Message{{Role: "user", Content: "weather?"}}})
	require.NoError(t, err)

	var content, args, id, name, finish string
	usage := llm.Usage{}
	for res := range stream {
		require.NoError(t, res.Err)
		content += res.Chunk.Content
		for _, tc := range res.Chunk.ToolCalls {
			assert.Equal(t, 1, tc.Index)
			args += tc.Arguments
			if tc.ID != "" {
				id, name = tc.ID, tc.Name
			}
		}
		if res.Chunk.Usage != nil {
			usage.PromptTokens += res.Chunk.Usage.PromptTokens
			usage.CompletionTokens += res.Chunk.Usage.CompletionTokens
		}
		if res.Chunk.FinishReason != "" {
			finish = res.Chunk.FinishReason
		}
	}

	assert.Equal(t, "Sure, checking.", content)
	assert.Equal(t, "toolu_5", id)
	assert.Equal(t, "weather", name)
	assert.Equal(t, `{"input":"Oslo"}`, args)
	assert.Equal(t, "stop", finish)
	assert.Equal(t, llm.Usage{PromptTokens: 15, CompletionTokens: 11}, usage)
}

func TestStreamReleasesGoroutineOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"x\"}}\n\n")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "sk-ant-test", Model: "claude-3-5-sonnet-20241022", BaseURL: srv.URL, HTTPClient: srv.Client()})

	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := client.Stream(ctx, &llm.Request{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
		require.NoError(t, err)
		<-stream
		cancel()
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 3*time.Second, 25*time.Millisecond, "stream goroutines should exit once the caller cancels")
}
