package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/polly/internal/httpclient"
	"github.com/nulzo/polly/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Options configure one per-request client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient overrides the transport; nil uses a 60s-timeout default.
	HTTPClient httpclient.HTTPClient
}

// Client speaks the OpenAI chat-completions dialect. It also serves any
// OpenAI-compatible vendor (Groq, DeepSeek, Fireworks) via BaseURL.
type Client struct {
	opts   Options
	client httpclient.HTTPClient
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	c := opts.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{opts: opts, client: c}
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireTool struct {
	Type     string        `json:"type"`
	Function wireToolParam `json:"function"`
}

type wireToolParam struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type wireRequest struct {
	Model         string         `json:"model"`
	Messages      []wireMessage  `json:"messages"`
	Tools         []wireTool     `json:"tools,omitempty"`
	ToolChoice    interface{}    `json:"tool_choice,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role      string         `json:"role"`
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type wireChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Function struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage,omitempty"`
}

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) buildRequest(req *llm.Request, stream bool) wireRequest {
	wr := wireRequest{
		Model:       c.opts.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}

	if req.System != "" {
		wr.Messages = append(wr.Messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: wireFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		wr.Messages = append(wr.Messages, wm)
	}

	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{
			Type:     "function",
			Function: wireToolParam{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	// Structured output rides on a forced function call, same trick the
	// function-calling frameworks use under the hood.
	if req.ResponseSchema != nil {
		wr.Tools = append(wr.Tools, wireTool{
			Type:     "function",
			Function: wireToolParam{Name: req.ResponseSchema.Name, Parameters: req.ResponseSchema.Schema},
		})
		wr.ToolChoice = map[string]interface{}{
			"type":     "function",
			"function": map[string]string{"name": req.ResponseSchema.Name},
		}
	}

	return wr
}

func (c *Client) url() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.opts.BaseURL, "/"))
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.opts.APIKey}
}

func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var resp wireResponse
	if err := httpclient.SendRequest(ctx, c.client, "POST", c.url(), c.headers(), c.buildRequest(req, false), &resp); err != nil {
		return nil, normalizeError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}

	choice := resp.Choices[0]
	out := &llm.Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	// Normalize a forced structured-output call into plain content so
	// callers never need to know how the dialect carried it.
	if req.ResponseSchema != nil && out.Content == "" && len(out.ToolCalls) > 0 {
		out.Content = out.ToolCalls[0].Arguments
		out.ToolCalls = nil
	}
	if resp.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}

	return out, nil
}

func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	ch := make(chan llm.StreamResult)

	wr := c.buildRequest(req, true)
	wr.StreamOptions = &streamOptions{IncludeUsage: true}

	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, c.client, "POST", c.url(), c.headers(), wr, func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return nil
			}

			var wc wireChunk
			if err := json.Unmarshal([]byte(data), &wc); err != nil {
				return nil
			}

			chunk := &llm.Chunk{}
			if wc.Usage != nil {
				chunk.Usage = &llm.Usage{
					PromptTokens:     wc.Usage.PromptTokens,
					CompletionTokens: wc.Usage.CompletionTokens,
				}
			}
			if len(wc.Choices) > 0 {
				choice := wc.Choices[0]
				chunk.Content = choice.Delta.Content
				chunk.FinishReason = choice.FinishReason
				for _, tc := range choice.Delta.ToolCalls {
					chunk.ToolCalls = append(chunk.ToolCalls, llm.ToolCallDelta{
						Index:     tc.Index,
						ID:        tc.ID,
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					})
				}
			}

			select {
			case ch <- llm.StreamResult{Chunk: chunk}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			// The consumer may already be gone; never block on the
			// final send.
			select {
			case ch <- llm.StreamResult{Err: normalizeError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// normalizeError extracts the provider's message from an UpstreamError so the
// dispatcher can surface it verbatim.
func normalizeError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return err
	}

	var apiErr upstreamErrorResponse
	if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
		return &httpclient.UpstreamError{
			StatusCode: upstreamErr.StatusCode,
			Body:       []byte(apiErr.Error.Message),
			URL:        upstreamErr.URL,
		}
	}
	return err
}
