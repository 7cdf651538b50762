package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	defaultMaxTokens = 4096
)

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient httpclient.HTTPClient
}

// Client speaks the Anthropic messages dialect.
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

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use blocks
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type wireRequest struct {
	Model      string        `json:"model"`
	Messages   []wireMessage `json:"messages"`
	System     string        `json:"system,omitempty"`
	MaxTokens  int           `json:"max_tokens"`
	Tools      []wireTool    `json:"tools,omitempty"`
	ToolChoice interface{}   `json:"tool_choice,omitempty"`
	Stream     bool          `json:"stream,omitempty"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Content    []wireContent `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      wireUsage     `json:"usage"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index,omitempty"`
	ContentBlock *wireContent `json:"content_block,omitempty"`
	Delta        *streamDelta `json:"delta,omitempty"`
	Usage        *wireUsage   `json:"usage,omitempty"`
	Message      *struct {
		Usage wireUsage `json:"usage"`
	} `json:"message,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

func (c *Client) buildRequest(req *llm.Request, stream bool) wireRequest {
	wr := wireRequest{
		Model:     c.opts.Model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if wr.MaxTokens == 0 {
		wr.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			// Anthropic takes system content out of band.
			if wr.System != "" {
				wr.System += "\n"
			}
			wr.System += m.Content
		case "tool":
			wr.Messages = append(wr.Messages, wireMessage{
				Role: "user",
				Content: []wireContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case "assistant":
			var blocks []wireContent
			if m.Content != "" {
				blocks = append(blocks, wireContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, wireContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			if len(blocks) > 0 {
				wr.Messages = append(wr.Messages, wireMessage{Role: "assistant", Content: blocks})
			}
		default:
			wr.Messages = append(wr.Messages, wireMessage{
				Role:    "user",
				Content: []wireContent{{Type: "text", Text: m.Content}},
			})
		}
	}

	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	if req.ResponseSchema != nil {
		wr.Tools = append(wr.Tools, wireTool{Name: req.ResponseSchema.Name, InputSchema: req.ResponseSchema.Schema})
		wr.ToolChoice = map[string]string{"type": "tool", "name": req.ResponseSchema.Name}
	}

	return wr
}

func (c *Client) url() string {
	return fmt.Sprintf("%s/messages", strings.TrimRight(c.opts.BaseURL, "/"))
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.opts.APIKey,
		"anthropic-version": apiVersion,
	}
}

func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var resp wireResponse
	if err := httpclient.SendRequest(ctx, c.client, "POST", c.url(), c.headers(), c.buildRequest(req, false), &resp); err != nil {
		return nil, normalizeError(err)
	}

	out := &llm.Response{
		FinishReason: resp.StopReason,
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}
	if req.ResponseSchema != nil && len(out.ToolCalls) > 0 {
		out.Content = out.ToolCalls[0].Arguments
		out.ToolCalls = nil
	}

	return out, nil
}

func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	ch := make(chan llm.StreamResult)

	go func() {
		defer close(ch)

		// Tool-use blocks arrive as a start event plus json fragments;
		// they are tracked per block index and emitted as deltas so the
		// consumer accumulates them the same way for every dialect.
		type pending struct {
			id   string
			name string
		}
		open := make(map[int]pending)

		emit := func(chunk *llm.Chunk) error {
			select {
			case ch <- llm.StreamResult{Chunk: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := httpclient.StreamRequest(ctx, c.client, "POST", c.url(), c.headers(), c.buildRequest(req, true), func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				return nil
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					return emit(&llm.Chunk{Usage: &llm.Usage{PromptTokens: event.Message.Usage.InputTokens}})
				}
			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					open[event.Index] = pending{id: event.ContentBlock.ID, name: event.ContentBlock.Name}
					return emit(&llm.Chunk{ToolCalls: []llm.ToolCallDelta{{
						Index: event.Index,
						ID:    event.ContentBlock.ID,
						Name:  event.ContentBlock.Name,
					}}})
				}
			case "content_block_delta":
				if event.Delta == nil {
					return nil
				}
				switch event.Delta.Type {
				case "text_delta":
					return emit(&llm.Chunk{Content: event.Delta.Text})
				case "input_json_delta":
					if _, ok := open[event.Index]; ok {
						return emit(&llm.Chunk{ToolCalls: []llm.ToolCallDelta{{
							Index:     event.Index,
							Arguments: event.Delta.PartialJSON,
						}}})
					}
				}
			case "message_delta":
				if event.Usage != nil {
					return emit(&llm.Chunk{Usage: &llm.Usage{CompletionTokens: event.Usage.OutputTokens}})
				}
			case "message_stop":
				return emit(&llm.Chunk{FinishReason: "stop"})
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

type upstreamErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

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
