package llm

import "context"

// Client is a live handle bound to one provider, model, and credential.
// Instances are built fresh for each inbound request and never shared:
// every request may carry a different credential.
type Client interface {
	// Chat performs one completion and returns the full response.
	Chat(ctx context.Context, req *Request) (*Response, error)
	// Stream performs one completion and delivers it chunk by chunk.
	// The channel closes when the upstream stream ends.
	Stream(ctx context.Context, req *Request) (<-chan StreamResult, error)
}

// Request is the dialect-neutral invocation shape. The client translates it
// to its provider's wire format.
type Request struct {
	Messages []Message
	System   string

	// Tools the model may call. Empty means plain completion.
	Tools []ToolSpec

	// ResponseSchema forces the model's answer through a declared JSON
	// schema (structured-output mode). Mutually exclusive with Tools.
	ResponseSchema *ResponseSchema

	MaxTokens   int
	Temperature float64
}

// Message is one turn in the conversation sent upstream.
type Message struct {
	Role    string // user, assistant, system, tool
	Content string

	// Assistant messages that requested tool invocations.
	ToolCalls []ToolCall
	// Tool messages answering a call.
	ToolCallID string
	Name       string
}

// ToolSpec describes one callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema object
}

// ToolCall is a complete tool invocation decision from the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON string
}

// ResponseSchema declares the shape a structured-output answer must take.
type ResponseSchema struct {
	Name   string
	Schema map[string]interface{} // JSON Schema object
}

// Response is a complete, non-streamed answer.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *Usage
}

// Usage reports token counts when the provider supplies them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Chunk is one streamed increment. A chunk may carry user-visible content,
// a fragment of a tool-call decision, or only a finish marker.
type Chunk struct {
	Content      string
	ToolCalls    []ToolCallDelta
	FinishReason string
	Usage        *Usage
}

// HasContent reports whether the chunk carries user-visible text.
func (c *Chunk) HasContent() bool {
	return c != nil && c.Content != ""
}

// ToolCallDelta is a partial tool call as providers stream it. Fragments
// with the same Index belong to the same call; Arguments concatenate in
// arrival order.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamResult is one item of a streamed completion.
type StreamResult struct {
	Chunk *Chunk
	Err   error
}
