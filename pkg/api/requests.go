package api

// ChatMessage is one turn of the conversation as the browser sends it.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system tool"`
	Content string `json:"content"`

	// Populated on assistant messages that decided to call tools, and on
	// tool messages carrying a result back. Only ever set by the server.
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall records one tool invocation the model asked for.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ChatRequest is the common body for every chat endpoint. The credential
// travels with the request and is never stored beyond its lifetime.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`
	Provider string        `json:"provider,omitempty"`
	Model    string        `json:"model,omitempty"`
	APIKey   string        `json:"apiKey,omitempty"`

	// Agent-mode options.
	SystemPrompt          string `json:"system_prompt,omitempty"`
	ShowIntermediateSteps bool   `json:"show_intermediate_steps,omitempty"`
	ThreadID              string `json:"thread_id,omitempty"`

	// Optional per-request tool credentials. Request values beat env config.
	ExaAPIKey string `json:"exaApiKey,omitempty"`
}

// ProbeRequest is the body for the credential-test endpoint.
type ProbeRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"apiKey" binding:"required"`
}
