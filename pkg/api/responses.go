package api

// ErrorResponse is the failure envelope every endpoint uses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TranscriptResponse is returned by agent mode when intermediate steps were
// requested: the full run, tool calls and their results included, in
// generation order.
type TranscriptResponse struct {
	Messages []ChatMessage `json:"messages"`
}

// ProbeResponse is the success body of the credential-test endpoint.
type ProbeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ProviderInfo describes one catalog entry for the settings UI.
type ProviderInfo struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Models []ModelInfo `json:"models"`
}

// ModelInfo describes one model under a provider.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MaxTokens     int    `json:"max_tokens,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
}
