package registry

// Default returns the standard provider catalog. The order here is the order
// the settings UI presents.
func Default() *Registry {
	return New(
		Provider{
			ID:        "openai",
			Name:      "OpenAI",
			KeyEnv:    "OPENAI_API_KEY",
			KeyPrefix: "sk-",
			Dialect:   DialectOpenAI,
			Models: []Model{
				{ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 128000, ContextWindow: 128000},
				{ID: "gpt-4o-mini", Name: "GPT-4o Mini", MaxTokens: 16384, ContextWindow: 16384},
				{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", MaxTokens: 4096, ContextWindow: 4096},
			},
			ProbeViaListing: true,
		},
		Provider{
			ID:        "anthropic",
			Name:      "Anthropic",
			KeyEnv:    "ANTHROPIC_API_KEY",
			KeyPrefix: "sk-ant-",
			Dialect:   DialectAnthropic,
			Models: []Model{
				{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", MaxTokens: 4096, ContextWindow: 200000},
				{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", MaxTokens: 4096, ContextWindow: 200000},
				{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", MaxTokens: 4096, ContextWindow: 200000},
			},
		},
		Provider{
			ID:        "groq",
			Name:      "Groq",
			KeyEnv:    "GROQ_API_KEY",
			KeyPrefix: "gsk_",
			BaseURL:   "https://api.groq.com/openai/v1",
			Dialect:   DialectOpenAI,
			Models: []Model{
				{ID: "llama3-70b-8192", Name: "Llama 3 70B", MaxTokens: 8192, ContextWindow: 8192},
				{ID: "llama3-8b-8192", Name: "Llama 3 8B", MaxTokens: 8192, ContextWindow: 8192},
				{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", MaxTokens: 32768, ContextWindow: 32768},
				{ID: "gemma2-9b-it", Name: "Gemma 2 9B", MaxTokens: 8192, ContextWindow: 8192},
			},
			ProbeModel: "llama3-8b-8192",
		},
		Provider{
			ID:      "google",
			Name:    "Google Gemini",
			KeyEnv:  "GOOGLE_API_KEY",
			Dialect: DialectGoogle,
			Models: []Model{
				{ID: "gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash", MaxTokens: 1048576, ContextWindow: 1048576},
				{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", MaxTokens: 1048576, ContextWindow: 1048576},
				{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", MaxTokens: 1048576, ContextWindow: 1048576},
			},
			ProbeViaListing: true,
		},
		Provider{
			ID:        "deepseek",
			Name:      "DeepSeek",
			KeyEnv:    "DEEPSEEK_API_KEY",
			KeyPrefix: "sk-",
			BaseURL:   "https://api.deepseek.com/v1",
			Dialect:   DialectOpenAI,
			Models: []Model{
				{ID: "deepseek-chat", Name: "DeepSeek Chat", MaxTokens: 32768, ContextWindow: 32768},
				{ID: "deepseek-coder", Name: "DeepSeek Coder", MaxTokens: 32768, ContextWindow: 32768},
				{ID: "deepseek-reasoner", Name: "DeepSeek Reasoner", MaxTokens: 32768, ContextWindow: 32768},
			},
			ProbeModel: "deepseek-chat",
		},
		Provider{
			ID:      "fireworks",
			Name:    "Fireworks AI",
			KeyEnv:  "FIREWORKS_API_KEY",
			BaseURL: "https://api.fireworks.ai/inference/v1",
			Dialect: DialectOpenAI,
			Models: []Model{
				{ID: "llama-v2-7b-chat", Name: "Llama v2 7B Chat", MaxTokens: 4096, ContextWindow: 4096},
				{ID: "llama-v2-13b-chat", Name: "Llama v2 13B Chat", MaxTokens: 4096, ContextWindow: 4096},
				{ID: "llama-v2-70b-chat", Name: "Llama v2 70B Chat", MaxTokens: 4096, ContextWindow: 4096},
			},
			ProbeModel: "accounts/fireworks/models/llama-v2-7b-chat",
		},
	)
}
