package types

// ModelInfo describes the model behind an LLM provider.
type ModelInfo struct {
	// Provider is the provider family, e.g. "anthropic" or "openai".
	Provider string

	// Name is the model identifier sent on requests.
	Name string

	// MaxTokens is the completion token limit requested per turn.
	MaxTokens int

	// ContextWindow is the total context size of the model in tokens.
	ContextWindow int

	// SupportsStreaming indicates whether the provider streams responses.
	SupportsStreaming bool

	// Metadata holds provider-specific details such as overridden base URLs.
	Metadata map[string]interface{}
}
