package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDLLM is the identifier for the LLM settings section
	SectionIDLLM = "llm"

	// ProviderAnthropic selects the Anthropic Messages API transport
	ProviderAnthropic = "anthropic"

	// ProviderOpenAI selects the OpenAI-compatible chat completions transport
	ProviderOpenAI = "openai"
)

// LLMSection manages LLM provider configuration settings.
type LLMSection struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
	mu        sync.RWMutex
}

// NewLLMSection creates a new LLM section with default settings.
func NewLLMSection() *LLMSection {
	return &LLMSection{
		Provider:  "",
		Model:     "",
		BaseURL:   "",
		APIKey:    "",
		MaxTokens: 0,
	}
}

// ID returns the section identifier.
func (s *LLMSection) ID() string {
	return SectionIDLLM
}

// Title returns the section title.
func (s *LLMSection) Title() string {
	return "LLM Settings"
}

// Description returns the section description.
func (s *LLMSection) Description() string {
	return "Configure the model provider. provider is anthropic or openai; base_url overrides the provider endpoint for compatible gateways."
}

// Data returns the current configuration data.
func (s *LLMSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"provider":   s.Provider,
		"model":      s.Model,
		"base_url":   s.BaseURL,
		"api_key":    s.APIKey,
		"max_tokens": s.MaxTokens,
	}
}

// SetData updates the configuration from the provided data.
func (s *LLMSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if provider, ok := data["provider"].(string); ok {
		s.Provider = provider
	}

	if model, ok := data["model"].(string); ok {
		s.Model = model
	}

	if baseURL, ok := data["base_url"].(string); ok {
		s.BaseURL = baseURL
	}

	if apiKey, ok := data["api_key"].(string); ok {
		s.APIKey = apiKey
	}

	// JSON round-trips numbers as float64
	switch v := data["max_tokens"].(type) {
	case int:
		s.MaxTokens = v
	case float64:
		s.MaxTokens = int(v)
	}

	return nil
}

// Validate validates the current configuration.
func (s *LLMSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.Provider {
	case "", ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q: expected %q or %q", s.Provider, ProviderAnthropic, ProviderOpenAI)
	}

	if s.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", s.MaxTokens)
	}

	return nil
}

// Reset resets the section to default configuration.
func (s *LLMSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Provider = ""
	s.Model = ""
	s.BaseURL = ""
	s.APIKey = ""
	s.MaxTokens = 0
}

// GetProvider returns the configured provider name.
func (s *LLMSection) GetProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Provider
}

// GetModel returns the configured model name.
func (s *LLMSection) GetModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

// GetBaseURL returns the configured base URL.
func (s *LLMSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BaseURL
}

// GetAPIKey returns the configured API key.
func (s *LLMSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

// GetMaxTokens returns the configured completion token limit.
func (s *LLMSection) GetMaxTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxTokens
}
