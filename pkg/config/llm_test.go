package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMSection(t *testing.T) {
	section := NewLLMSection()
	assert.NotNil(t, section)
	assert.Equal(t, "", section.Provider)
	assert.Equal(t, "", section.Model)
	assert.Equal(t, "", section.BaseURL)
	assert.Equal(t, "", section.APIKey)
	assert.Equal(t, 0, section.MaxTokens)
}

func TestLLMSection_ID(t *testing.T) {
	section := NewLLMSection()
	assert.Equal(t, SectionIDLLM, section.ID())
	assert.Equal(t, "llm", section.ID())
}

func TestLLMSection_Title(t *testing.T) {
	section := NewLLMSection()
	assert.Equal(t, "LLM Settings", section.Title())
}

func TestLLMSection_Description(t *testing.T) {
	section := NewLLMSection()
	desc := section.Description()
	assert.NotEmpty(t, desc)
	assert.Contains(t, desc, "provider")
}

func TestLLMSection_Data(t *testing.T) {
	section := NewLLMSection()
	section.Provider = ProviderAnthropic
	section.Model = "claude-sonnet-4-20250514"
	section.BaseURL = "https://api.anthropic.com"
	section.APIKey = "sk-test123"
	section.MaxTokens = 4096

	data := section.Data()
	assert.Equal(t, "anthropic", data["provider"])
	assert.Equal(t, "claude-sonnet-4-20250514", data["model"])
	assert.Equal(t, "https://api.anthropic.com", data["base_url"])
	assert.Equal(t, "sk-test123", data["api_key"])
	assert.Equal(t, 4096, data["max_tokens"])
}

func TestLLMSection_SetData(t *testing.T) {
	tests := []struct {
		name            string
		data            map[string]any
		expectProvider  string
		expectModel     string
		expectURL       string
		expectKey       string
		expectMaxTokens int
	}{
		{
			name: "valid data",
			data: map[string]any{
				"provider":   "openai",
				"model":      "gpt-4o",
				"base_url":   "https://custom.api.com",
				"api_key":    "sk-custom",
				"max_tokens": 2048,
			},
			expectProvider:  "openai",
			expectModel:     "gpt-4o",
			expectURL:       "https://custom.api.com",
			expectKey:       "sk-custom",
			expectMaxTokens: 2048,
		},
		{
			name: "partial data retains existing values",
			data: map[string]any{
				"model": "claude-opus-4",
			},
			expectProvider:  "anthropic",
			expectModel:     "claude-opus-4",
			expectURL:       "https://existing.api",
			expectKey:       "sk-existing",
			expectMaxTokens: 1024,
		},
		{
			name: "max_tokens decoded from JSON float64",
			data: map[string]any{
				"max_tokens": float64(8192),
			},
			expectProvider:  "anthropic",
			expectModel:     "existing-model",
			expectURL:       "https://existing.api",
			expectKey:       "sk-existing",
			expectMaxTokens: 8192,
		},
		{
			name: "wrong types are ignored",
			data: map[string]any{
				"model":      42,
				"base_url":   true,
				"max_tokens": "many",
			},
			expectProvider:  "anthropic",
			expectModel:     "existing-model",
			expectURL:       "https://existing.api",
			expectKey:       "sk-existing",
			expectMaxTokens: 1024,
		},
		{
			name:            "nil data is a no-op",
			data:            nil,
			expectProvider:  "anthropic",
			expectModel:     "existing-model",
			expectURL:       "https://existing.api",
			expectKey:       "sk-existing",
			expectMaxTokens: 1024,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := NewLLMSection()
			section.Provider = ProviderAnthropic
			section.Model = "existing-model"
			section.BaseURL = "https://existing.api"
			section.APIKey = "sk-existing"
			section.MaxTokens = 1024

			err := section.SetData(tt.data)
			require.NoError(t, err)

			assert.Equal(t, tt.expectProvider, section.GetProvider())
			assert.Equal(t, tt.expectModel, section.GetModel())
			assert.Equal(t, tt.expectURL, section.GetBaseURL())
			assert.Equal(t, tt.expectKey, section.GetAPIKey())
			assert.Equal(t, tt.expectMaxTokens, section.GetMaxTokens())
		})
	}
}

func TestLLMSection_Validate(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		maxTokens   int
		expectError bool
	}{
		{name: "empty provider is valid", provider: "", expectError: false},
		{name: "anthropic provider is valid", provider: ProviderAnthropic, expectError: false},
		{name: "openai provider is valid", provider: ProviderOpenAI, expectError: false},
		{name: "unknown provider is rejected", provider: "bedrock", expectError: true},
		{name: "negative max_tokens is rejected", provider: ProviderAnthropic, maxTokens: -1, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := NewLLMSection()
			section.Provider = tt.provider
			section.MaxTokens = tt.maxTokens

			err := section.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLLMSection_Reset(t *testing.T) {
	section := NewLLMSection()
	section.Provider = ProviderOpenAI
	section.Model = "gpt-4o"
	section.BaseURL = "https://custom.api.com"
	section.APIKey = "sk-custom"
	section.MaxTokens = 2048

	section.Reset()

	assert.Equal(t, "", section.GetProvider())
	assert.Equal(t, "", section.GetModel())
	assert.Equal(t, "", section.GetBaseURL())
	assert.Equal(t, "", section.GetAPIKey())
	assert.Equal(t, 0, section.GetMaxTokens())
}

func TestLLMSection_DataRoundTrip(t *testing.T) {
	source := NewLLMSection()
	source.Provider = ProviderOpenAI
	source.Model = "gpt-4o-mini"
	source.BaseURL = "https://gateway.internal/v1"
	source.APIKey = "sk-roundtrip"
	source.MaxTokens = 512

	dest := NewLLMSection()
	require.NoError(t, dest.SetData(source.Data()))

	assert.Equal(t, source.GetProvider(), dest.GetProvider())
	assert.Equal(t, source.GetModel(), dest.GetModel())
	assert.Equal(t, source.GetBaseURL(), dest.GetBaseURL())
	assert.Equal(t, source.GetAPIKey(), dest.GetAPIKey())
	assert.Equal(t, source.GetMaxTokens(), dest.GetMaxTokens())
}
