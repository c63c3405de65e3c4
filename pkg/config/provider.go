package config

import (
	"fmt"
	"os"

	"github.com/entrhq/webforge/pkg/llm"
	"github.com/entrhq/webforge/pkg/llm/anthropic"
	"github.com/entrhq/webforge/pkg/llm/openai"
)

// BuildProvider creates an LLM provider based on configuration precedence:
// CLI flags > Environment variables > Config file > Defaults
func BuildProvider(cliProvider, cliModel, cliBaseURL, cliAPIKey string) (llm.Provider, error) {
	llmConfig := GetLLM()

	// Resolve the provider name first; it decides which environment
	// variables and defaults apply to the remaining settings.
	providerName := cliProvider
	if providerName == "" && llmConfig != nil {
		providerName = llmConfig.GetProvider()
	}
	if providerName == "" {
		providerName = ProviderAnthropic
	}

	envKey, envBaseURL := "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"
	defaultModel := anthropic.DefaultModel
	if providerName == ProviderOpenAI {
		envKey, envBaseURL = "OPENAI_API_KEY", "OPENAI_BASE_URL"
		defaultModel = openai.DefaultModel
	}

	// Start with CLI values (empty strings if not provided)
	finalModel := cliModel
	finalBaseURL := cliBaseURL
	finalAPIKey := cliAPIKey

	// Fall back to environment variables if CLI values are empty
	if finalAPIKey == "" {
		finalAPIKey = os.Getenv(envKey)
	}
	if finalBaseURL == "" {
		finalBaseURL = os.Getenv(envBaseURL)
	}

	// Fall back to config file values next
	maxTokens := 0
	if llmConfig != nil {
		// Model: Use config file only if CLI didn't set a non-default value
		if cliModel == "" || cliModel == defaultModel {
			if configFileModel := llmConfig.GetModel(); configFileModel != "" {
				finalModel = configFileModel
			}
		}
		if finalBaseURL == "" {
			finalBaseURL = llmConfig.GetBaseURL()
		}
		if finalAPIKey == "" {
			finalAPIKey = llmConfig.GetAPIKey()
		}
		maxTokens = llmConfig.GetMaxTokens()
	}

	// Use default model if still not set
	if finalModel == "" {
		finalModel = defaultModel
	}

	// Validate that API key was resolved
	if finalAPIKey == "" {
		return nil, fmt.Errorf("API key is required. Set %s, use -api-key, or set llm.api_key in ~/.webforge/config.json", envKey)
	}

	switch providerName {
	case ProviderAnthropic:
		opts := []anthropic.ProviderOption{anthropic.WithModel(finalModel)}
		if finalBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(finalBaseURL))
		}
		if maxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(maxTokens))
		}
		provider, err := anthropic.NewProvider(finalAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return provider, nil
	case ProviderOpenAI:
		opts := []openai.ProviderOption{openai.WithModel(finalModel)}
		if finalBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(finalBaseURL))
		}
		if maxTokens > 0 {
			opts = append(opts, openai.WithMaxTokens(maxTokens))
		}
		provider, err := openai.NewProvider(finalAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: %s, %s)", providerName, ProviderAnthropic, ProviderOpenAI)
	}
}
