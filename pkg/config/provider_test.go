package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/entrhq/webforge/pkg/llm/anthropic"
	"github.com/entrhq/webforge/pkg/llm/openai"
)

// clearProviderEnv removes every provider-related environment variable for
// the duration of the test so precedence cases start from a clean slate.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "OPENAI_API_KEY", "OPENAI_BASE_URL"} {
		if v, ok := os.LookupEnv(key); ok {
			key, v := key, v
			t.Cleanup(func() { os.Setenv(key, v) })
			os.Unsetenv(key)
		}
	}
}

// resetGlobalConfig drops the global manager so BuildProvider sees no
// config file unless the test initializes one.
func resetGlobalConfig(t *testing.T) {
	t.Helper()
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
	t.Cleanup(func() {
		globalMu.Lock()
		globalManager = nil
		globalMu.Unlock()
	})
}

func TestBuildProvider(t *testing.T) {
	tests := []struct {
		name           string
		cliProvider    string
		cliModel       string
		cliBaseURL     string
		cliAPIKey      string
		env            map[string]string
		expectError    bool
		expectedModel  string
		expectedAPIKey string
		expectedURL    string
	}{
		{
			name:        "CLI flags take precedence over env",
			cliModel:    "claude-opus-4",
			cliBaseURL:  "https://cli.example.com",
			cliAPIKey:   "cli-key",
			env:         map[string]string{"ANTHROPIC_API_KEY": "env-key", "ANTHROPIC_BASE_URL": "https://env.example.com"},
			expectError: false,

			expectedModel:  "claude-opus-4",
			expectedAPIKey: "cli-key",
			expectedURL:    "https://cli.example.com",
		},
		{
			name:        "environment variables used when CLI empty",
			env:         map[string]string{"ANTHROPIC_API_KEY": "env-key", "ANTHROPIC_BASE_URL": "https://env.example.com"},
			expectError: false,

			expectedModel:  anthropic.DefaultModel,
			expectedAPIKey: "env-key",
			expectedURL:    "https://env.example.com",
		},
		{
			name:        "error when no API key provided",
			expectError: true,
		},
		{
			name:        "openai provider reads its own env keys",
			cliProvider: ProviderOpenAI,
			env:         map[string]string{"OPENAI_API_KEY": "oai-key", "ANTHROPIC_API_KEY": "wrong-key"},
			expectError: false,

			expectedModel:  openai.DefaultModel,
			expectedAPIKey: "oai-key",
			expectedURL:    openai.DefaultBaseURL,
		},
		{
			name:        "unknown provider is rejected",
			cliProvider: "bedrock",
			cliAPIKey:   "some-key",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			resetGlobalConfig(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			provider, err := BuildProvider(tt.cliProvider, tt.cliModel, tt.cliBaseURL, tt.cliAPIKey)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildProvider failed: %v", err)
			}

			if provider.GetModel() != tt.expectedModel {
				t.Errorf("model = %q, want %q", provider.GetModel(), tt.expectedModel)
			}
			if provider.GetAPIKey() != tt.expectedAPIKey {
				t.Errorf("api key = %q, want %q", provider.GetAPIKey(), tt.expectedAPIKey)
			}
			if tt.expectedURL != "" && provider.GetBaseURL() != tt.expectedURL {
				t.Errorf("base url = %q, want %q", provider.GetBaseURL(), tt.expectedURL)
			}
		})
	}
}

func TestBuildProviderUsesConfigFile(t *testing.T) {
	clearProviderEnv(t)
	resetGlobalConfig(t)

	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := Initialize(configPath); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	llmSection := GetLLM()
	llmSection.Provider = ProviderOpenAI
	llmSection.Model = "gpt-4o-mini"
	llmSection.BaseURL = "https://file.example.com/v1"
	llmSection.APIKey = "file-key"
	llmSection.MaxTokens = 2048

	provider, err := BuildProvider("", "", "", "")
	if err != nil {
		t.Fatalf("BuildProvider failed: %v", err)
	}

	if _, ok := provider.(*openai.Provider); !ok {
		t.Fatalf("provider type = %T, want *openai.Provider", provider)
	}
	if provider.GetModel() != "gpt-4o-mini" {
		t.Errorf("model = %q, want config file value", provider.GetModel())
	}
	if provider.GetBaseURL() != "https://file.example.com/v1" {
		t.Errorf("base url = %q, want config file value", provider.GetBaseURL())
	}
	if provider.GetAPIKey() != "file-key" {
		t.Errorf("api key = %q, want config file value", provider.GetAPIKey())
	}
}

func TestBuildProviderCLIOverridesConfigFile(t *testing.T) {
	clearProviderEnv(t)
	resetGlobalConfig(t)

	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := Initialize(configPath); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	llmSection := GetLLM()
	llmSection.Model = "file-model"
	llmSection.APIKey = "file-key"

	provider, err := BuildProvider(ProviderAnthropic, "cli-model", "", "cli-key")
	if err != nil {
		t.Fatalf("BuildProvider failed: %v", err)
	}

	if _, ok := provider.(*anthropic.Provider); !ok {
		t.Fatalf("provider type = %T, want *anthropic.Provider", provider)
	}
	if provider.GetModel() != "cli-model" {
		t.Errorf("model = %q, CLI flag must win", provider.GetModel())
	}
	if provider.GetAPIKey() != "cli-key" {
		t.Errorf("api key = %q, CLI flag must win", provider.GetAPIKey())
	}
}

func TestBuildProviderConfigModelOverridesDefaultCLI(t *testing.T) {
	clearProviderEnv(t)
	resetGlobalConfig(t)

	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := Initialize(configPath); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	llmSection := GetLLM()
	llmSection.Model = "file-model"
	llmSection.APIKey = "file-key"

	// A CLI model equal to the provider default is treated as unset, so
	// the config file value wins.
	provider, err := BuildProvider("", anthropic.DefaultModel, "", "")
	if err != nil {
		t.Fatalf("BuildProvider failed: %v", err)
	}
	if provider.GetModel() != "file-model" {
		t.Errorf("model = %q, want config file to override default CLI model", provider.GetModel())
	}
}

func TestBuildProviderMissingKeyErrorNamesEnvVar(t *testing.T) {
	clearProviderEnv(t)
	resetGlobalConfig(t)

	_, err := BuildProvider(ProviderOpenAI, "", "", "")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error %q should name OPENAI_API_KEY", err)
	}

	_, err = BuildProvider(ProviderAnthropic, "", "", "")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("error %q should name ANTHROPIC_API_KEY", err)
	}
}
