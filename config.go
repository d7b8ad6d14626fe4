package geminidev

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers understood by NewOracle.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ValidProviders lists all supported providers.
var ValidProviders = []string{ProviderGemini, ProviderOpenAI}

// Default models per provider.
const (
	DefaultGeminiModel = "gemini-2.5-pro"
	DefaultOpenAIModel = "gpt-4o"
)

// Config holds everything the client needs to reach a provider and to
// present its answers. API keys are only ever read from the environment.
type Config struct {
	Provider          string `yaml:"provider"` // gemini, openai
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	SafetyThreshold   string `yaml:"safety_threshold"`
	SystemInstruction string `yaml:"system_instruction"`

	// HistoryPath, when set, is where the session is dumped as JSON after
	// every command and loaded from before it.
	HistoryPath    string `yaml:"history_path"`
	TranscriptPath string `yaml:"transcript_path"`

	Plain    bool `yaml:"plain"`
	WordWrap int  `yaml:"word_wrap"`

	GoogleAPIKey string `yaml:"-"`
	OpenAIToken  string `yaml:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Provider:          ProviderGemini,
		SafetyThreshold:   "BLOCK_MEDIUM_AND_ABOVE",
		SystemInstruction: DefaultSystemInstruction,
		WordWrap:          100,
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/geminidev/config.yaml or the
// platform equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "geminidev", "config.yaml")
}

// LoadConfig reads a YAML config file over the defaults, loads .env files
// (".env" in the working directory when none are named) and applies
// environment overrides. A missing config file is not an error.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	// .env is optional; variables already set in the environment win
	_ = godotenv.Load(envFiles...)
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.GoogleAPIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.GoogleAPIKey = key
	}
	if token := os.Getenv("OPENAI_TOKEN"); token != "" {
		c.OpenAIToken = token
	} else if token := os.Getenv("OPENAI_API_KEY"); token != "" {
		c.OpenAIToken = token
	}
	if p := os.Getenv("GEMINIDEV_PROVIDER"); p != "" {
		c.Provider = p
	}
	if m := os.Getenv("GEMINIDEV_MODEL"); m != "" {
		c.Model = m
	}
	if h := os.Getenv("GEMINIDEV_HISTORY"); h != "" {
		c.HistoryPath = h
	}
	if t := os.Getenv("GEMINIDEV_TRANSCRIPT"); t != "" {
		c.TranscriptPath = t
	}
}

// ModelName is the configured model or the provider's default.
func (c Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderOpenAI {
		return DefaultOpenAIModel
	}
	return DefaultGeminiModel
}

// Validate checks the provider is known and its credentials are present.
func (c Config) Validate() error {
	if !slices.Contains(ValidProviders, c.Provider) {
		return fmt.Errorf("invalid provider: %q (valid: %v)", c.Provider, ValidProviders)
	}
	if c.Provider == ProviderGemini && c.GoogleAPIKey == "" {
		return errors.New("GOOGLE_API_KEY not found in environment or .env file")
	}
	if c.Provider == ProviderOpenAI && c.OpenAIToken == "" {
		return errors.New("must have OPENAI_TOKEN env var set or pass token explicitly")
	}
	return nil
}
