package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv
const (
	EnvProvider     = "STUDYSEARCH_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int // 0 disables caching
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var inner Embedder
	var err error

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		inner, err = NewOpenAIProvider(cfg.APIKey)
	case ProviderJina:
		inner, err = NewJinaProvider(cfg.APIKey)
	case ProviderLocal:
		inner, err = NewLocalProvider()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		return NewCached(inner, cfg.CacheSize), nil
	}
	return inner, nil
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. STUDYSEARCH_EMBEDDING_PROVIDER (openai, jina, local)
//  2. Available API keys: OPENAI_API_KEY, then JINA_API_KEY
//  3. Local provider as last resort
func NewFromEnv() (Embedder, error) {
	provider := DetectProvider()

	var apiKey string
	switch provider {
	case ProviderOpenAI:
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	case ProviderJina:
		apiKey = os.Getenv(EnvJinaAPIKey)
	}

	return New(Config{
		Provider:  provider,
		APIKey:    apiKey,
		CacheSize: DefaultCacheSize,
	})
}

// DetectProvider returns the provider NewFromEnv would choose
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}

	return ProviderLocal
}
