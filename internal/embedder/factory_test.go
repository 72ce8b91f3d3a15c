package embedder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithLocalProvider(t *testing.T) {
	emb, err := New(Config{Provider: "local"})
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()

	assert.Equal(t, ProviderLocal, emb.Provider())
	_, isCached := emb.(*Cached)
	assert.False(t, isCached)
}

func TestNewWrapsCacheWhenConfigured(t *testing.T) {
	emb, err := New(Config{Provider: "local", CacheSize: 100})
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()

	_, isCached := emb.(*Cached)
	assert.True(t, isCached)
	assert.Equal(t, ProviderLocal, emb.Provider())
	assert.Equal(t, LocalDimension, emb.Dimension())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "huggingbase"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewRequiresAPIKeyForHostedProviders(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: "jina"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestDetectProviderExplicit(t *testing.T) {
	t.Setenv(EnvProvider, "JINA")
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	assert.Equal(t, ProviderJina, DetectProvider())
}

func TestDetectProviderFromKeys(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	t.Setenv(EnvJinaAPIKey, "")

	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvJinaAPIKey, "jina-test")
	assert.Equal(t, ProviderJina, DetectProvider())

	t.Setenv(EnvJinaAPIKey, "")
	assert.Equal(t, ProviderLocal, DetectProvider())
}

func TestJinaProviderBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultJinaModel, req.Model)

		// Respond out of order to exercise index-based alignment
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.2, 0.2}, "index": 1},
				{"embedding": []float32{0.1, 0.1}, "index": 0},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	jina, err := NewJinaProvider("test-key")
	require.NoError(t, err)
	jina.endpoint = server.URL

	vectors, err := jina.EmbedBatch(t.Context(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.2}, vectors[1])
}

func TestJinaProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	jina, err := NewJinaProvider("test-key")
	require.NoError(t, err)
	jina.endpoint = server.URL

	_, err = jina.EmbedBatch(t.Context(), []string{"text"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestBatchSizeLimit(t *testing.T) {
	jina, err := NewJinaProvider("test-key")
	require.NoError(t, err)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "text"
	}

	_, err = jina.EmbedBatch(t.Context(), texts)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}
