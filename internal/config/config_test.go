package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "studysearch.db", cfg.DBPath)
	assert.Equal(t, 10000, cfg.CacheSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studysearch.yml")
	content := []byte(`
db_path: /var/lib/studysearch/index.db
embedding_provider: openai
verbose: true
search:
  fusion_k: 30
  boost_weight: 0.1
ingest:
  chunk_size: 500
  concurrency: 8
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/studysearch/index.db", cfg.DBPath)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 30.0, cfg.Search.FusionK)
	assert.Equal(t, 0.1, cfg.Search.BoostWeight)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 8, cfg.Ingest.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studysearch.yml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: from-file.db\n"), 0644))

	t.Setenv("STUDYSEARCH_DB_PATH", "from-env.db")
	t.Setenv("STUDYSEARCH_SEARCH__FUSION_K", "15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, 15.0, cfg.Search.FusionK)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Search.DecayRate = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Ingest.Concurrency = -2
	assert.Error(t, cfg.Validate())
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
