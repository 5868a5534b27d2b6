package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/scout/pkg/embeddings"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
llm:
  model: local-model
  base_url: http://localhost:11434/v1
embeddings:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
agent:
  mode: quality
  sources: [web, Academic]
  suggestions: true
scrape:
  blocked_domains: ["*.example.org"]
  timeout: 5s
`

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	t.Setenv("SCOUT_LLM_API_KEY", "secret")
	t.Setenv("SCOUT_STORE_DRIVER", "sqlite3")

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, path))
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "local-model", s.LLM.Model)
	assert.Equal(t, "secret", s.LLM.APIKey)
	assert.Equal(t, "sqlite3", s.Store.Driver)
	assert.Equal(t, "ollama", s.Embeddings.Provider)
	assert.Equal(t, 768, s.Embeddings.Dimensions)
	assert.Equal(t, 1000, s.Embeddings.CacheSize)
	assert.Equal(t, []string{"*.example.org"}, s.Scrape.BlockedDomains)
	assert.Equal(t, 5*time.Second, s.Scrape.Timeout)

	cfg := s.TurnConfig()
	assert.Equal(t, turns.ModeQuality, cfg.Mode)
	assert.Equal(t, []turns.Source{turns.SourceWeb, turns.SourceAcademic}, cfg.Sources)
	assert.True(t, cfg.Suggestions)
}

func TestMissingDefaultConfigIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	v := NewViper()
	require.NoError(t, ReadConfigFile(v, ""))
	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Store.Driver)
	assert.Equal(t, turns.ModeBalanced, s.TurnConfig().Mode)
}

func TestCloneIsIndependent(t *testing.T) {
	s, err := Load(NewViper())
	require.NoError(t, err)
	c := s.Clone()
	c.Agent.Sources[0] = "discussions"
	c.LLM.Model = "other"
	assert.Equal(t, "web", s.Agent.Sources[0])
	assert.NotEqual(t, s.LLM.Model, c.LLM.Model)
}

func TestNewEmbeddings(t *testing.T) {
	p, err := NewEmbeddings(EmbeddingsSettings{})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewEmbeddings(EmbeddingsSettings{Provider: "ollama", Model: "m", Dimensions: 3, CacheSize: 10})
	require.NoError(t, err)
	_, cached := p.(*embeddings.CachedProvider)
	assert.True(t, cached)

	_, err = NewEmbeddings(EmbeddingsSettings{Provider: "nope"})
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	s, err := Load(NewViper())
	require.NoError(t, err)
	s.Uploads.Dir = filepath.Join(t.TempDir(), "uploads")
	s.Embeddings.Provider = "ollama"

	rt, err := Build(s, WithGenerator(&llm.FakeGenerator{}))
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()
	assert.NotNil(t, rt.Agent)
	assert.NotNil(t, rt.Indexer)
	assert.DirExists(t, s.Uploads.Dir)
}

func TestBuildRejectsUnknownStore(t *testing.T) {
	s, err := Load(NewViper())
	require.NoError(t, err)
	s.Store.Driver = "mongo"
	_, err = Build(s, WithGenerator(&llm.FakeGenerator{}))
	assert.Error(t, err)
}
