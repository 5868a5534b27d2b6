// Package config loads scout settings with viper and builds the engine from
// them.
package config

import (
	"strings"
	"time"

	"github.com/go-go-golems/scout/pkg/actions"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/go-go-golems/scout/pkg/widgets"
	clone "github.com/huandu/go-clone/generic"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "scout"

type EmbeddingsSettings struct {
	// Provider is "openai" or "ollama". Empty disables upload search.
	Provider   string `mapstructure:"provider" yaml:"provider"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Model      string `mapstructure:"model" yaml:"model"`
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions"`
	CacheSize  int    `mapstructure:"cache_size" yaml:"cache_size"`
}

type SearchSettings struct {
	SearxNGURL string `mapstructure:"searxng_url" yaml:"searxng_url"`
	Language   string `mapstructure:"language" yaml:"language"`
}

type UploadsSettings struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	ChunkTokens   int    `mapstructure:"chunk_tokens" yaml:"chunk_tokens"`
	OverlapTokens int    `mapstructure:"overlap_tokens" yaml:"overlap_tokens"`
	TopK          int    `mapstructure:"top_k" yaml:"top_k"`
}

type StoreSettings struct {
	// Driver is "memory", "sqlite3" or "pgx".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type AgentSettings struct {
	Mode               string   `mapstructure:"mode" yaml:"mode"`
	Sources            []string `mapstructure:"sources" yaml:"sources"`
	SystemInstructions string   `mapstructure:"system_instructions" yaml:"system_instructions"`
	Suggestions        bool     `mapstructure:"suggestions" yaml:"suggestions"`
	SuggestionCount    int      `mapstructure:"suggestion_count" yaml:"suggestion_count"`
}

type Settings struct {
	LLM        llm.OpenAISettings      `mapstructure:"llm" yaml:"llm"`
	Embeddings EmbeddingsSettings      `mapstructure:"embeddings" yaml:"embeddings"`
	Search     SearchSettings          `mapstructure:"search" yaml:"search"`
	Uploads    UploadsSettings         `mapstructure:"uploads" yaml:"uploads"`
	Store      StoreSettings           `mapstructure:"store" yaml:"store"`
	Scrape     actions.ScraperSettings `mapstructure:"scrape" yaml:"scrape"`
	Widgets    widgets.URLs            `mapstructure:"widgets" yaml:"widgets"`
	Agent      AgentSettings           `mapstructure:"agent" yaml:"agent"`
}

var defaults = map[string]any{
	"llm.api_key":                 "",
	"llm.base_url":                "",
	"llm.model":                   "gpt-4o-mini",
	"llm.max_tokens":              0,
	"embeddings.provider":         "",
	"embeddings.base_url":         "",
	"embeddings.api_key":          "",
	"embeddings.model":            "text-embedding-3-small",
	"embeddings.dimensions":       1536,
	"embeddings.cache_size":       1000,
	"search.searxng_url":          "http://localhost:8080",
	"search.language":             "en",
	"uploads.dir":                 "",
	"uploads.chunk_tokens":        512,
	"uploads.overlap_tokens":      64,
	"uploads.top_k":               0,
	"store.driver":                "memory",
	"store.dsn":                   "",
	"scrape.max_tokens":           actions.DefaultScrapeMaxTokens,
	"scrape.blocked_domains":      []string{},
	"scrape.timeout":              20 * time.Second,
	"scrape.allow_local_networks": false,
	"widgets.geocoding_url":       "",
	"widgets.forecast_url":        "",
	"widgets.yahoo_url":           "",
	"agent.mode":                  string(turns.ModeBalanced),
	"agent.sources":               []string{string(turns.SourceWeb)},
	"agent.system_instructions":   "",
	"agent.suggestions":           false,
	"agent.suggestion_count":      4,
}

// SetDefaults registers every known key so that environment overrides apply
// even when the config file omits the key.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// NewViper returns a viper instance reading SCOUT_* environment variables,
// e.g. SCOUT_LLM_API_KEY for llm.api_key.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// ReadConfigFile loads path, or $HOME/.scout/config.yaml and ./config.yaml
// when path is empty. A missing default file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.scout")
		v.AddConfigPath(".")
	}
	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return errors.Wrap(err, "read config")
}

func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return s, nil
}

// Clone returns a deep copy that can be modified by command flags.
func (s *Settings) Clone() *Settings {
	return clone.Clone(s)
}

// TurnConfig is the per-turn configuration derived from the agent settings.
func (s *Settings) TurnConfig() turns.Config {
	sources := make([]turns.Source, 0, len(s.Agent.Sources))
	for _, src := range s.Agent.Sources {
		src = strings.ToLower(strings.TrimSpace(src))
		if src != "" {
			sources = append(sources, turns.Source(src))
		}
	}
	return turns.Config{
		Mode:               turns.ParseMode(s.Agent.Mode),
		Sources:            sources,
		SystemInstructions: s.Agent.SystemInstructions,
		Suggestions:        s.Agent.Suggestions,
	}
}
