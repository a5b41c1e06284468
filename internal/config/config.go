// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	DB        DBConfig        `mapstructure:"db"`
	RAG       RAGConfig       `mapstructure:"rag"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the directory crawl pipeline.
type CrawlerConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	UserAgent        string `mapstructure:"user_agent"`
	MaxPages         int    `mapstructure:"max_pages"`
	MaxRetries       int    `mapstructure:"max_retries"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	DelayMinMs       int    `mapstructure:"delay_min_ms"`
	DelayMaxMs       int    `mapstructure:"delay_max_ms"`
	DetailLinkLimit  int    `mapstructure:"detail_link_limit"`
	FallbackLocation string `mapstructure:"fallback_location"`
	FallbackDomain   string `mapstructure:"fallback_domain"`
}

// CacheConfig sets where crawl results live and how long the memory layer is
// trusted.
type CacheConfig struct {
	Dir              string `mapstructure:"dir"`
	MemoryTTLSeconds int    `mapstructure:"memory_ttl_seconds"`
}

// DBConfig controls the optional curated-records database. An empty DSN keeps
// the service on the no-op provider.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RAGConfig configures chunking and the embedding boundary.
type RAGConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap"`
	BatchSize      int    `mapstructure:"batch_size"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
}

// LLMConfig configures the chat completion boundary.
type LLMConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
}

// MatcherConfig tunes keyword scoring.
type MatcherConfig struct {
	NameWeight        int  `mapstructure:"name_weight"`
	DescriptionWeight int  `mapstructure:"description_weight"`
	TagWeight         int  `mapstructure:"tag_weight"`
	DomainWeight      int  `mapstructure:"domain_weight"`
	LocationWeight    int  `mapstructure:"location_weight"`
	RandomFallback    bool `mapstructure:"random_fallback"`
}

// SchedulerConfig controls the background recrawl task.
type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DailyAt string `mapstructure:"daily_at"`
	UseCron bool   `mapstructure:"use_cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.base_url", "https://lafrenchtech-lareunion.com/annuaire/")
	v.SetDefault("crawler.user_agent", "startup-matcher-bot/1.0")
	v.SetDefault("crawler.max_pages", 10)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.delay_min_ms", 1000)
	v.SetDefault("crawler.delay_max_ms", 3000)
	v.SetDefault("crawler.detail_link_limit", 10)
	v.SetDefault("crawler.fallback_location", "La Réunion")
	v.SetDefault("crawler.fallback_domain", "Technologie")
	v.SetDefault("cache.dir", "data")
	v.SetDefault("cache.memory_ttl_seconds", 600)
	v.SetDefault("rag.enabled", false)
	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.batch_size", 10)
	v.SetDefault("rag.embedding_model", "mistral-embed")
	v.SetDefault("llm.model", "mistral-large-latest")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("matcher.name_weight", 3)
	v.SetDefault("matcher.description_weight", 2)
	v.SetDefault("matcher.tag_weight", 2)
	v.SetDefault("matcher.domain_weight", 1)
	v.SetDefault("matcher.location_weight", 1)
	v.SetDefault("matcher.random_fallback", true)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.daily_at", "0 3 * * *")
	v.SetDefault("scheduler.use_cron", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.DelayMaxMs < c.Crawler.DelayMinMs {
		return fmt.Errorf("crawler.delay_max_ms must be >= crawler.delay_min_ms")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.RAG.Enabled && c.RAG.APIKey == "" {
		return fmt.Errorf("rag.api_key must be set when rag is enabled")
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be > 0")
	}
	if c.RAG.BatchSize <= 0 {
		return fmt.Errorf("rag.batch_size must be > 0")
	}
	return nil
}

// FetchTimeout converts the per-page timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// MemoryTTL returns how long the in-memory cache layer is served without a
// disk check.
func (c Config) MemoryTTL() time.Duration {
	return time.Duration(c.Cache.MemoryTTLSeconds) * time.Second
}
