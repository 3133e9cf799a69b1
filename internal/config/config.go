// Package config loads the plain options record described in spec §6:
// flags override environment, environment overrides a config file, and the
// file supplies whatever neither of the higher layers set.
package config

import (
	"flag"
	"time"
)

// Config is the full recognized option set. Zero values mean "not yet
// set by a higher-precedence layer" for the purposes of the env/file
// overlay functions in config_env.go and config_file.go.
type Config struct {
	// CLI surface
	Query      string
	ConfigPath string
	OutputDir  string
	LogLevel   string
	ShowPlan   bool

	// LLM
	LLMAPIKey  string
	LLMEndpoint string
	DefaultModel string

	IntentModel     string
	PlannerModel    string
	ContextModel    string
	ReflectionModel string
	ReportModel     string
	VerifyModel     string

	MRSDefault       string
	MRSCode          string
	MRSResearch      string
	MRSNews          string
	MRSDocumentation string
	MRSGeneral       string

	LLMMaxRetries      int
	PromptPolicyInclude bool

	// Search
	SearchProvider        string
	SerpAPIKey            string
	TavilyAPIKey          string
	PerplexityAPIKey      string
	ExcludeDomains        []string
	SearchResultsPerQuery int

	// Ranking
	TopKURL float64
	TopKSum float64

	// Vector store / embeddings
	VectorDBPath   string
	EmbeddingModel string

	// Reranker
	UseReranker    bool
	RerankerURL    string
	RerankerModel  string
	RerankerAPIKey string

	// Verification
	VerifyClaims    bool
	VerifyThreshold float64

	// Iteration
	MaxIterations int

	// Report
	ReportMaxTokens int
	OutputFormat    string

	// Scraper / tables
	PreserveTables       bool
	EnableTableAware     bool
	TableTopKRows        int
	TableMaxRowsVerbatim int
	TableMaxColsVerbatim int

	// Concurrency
	SearchParallel  int
	ScrapeParallel  int
	SummaryParallel int

	// Timeouts
	ScrapeTimeout time.Duration
}

// Defaults returns the option set with every spec §6 default applied.
func Defaults() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// ApplyDefaults overlays the spec §6 built-in defaults onto cfg for every
// field still at its zero value. Call this AFTER ApplyFile/ApplyEnv so a
// config file or environment variable can override a built-in default,
// per the precedence flags > env > file > default.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.LLMMaxRetries == 0 {
		cfg.LLMMaxRetries = 3
	}
	if !cfg.PromptPolicyInclude {
		cfg.PromptPolicyInclude = true
	}
	if cfg.SearchProvider == "" {
		cfg.SearchProvider = "serp"
	}
	if cfg.SearchResultsPerQuery == 0 {
		cfg.SearchResultsPerQuery = 10
	}
	if cfg.TopKURL == 0 {
		cfg.TopKURL = 0.3
	}
	if cfg.TopKSum == 0 {
		cfg.TopKSum = 0.5
	}
	if cfg.VerifyThreshold == 0 {
		cfg.VerifyThreshold = 0.7
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 2
	}
	if cfg.ReportMaxTokens == 0 {
		cfg.ReportMaxTokens = 4000
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "markdown"
	}
	if !cfg.PreserveTables {
		cfg.PreserveTables = true
	}
	if !cfg.EnableTableAware {
		cfg.EnableTableAware = true
	}
	if cfg.TableTopKRows == 0 {
		cfg.TableTopKRows = 10
	}
	if cfg.TableMaxRowsVerbatim == 0 {
		cfg.TableMaxRowsVerbatim = 15
	}
	if cfg.TableMaxColsVerbatim == 0 {
		cfg.TableMaxColsVerbatim = 8
	}
	if cfg.SearchParallel == 0 {
		cfg.SearchParallel = 1
	}
	if cfg.ScrapeParallel == 0 {
		cfg.ScrapeParallel = 5
	}
	if cfg.SummaryParallel == 0 {
		cfg.SummaryParallel = 1
	}
	if cfg.ScrapeTimeout == 0 {
		cfg.ScrapeTimeout = 15 * time.Second
	}
}

// RegisterFlags wires the CLI surface from spec §6 onto fs, seeded with
// cfg's current values (normally the result of Defaults()). Flags take
// precedence over everything else once fs.Parse has run.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "path to config file")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "output directory for the report")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "DEBUG|INFO|WARNING|ERROR")
	fs.BoolVar(&cfg.ShowPlan, "show-plan", cfg.ShowPlan, "print the research plan before running")
}
