package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the on-disk schema for --config: every spec §6 option,
// flat, matching the option table's own names. Any field left unset keeps
// whatever Defaults()/ApplyEnv already produced.
type FileConfig struct {
	LLMAPIKey       string `yaml:"llm_api_key" json:"llm_api_key"`
	LLMEndpoint     string `yaml:"llm_endpoint" json:"llm_endpoint"`
	DefaultModel    string `yaml:"default_model" json:"default_model"`
	IntentModel     string `yaml:"intent_model" json:"intent_model"`
	PlannerModel    string `yaml:"planner_model" json:"planner_model"`
	ContextModel    string `yaml:"context_model" json:"context_model"`
	ReflectionModel string `yaml:"reflection_model" json:"reflection_model"`
	ReportModel     string `yaml:"report_model" json:"report_model"`
	VerifyModel     string `yaml:"verify_model" json:"verify_model"`

	MRSDefault       string `yaml:"mrs_default" json:"mrs_default"`
	MRSCode          string `yaml:"mrs_code" json:"mrs_code"`
	MRSResearch      string `yaml:"mrs_research" json:"mrs_research"`
	MRSNews          string `yaml:"mrs_news" json:"mrs_news"`
	MRSDocumentation string `yaml:"mrs_documentation" json:"mrs_documentation"`
	MRSGeneral       string `yaml:"mrs_general" json:"mrs_general"`

	LLMMaxRetries       int  `yaml:"llm_max_retries" json:"llm_max_retries"`
	PromptPolicyInclude bool `yaml:"prompt_policy_include" json:"prompt_policy_include"`

	SearchProvider        string   `yaml:"search_provider" json:"search_provider"`
	SerpAPIKey            string   `yaml:"serp_api_key" json:"serp_api_key"`
	TavilyAPIKey          string   `yaml:"tavily_api_key" json:"tavily_api_key"`
	PerplexityAPIKey      string   `yaml:"perplexity_api_key" json:"perplexity_api_key"`
	ExcludeDomains        []string `yaml:"exclude_domains" json:"exclude_domains"`
	SearchResultsPerQuery int      `yaml:"search_results_per_query" json:"search_results_per_query"`

	TopKURL float64 `yaml:"top_k_url" json:"top_k_url"`
	TopKSum float64 `yaml:"top_k_sum" json:"top_k_sum"`

	VectorDBPath   string `yaml:"vector_db_path" json:"vector_db_path"`
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`

	UseReranker    bool   `yaml:"use_reranker" json:"use_reranker"`
	RerankerURL    string `yaml:"reranker_url" json:"reranker_url"`
	RerankerModel  string `yaml:"reranker_model" json:"reranker_model"`
	RerankerAPIKey string `yaml:"reranker_api_key" json:"reranker_api_key"`

	VerifyClaims    bool    `yaml:"verify_claims" json:"verify_claims"`
	VerifyThreshold float64 `yaml:"verify_threshold" json:"verify_threshold"`

	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	ReportMaxTokens int    `yaml:"report_max_tokens" json:"report_max_tokens"`
	OutputFormat    string `yaml:"output_format" json:"output_format"`

	PreserveTables       bool `yaml:"preserve_tables" json:"preserve_tables"`
	EnableTableAware     bool `yaml:"enable_table_aware" json:"enable_table_aware"`
	TableTopKRows        int  `yaml:"table_topk_rows" json:"table_topk_rows"`
	TableMaxRowsVerbatim int  `yaml:"table_max_rows_verbatim" json:"table_max_rows_verbatim"`
	TableMaxColsVerbatim int  `yaml:"table_max_cols_verbatim" json:"table_max_cols_verbatim"`

	SearchParallel  int `yaml:"search_parallel" json:"search_parallel"`
	ScrapeParallel  int `yaml:"scrape_parallel" json:"scrape_parallel"`
	SummaryParallel int `yaml:"summary_parallel" json:"summary_parallel"`

	ScrapeTimeout time.Duration `yaml:"scrape_timeout" json:"scrape_timeout"`
}

// LoadFile reads YAML or JSON (by extension, falling back to trying both)
// into a FileConfig.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFile overlays fc onto cfg for every field still at its zero value.
func ApplyFile(cfg *Config, fc FileConfig) {
	strs := []struct {
		dst *string
		src string
	}{
		{&cfg.LLMAPIKey, fc.LLMAPIKey}, {&cfg.LLMEndpoint, fc.LLMEndpoint}, {&cfg.DefaultModel, fc.DefaultModel},
		{&cfg.IntentModel, fc.IntentModel}, {&cfg.PlannerModel, fc.PlannerModel}, {&cfg.ContextModel, fc.ContextModel},
		{&cfg.ReflectionModel, fc.ReflectionModel}, {&cfg.ReportModel, fc.ReportModel}, {&cfg.VerifyModel, fc.VerifyModel},
		{&cfg.MRSDefault, fc.MRSDefault}, {&cfg.MRSCode, fc.MRSCode}, {&cfg.MRSResearch, fc.MRSResearch},
		{&cfg.MRSNews, fc.MRSNews}, {&cfg.MRSDocumentation, fc.MRSDocumentation}, {&cfg.MRSGeneral, fc.MRSGeneral},
		{&cfg.SearchProvider, fc.SearchProvider}, {&cfg.SerpAPIKey, fc.SerpAPIKey}, {&cfg.TavilyAPIKey, fc.TavilyAPIKey},
		{&cfg.PerplexityAPIKey, fc.PerplexityAPIKey}, {&cfg.VectorDBPath, fc.VectorDBPath},
		{&cfg.EmbeddingModel, fc.EmbeddingModel}, {&cfg.RerankerURL, fc.RerankerURL},
		{&cfg.RerankerModel, fc.RerankerModel}, {&cfg.RerankerAPIKey, fc.RerankerAPIKey},
		{&cfg.OutputFormat, fc.OutputFormat},
	}
	for _, s := range strs {
		if *s.dst == "" && s.src != "" {
			*s.dst = s.src
		}
	}

	if len(cfg.ExcludeDomains) == 0 && len(fc.ExcludeDomains) > 0 {
		cfg.ExcludeDomains = append([]string{}, fc.ExcludeDomains...)
	}

	ints := []struct {
		dst *int
		src int
	}{
		{&cfg.LLMMaxRetries, fc.LLMMaxRetries}, {&cfg.SearchResultsPerQuery, fc.SearchResultsPerQuery},
		{&cfg.MaxIterations, fc.MaxIterations}, {&cfg.ReportMaxTokens, fc.ReportMaxTokens},
		{&cfg.TableTopKRows, fc.TableTopKRows}, {&cfg.TableMaxRowsVerbatim, fc.TableMaxRowsVerbatim},
		{&cfg.TableMaxColsVerbatim, fc.TableMaxColsVerbatim}, {&cfg.SearchParallel, fc.SearchParallel},
		{&cfg.ScrapeParallel, fc.ScrapeParallel}, {&cfg.SummaryParallel, fc.SummaryParallel},
	}
	for _, i := range ints {
		if *i.dst == 0 && i.src != 0 {
			*i.dst = i.src
		}
	}

	floats := []struct {
		dst *float64
		src float64
	}{
		{&cfg.TopKURL, fc.TopKURL}, {&cfg.TopKSum, fc.TopKSum}, {&cfg.VerifyThreshold, fc.VerifyThreshold},
	}
	for _, f := range floats {
		if *f.dst == 0 && f.src != 0 {
			*f.dst = f.src
		}
	}

	if !cfg.PromptPolicyInclude && fc.PromptPolicyInclude {
		cfg.PromptPolicyInclude = true
	}
	if !cfg.UseReranker && fc.UseReranker {
		cfg.UseReranker = true
	}
	if !cfg.VerifyClaims && fc.VerifyClaims {
		cfg.VerifyClaims = true
	}
	if !cfg.PreserveTables && fc.PreserveTables {
		cfg.PreserveTables = true
	}
	if !cfg.EnableTableAware && fc.EnableTableAware {
		cfg.EnableTableAware = true
	}
	if cfg.ScrapeTimeout == 0 && fc.ScrapeTimeout != 0 {
		cfg.ScrapeTimeout = fc.ScrapeTimeout
	}
}
