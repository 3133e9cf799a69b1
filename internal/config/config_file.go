package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/jstevewhite/rsrch/internal/pipelineerr"
)

// nestedFileConfig is a nested on-disk schema that groups related options
// the way the teacher's config_file.go does. The --config loader uses the
// flat FileConfig in file.go instead.
type nestedFileConfig struct {
	LLM struct {
		APIKey      string `yaml:"api_key"`
		Endpoint    string `yaml:"endpoint"`
		DefaultModel string `yaml:"default_model"`
		MaxRetries  int    `yaml:"max_retries"`
		PromptPolicyInclude *bool `yaml:"prompt_policy_include"`
	} `yaml:"llm"`

	Models struct {
		Intent     string `yaml:"intent_model"`
		Planner    string `yaml:"planner_model"`
		Context    string `yaml:"context_model"`
		Reflection string `yaml:"reflection_model"`
		Report     string `yaml:"report_model"`
		Verify     string `yaml:"verify_model"`
	} `yaml:"models"`

	Routing struct {
		Default       string `yaml:"mrs_default"`
		Code          string `yaml:"mrs_code"`
		Research      string `yaml:"mrs_research"`
		News          string `yaml:"mrs_news"`
		Documentation string `yaml:"mrs_documentation"`
		General       string `yaml:"mrs_general"`
	} `yaml:"routing"`

	Search struct {
		Provider         string   `yaml:"search_provider"`
		SerpAPIKey       string   `yaml:"serp_api_key"`
		TavilyAPIKey     string   `yaml:"tavily_api_key"`
		PerplexityAPIKey string   `yaml:"perplexity_api_key"`
		ExcludeDomains   []string `yaml:"exclude_domains"`
		ResultsPerQuery  int      `yaml:"search_results_per_query"`
	} `yaml:"search"`

	Ranking struct {
		TopKURL float64 `yaml:"top_k_url"`
		TopKSum float64 `yaml:"top_k_sum"`
	} `yaml:"ranking"`

	VectorDB struct {
		Path           string `yaml:"vector_db_path"`
		EmbeddingModel string `yaml:"embedding_model"`
	} `yaml:"vector_db"`

	Reranker struct {
		Use    bool   `yaml:"use_reranker"`
		URL    string `yaml:"reranker_url"`
		Model  string `yaml:"reranker_model"`
		APIKey string `yaml:"reranker_api_key"`
	} `yaml:"reranker"`

	Verify struct {
		Claims    bool    `yaml:"verify_claims"`
		Threshold float64 `yaml:"verify_threshold"`
	} `yaml:"verify"`

	MaxIterations int `yaml:"max_iterations"`

	Report struct {
		MaxTokens int    `yaml:"report_max_tokens"`
		Format    string `yaml:"output_format"`
	} `yaml:"report"`

	Tables struct {
		PreserveTables       bool `yaml:"preserve_tables"`
		EnableTableAware     bool `yaml:"enable_table_aware"`
		TopKRows             int  `yaml:"table_topk_rows"`
		MaxRowsVerbatim      int  `yaml:"table_max_rows_verbatim"`
		MaxColsVerbatim      int  `yaml:"table_max_cols_verbatim"`
	} `yaml:"tables"`

	Concurrency struct {
		SearchParallel  int `yaml:"search_parallel"`
		ScrapeParallel  int `yaml:"scrape_parallel"`
		SummaryParallel int `yaml:"summary_parallel"`
	} `yaml:"concurrency"`
}

// loadNestedFile parses a YAML config file at path into nestedFileConfig.
func loadNestedFile(path string) (nestedFileConfig, error) {
	var fc nestedFileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// applyNestedFile overlays fc onto cfg for every field still at its zero value,
// so a value already set by flags or the env layer survives untouched.
func applyNestedFile(cfg *Config, fc nestedFileConfig) {
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.LLMEndpoint == "" {
		cfg.LLMEndpoint = fc.LLM.Endpoint
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = fc.LLM.DefaultModel
	}
	if cfg.LLMMaxRetries == 0 && fc.LLM.MaxRetries > 0 {
		cfg.LLMMaxRetries = fc.LLM.MaxRetries
	}
	if fc.LLM.PromptPolicyInclude != nil {
		cfg.PromptPolicyInclude = *fc.LLM.PromptPolicyInclude
	}

	if cfg.IntentModel == "" {
		cfg.IntentModel = fc.Models.Intent
	}
	if cfg.PlannerModel == "" {
		cfg.PlannerModel = fc.Models.Planner
	}
	if cfg.ContextModel == "" {
		cfg.ContextModel = fc.Models.Context
	}
	if cfg.ReflectionModel == "" {
		cfg.ReflectionModel = fc.Models.Reflection
	}
	if cfg.ReportModel == "" {
		cfg.ReportModel = fc.Models.Report
	}
	if cfg.VerifyModel == "" {
		cfg.VerifyModel = fc.Models.Verify
	}

	if cfg.MRSDefault == "" {
		cfg.MRSDefault = fc.Routing.Default
	}
	if cfg.MRSCode == "" {
		cfg.MRSCode = fc.Routing.Code
	}
	if cfg.MRSResearch == "" {
		cfg.MRSResearch = fc.Routing.Research
	}
	if cfg.MRSNews == "" {
		cfg.MRSNews = fc.Routing.News
	}
	if cfg.MRSDocumentation == "" {
		cfg.MRSDocumentation = fc.Routing.Documentation
	}
	if cfg.MRSGeneral == "" {
		cfg.MRSGeneral = fc.Routing.General
	}

	if cfg.SearchProvider == "" || cfg.SearchProvider == Defaults().SearchProvider {
		if fc.Search.Provider != "" {
			cfg.SearchProvider = fc.Search.Provider
		}
	}
	if cfg.SerpAPIKey == "" {
		cfg.SerpAPIKey = fc.Search.SerpAPIKey
	}
	if cfg.TavilyAPIKey == "" {
		cfg.TavilyAPIKey = fc.Search.TavilyAPIKey
	}
	if cfg.PerplexityAPIKey == "" {
		cfg.PerplexityAPIKey = fc.Search.PerplexityAPIKey
	}
	if len(cfg.ExcludeDomains) == 0 && len(fc.Search.ExcludeDomains) > 0 {
		cfg.ExcludeDomains = append([]string{}, fc.Search.ExcludeDomains...)
	}
	if cfg.SearchResultsPerQuery == 0 && fc.Search.ResultsPerQuery > 0 {
		cfg.SearchResultsPerQuery = fc.Search.ResultsPerQuery
	}

	if cfg.TopKURL == 0 && fc.Ranking.TopKURL > 0 {
		cfg.TopKURL = fc.Ranking.TopKURL
	}
	if cfg.TopKSum == 0 && fc.Ranking.TopKSum > 0 {
		cfg.TopKSum = fc.Ranking.TopKSum
	}

	if cfg.VectorDBPath == "" {
		cfg.VectorDBPath = fc.VectorDB.Path
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = fc.VectorDB.EmbeddingModel
	}

	if fc.Reranker.Use {
		cfg.UseReranker = true
	}
	if cfg.RerankerURL == "" {
		cfg.RerankerURL = fc.Reranker.URL
	}
	if cfg.RerankerModel == "" {
		cfg.RerankerModel = fc.Reranker.Model
	}
	if cfg.RerankerAPIKey == "" {
		cfg.RerankerAPIKey = fc.Reranker.APIKey
	}

	if fc.Verify.Claims {
		cfg.VerifyClaims = true
	}
	if cfg.VerifyThreshold == 0 && fc.Verify.Threshold > 0 {
		cfg.VerifyThreshold = fc.Verify.Threshold
	}

	if cfg.MaxIterations == 0 && fc.MaxIterations > 0 {
		cfg.MaxIterations = fc.MaxIterations
	}

	if cfg.ReportMaxTokens == 0 && fc.Report.MaxTokens > 0 {
		cfg.ReportMaxTokens = fc.Report.MaxTokens
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = fc.Report.Format
	}

	if fc.Tables.PreserveTables {
		cfg.PreserveTables = true
	}
	if fc.Tables.EnableTableAware {
		cfg.EnableTableAware = true
	}
	if cfg.TableTopKRows == 0 && fc.Tables.TopKRows > 0 {
		cfg.TableTopKRows = fc.Tables.TopKRows
	}
	if cfg.TableMaxRowsVerbatim == 0 && fc.Tables.MaxRowsVerbatim > 0 {
		cfg.TableMaxRowsVerbatim = fc.Tables.MaxRowsVerbatim
	}
	if cfg.TableMaxColsVerbatim == 0 && fc.Tables.MaxColsVerbatim > 0 {
		cfg.TableMaxColsVerbatim = fc.Tables.MaxColsVerbatim
	}

	if cfg.SearchParallel == 0 && fc.Concurrency.SearchParallel > 0 {
		cfg.SearchParallel = fc.Concurrency.SearchParallel
	}
	if cfg.ScrapeParallel == 0 && fc.Concurrency.ScrapeParallel > 0 {
		cfg.ScrapeParallel = fc.Concurrency.ScrapeParallel
	}
	if cfg.SummaryParallel == 0 && fc.Concurrency.SummaryParallel > 0 {
		cfg.SummaryParallel = fc.Concurrency.SummaryParallel
	}
}

// Validate enforces spec §6's required-key and range rules. warnings
// receives non-fatal messages (e.g. parallelism above 32) the caller should
// log at WARNING; the returned error wraps pipelineerr.ErrConfigInvalid.
func Validate(cfg Config) (warnings []string, err error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("llm_api_key is required: %w", pipelineerr.ErrConfigInvalid)
	}
	switch cfg.SearchProvider {
	case "serp", "tavily", "perplexity":
	default:
		return nil, fmt.Errorf("search_provider must be one of serp|tavily|perplexity, got %q: %w", cfg.SearchProvider, pipelineerr.ErrConfigInvalid)
	}
	if cfg.TopKURL <= 0 || cfg.TopKURL > 1 {
		return nil, fmt.Errorf("top_k_url must be in (0.0, 1.0]: %w", pipelineerr.ErrConfigInvalid)
	}
	if cfg.TopKSum <= 0 || cfg.TopKSum > 1 {
		return nil, fmt.Errorf("top_k_sum must be in (0.0, 1.0]: %w", pipelineerr.ErrConfigInvalid)
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max_iterations must be >= 1: %w", pipelineerr.ErrConfigInvalid)
	}
	if cfg.VerifyThreshold < 0 || cfg.VerifyThreshold > 1 {
		return nil, fmt.Errorf("verify_threshold must be in [0,1]: %w", pipelineerr.ErrConfigInvalid)
	}

	parallelism := map[string]int{
		"search_parallel":  cfg.SearchParallel,
		"scrape_parallel":  cfg.ScrapeParallel,
		"summary_parallel": cfg.SummaryParallel,
	}
	for name, v := range parallelism {
		if v < 1 {
			return nil, fmt.Errorf("%s must be >= 1, got %d: %w", name, v, pipelineerr.ErrConfigInvalid)
		}
		if v > 32 {
			warnings = append(warnings, fmt.Sprintf("%s=%d exceeds the recommended maximum of 32", name, v))
		}
	}
	if cfg.SummaryParallel > 4 {
		warnings = append(warnings, fmt.Sprintf("summary_parallel=%d multiplies LLM spend linearly; every additional worker issues concurrent summarization calls", cfg.SummaryParallel))
	}
	switch cfg.OutputFormat {
	case "markdown", "text":
	default:
		return nil, fmt.Errorf("output_format must be one of markdown|text, got %q: %w", cfg.OutputFormat, pipelineerr.ErrConfigInvalid)
	}
	return warnings, nil
}
