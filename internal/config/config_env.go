package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides overrides cfg fields with environment variables when the
// corresponding variable is set and non-empty, whatever value the field
// already holds. Unlike ApplyEnv, which fills only zero-valued fields, it
// does not preserve earlier layers; none of the options it sets are
// registered as flags by RegisterFlags.
func ApplyEnvOverrides(cfg *Config) {
	str := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str(&cfg.LLMAPIKey, "LLM_API_KEY")
	str(&cfg.LLMEndpoint, "LLM_ENDPOINT")
	str(&cfg.DefaultModel, "DEFAULT_MODEL")
	str(&cfg.IntentModel, "INTENT_MODEL")
	str(&cfg.PlannerModel, "PLANNER_MODEL")
	str(&cfg.ContextModel, "CONTEXT_MODEL")
	str(&cfg.ReflectionModel, "REFLECTION_MODEL")
	str(&cfg.ReportModel, "REPORT_MODEL")
	str(&cfg.VerifyModel, "VERIFY_MODEL")
	str(&cfg.MRSDefault, "MRS_DEFAULT")
	str(&cfg.MRSCode, "MRS_CODE")
	str(&cfg.MRSResearch, "MRS_RESEARCH")
	str(&cfg.MRSNews, "MRS_NEWS")
	str(&cfg.MRSDocumentation, "MRS_DOCUMENTATION")
	str(&cfg.MRSGeneral, "MRS_GENERAL")
	str(&cfg.SearchProvider, "SEARCH_PROVIDER")
	str(&cfg.SerpAPIKey, "SERP_API_KEY")
	str(&cfg.TavilyAPIKey, "TAVILY_API_KEY")
	str(&cfg.PerplexityAPIKey, "PERPLEXITY_API_KEY")
	str(&cfg.VectorDBPath, "VECTOR_DB_PATH")
	str(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	str(&cfg.RerankerURL, "RERANKER_URL")
	str(&cfg.RerankerModel, "RERANKER_MODEL")
	str(&cfg.RerankerAPIKey, "RERANKER_API_KEY")
	str(&cfg.OutputFormat, "OUTPUT_FORMAT")

	if v := strings.TrimSpace(os.Getenv("EXCLUDE_DOMAINS")); v != "" {
		parts := strings.Split(v, ",")
		domains := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				domains = append(domains, p)
			}
		}
		cfg.ExcludeDomains = domains
	}

	intVar := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	intVar(&cfg.SearchResultsPerQuery, "SEARCH_RESULTS_PER_QUERY")
	intVar(&cfg.MaxIterations, "MAX_ITERATIONS")
	intVar(&cfg.ReportMaxTokens, "REPORT_MAX_TOKENS")
	intVar(&cfg.SearchParallel, "SEARCH_PARALLEL")
	intVar(&cfg.ScrapeParallel, "SCRAPE_PARALLEL")
	intVar(&cfg.SummaryParallel, "SUMMARY_PARALLEL")
	intVar(&cfg.LLMMaxRetries, "LLM_MAX_RETRIES")
	intVar(&cfg.TableTopKRows, "TABLE_TOPK_ROWS")
	intVar(&cfg.TableMaxRowsVerbatim, "TABLE_MAX_ROWS_VERBATIM")
	intVar(&cfg.TableMaxColsVerbatim, "TABLE_MAX_COLS_VERBATIM")

	floatVar := func(dst *float64, key string) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	floatVar(&cfg.TopKURL, "TOP_K_URL")
	floatVar(&cfg.TopKSum, "TOP_K_SUM")
	floatVar(&cfg.VerifyThreshold, "VERIFY_THRESHOLD")

	boolVar := func(dst *bool, key string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(key))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	boolVar(&cfg.UseReranker, "USE_RERANKER")
	boolVar(&cfg.VerifyClaims, "VERIFY_CLAIMS")
	boolVar(&cfg.PreserveTables, "PRESERVE_TABLES")
	boolVar(&cfg.EnableTableAware, "ENABLE_TABLE_AWARE")
	boolVar(&cfg.PromptPolicyInclude, "PROMPT_POLICY_INCLUDE")
}
