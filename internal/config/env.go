package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overlays environment variables onto cfg for every spec §6
// option, but only where cfg still holds its zero value. It runs before
// ApplyFile, so an environment value wins over the config file; flags
// parsed after both take precedence over either.
func ApplyEnv(cfg *Config) {
	str := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
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

	if len(cfg.ExcludeDomains) == 0 {
		if v := strings.TrimSpace(os.Getenv("EXCLUDE_DOMAINS")); v != "" {
			cfg.ExcludeDomains = splitAndTrim(v)
		}
	}

	intVal := func(dst *int, key string) {
		if *dst != 0 {
			return
		}
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	intVal(&cfg.LLMMaxRetries, "LLM_MAX_RETRIES")
	intVal(&cfg.SearchResultsPerQuery, "SEARCH_RESULTS_PER_QUERY")
	intVal(&cfg.MaxIterations, "MAX_ITERATIONS")
	intVal(&cfg.ReportMaxTokens, "REPORT_MAX_TOKENS")
	intVal(&cfg.TableTopKRows, "TABLE_TOPK_ROWS")
	intVal(&cfg.TableMaxRowsVerbatim, "TABLE_MAX_ROWS_VERBATIM")
	intVal(&cfg.TableMaxColsVerbatim, "TABLE_MAX_COLS_VERBATIM")
	intVal(&cfg.SearchParallel, "SEARCH_PARALLEL")
	intVal(&cfg.ScrapeParallel, "SCRAPE_PARALLEL")
	intVal(&cfg.SummaryParallel, "SUMMARY_PARALLEL")

	floatVal := func(dst *float64, key string) {
		if *dst != 0 {
			return
		}
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	floatVal(&cfg.TopKURL, "TOP_K_URL")
	floatVal(&cfg.TopKSum, "TOP_K_SUM")
	floatVal(&cfg.VerifyThreshold, "VERIFY_THRESHOLD")

	boolVal := func(dst *bool, key string) {
		if *dst {
			return
		}
		if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v == "1" || v == "true" || v == "yes" {
			*dst = true
		}
	}
	boolVal(&cfg.PromptPolicyInclude, "PROMPT_POLICY_INCLUDE")
	boolVal(&cfg.UseReranker, "USE_RERANKER")
	boolVal(&cfg.VerifyClaims, "VERIFY_CLAIMS")
	boolVal(&cfg.PreserveTables, "PRESERVE_TABLES")
	boolVal(&cfg.EnableTableAware, "ENABLE_TABLE_AWARE")

	if cfg.ScrapeTimeout == 0 {
		if v := os.Getenv("SCRAPE_TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ScrapeTimeout = d
			}
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
