// Command rsrch drives one research run end to end (spec §6 CLI surface):
// classify intent, plan, iterate search/scrape/summarize/reflect, assemble
// context, compose a cited report, optionally verify claims, and write the
// result to --output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jstevewhite/rsrch/internal/assemble"
	"github.com/jstevewhite/rsrch/internal/cache"
	"github.com/jstevewhite/rsrch/internal/claims"
	"github.com/jstevewhite/rsrch/internal/config"
	"github.com/jstevewhite/rsrch/internal/embedder"
	"github.com/jstevewhite/rsrch/internal/fetch"
	"github.com/jstevewhite/rsrch/internal/llm"
	"github.com/jstevewhite/rsrch/internal/metrics"
	"github.com/jstevewhite/rsrch/internal/orchestrator"
	"github.com/jstevewhite/rsrch/internal/pipelineerr"
	"github.com/jstevewhite/rsrch/internal/plan"
	"github.com/jstevewhite/rsrch/internal/reflect"
	"github.com/jstevewhite/rsrch/internal/rerank"
	"github.com/jstevewhite/rsrch/internal/report"
	"github.com/jstevewhite/rsrch/internal/scrape"
	"github.com/jstevewhite/rsrch/internal/search"
	"github.com/jstevewhite/rsrch/internal/summarize"
	"github.com/jstevewhite/rsrch/internal/vectorstore"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, queryText, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("configuration invalid")
		os.Exit(pipelineerr.ExitCode(pipelineerr.ErrConfigInvalid))
	}
	applyLogLevel(cfg.LogLevel)

	if err := run(context.Background(), cfg, queryText); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(pipelineerr.ExitCode(err))
	}
}

// loadConfig layers the option set per spec §6: built-in defaults, then a
// config file, then environment, then flags -- the positional query is
// taken from whatever fs.Args() leaves after flag parsing.
func loadConfig(args []string) (config.Config, string, error) {
	var cfg config.Config

	// The config file path comes from an early flag scan; look for --config
	// before the full parse so its contents can seed flag defaults.
	fs := flag.NewFlagSet("rsrch", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigPath, "config", "", "path to config file")
	_ = fs.Parse(args)
	cfg = config.Config{ConfigPath: cfg.ConfigPath}

	config.ApplyEnv(&cfg)
	if cfg.ConfigPath != "" {
		fc, err := config.LoadFile(cfg.ConfigPath)
		if err != nil {
			return cfg, "", fmt.Errorf("load config file: %w", err)
		}
		config.ApplyFile(&cfg, fc)
	}
	config.ApplyDefaults(&cfg)

	fs2 := flag.NewFlagSet("rsrch", flag.ExitOnError)
	config.RegisterFlags(fs2, &cfg)
	if err := fs2.Parse(args); err != nil {
		return cfg, "", err
	}

	positional := fs2.Args()
	if len(positional) != 1 {
		return cfg, "", fmt.Errorf("expected exactly one positional query argument, got %d", len(positional))
	}
	cfg.Query = positional[0]

	if err := validateConfig(cfg); err != nil {
		return cfg, "", err
	}
	return cfg, cfg.Query, nil
}

func validateConfig(cfg config.Config) error {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		return fmt.Errorf("llm_api_key is required")
	}
	for name, v := range map[string]int{
		"search_parallel": cfg.SearchParallel, "scrape_parallel": cfg.ScrapeParallel, "summary_parallel": cfg.SummaryParallel,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", name, v)
		}
		if v > 32 {
			log.Warn().Str("option", name).Int("value", v).Msg("parallelism exceeds 32; accepted, but likely unintended")
		}
	}
	return nil
}

func applyLogLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "WARNING":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func run(ctx context.Context, cfg config.Config, queryText string) error {
	reg := metrics.New(nil)

	gateway := func() *llm.Gateway {
		transportCfg := openai.DefaultConfig(cfg.LLMAPIKey)
		if cfg.LLMEndpoint != "" {
			transportCfg.BaseURL = cfg.LLMEndpoint
		}
		transportCfg.HTTPClient = fetch.NewHighThroughputClient(true)
		client := &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(transportCfg)}
		return llm.New(client, llm.Options{MaxRetries: cfg.LLMMaxRetries, PromptPolicyInclude: cfg.PromptPolicyInclude})
	}

	model := func(override string) string {
		if strings.TrimSpace(override) != "" {
			return override
		}
		return cfg.DefaultModel
	}

	store, err := vectorstore.Open(cfg.VectorDBPath)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	embedGateway := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMEndpoint != "" {
		embedGateway.BaseURL = cfg.LLMEndpoint
	}
	embedGateway.HTTPClient = fetch.NewHighThroughputClient(true)
	embedClient := openai.NewClientWithConfig(embedGateway)

	var urlReranker rerank.Reranker = rerank.NoOpReranker{}
	var summaryReranker rerank.Reranker
	if cfg.UseReranker && cfg.RerankerURL != "" {
		rerankTransport := openai.DefaultConfig(cfg.RerankerAPIKey)
		rerankTransport.BaseURL = cfg.RerankerURL
		rerankTransport.HTTPClient = fetch.NewHighThroughputClient(true)
		rerankClient := &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(rerankTransport)}
		reranker := &rerank.LLMReranker{
			Gateway: llm.New(rerankClient, llm.Options{MaxRetries: cfg.LLMMaxRetries}),
			Model:   cfg.RerankerModel,
		}
		urlReranker = reranker
		summaryReranker = reranker
	}

	scraper := &scrape.Scraper{
		Primary: &fetch.Client{
			HTTPClient:        fetch.NewHighThroughputClient(true),
			UserAgent:         "rsrch/1.0 (+https://github.com/jstevewhite/rsrch)",
			MaxAttempts:       2,
			PerRequestTimeout: cfg.ScrapeTimeout,
			RedirectMaxHops:   5,
			MaxConcurrent:     cfg.ScrapeParallel,
		},
		Cache:          cache.NewScrapeCache(),
		Metrics:        scrape.NewTierMetrics(reg.Registerer),
		Timeout:        cfg.ScrapeTimeout,
		PreserveTables: cfg.PreserveTables,
	}

	var searchProvider search.Provider
	switch cfg.SearchProvider {
	case "tavily":
		searchProvider = &search.TavilyProvider{APIKey: cfg.TavilyAPIKey, ExcludeDomains: cfg.ExcludeDomains, HTTPClient: fetch.NewHighThroughputClient(true)}
	case "perplexity":
		searchProvider = &search.PerplexityProvider{APIKey: cfg.PerplexityAPIKey, ExcludeDomains: cfg.ExcludeDomains, HTTPClient: fetch.NewHighThroughputClient(true)}
	default:
		searchProvider = &search.SerpProvider{APIKey: cfg.SerpAPIKey, ExcludeDomains: cfg.ExcludeDomains, HTTPClient: fetch.NewHighThroughputClient(true)}
	}

	o := &orchestrator.Orchestrator{
		Classifier:  &plan.IntentClassifier{Gateway: gateway(), Model: model(cfg.IntentModel)},
		Planner:     &plan.Planner{Gateway: gateway(), Model: model(cfg.PlannerModel)},
		Search:      searchProvider,
		URLReranker: urlReranker,
		Scraper:     scraper,
		Summarizer: &summarize.Summarizer{
			Gateway: gateway(),
			Router:  summarize.NewModelRouter(cfg),
			Tables: summarize.TableConfig{
				VerbatimRows: cfg.TableMaxRowsVerbatim,
				VerbatimCols: cfg.TableMaxColsVerbatim,
				TopKRows:     cfg.TableTopKRows,
			},
		},
		Reflector: &reflect.Reflector{Gateway: gateway(), Model: model(cfg.ReflectionModel)},
		Assembler: &assemble.Assembler{
			Embedder: embedder.New(embedClient, cfg.EmbeddingModel),
			Store:    store,
			Reranker: summaryReranker,
			TopKSum:  cfg.TopKSum,
		},
		Composer: &report.Composer{Gateway: gateway(), Model: model(cfg.ReportModel)},
		Metrics:  reg,

		ExcludeDomains:        cfg.ExcludeDomains,
		SearchResultsPerQuery: cfg.SearchResultsPerQuery,
		TopKURL:               cfg.TopKURL,
		MaxIterations:         cfg.MaxIterations,
		SearchParallel:        cfg.SearchParallel,
		ScrapeParallel:        cfg.ScrapeParallel,
		SummaryParallel:       cfg.SummaryParallel,
		VerifyClaims:          cfg.VerifyClaims,
	}

	if cfg.VerifyClaims {
		o.Extractor = &claims.Extractor{Gateway: gateway(), Model: model(cfg.VerifyModel)}
		o.Verifier = &claims.Verifier{Gateway: gateway(), Model: model(cfg.VerifyModel), Scraper: scraper, Threshold: cfg.VerifyThreshold}
	}

	if cfg.ShowPlan {
		log.Info().Str("query", queryText).Msg("running research plan")
	}

	result, err := o.Run(ctx, queryText)
	if err != nil {
		return err
	}

	return writeReport(cfg, result)
}

func writeReport(cfg config.Config, result orchestrator.Result) error {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = "."
	}
	markdown := report.Render(result.Report, result.Gaps, result.Verification)
	markdown = report.AppendTableOfContents(markdown, 6)
	markdown = report.AppendGlossary(markdown)
	markdown = report.EnrichSourceURLs(markdown, nil)
	markdown = report.ManageAppendices(markdown)
	markdown = report.AppendFooter(markdown, report.Meta{
		Model:       cfg.DefaultModel,
		LLMEndpoint: cfg.LLMEndpoint,
		GeneratedAt: result.Report.GeneratedAt,
	}, len(result.Report.Sources))

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ext := "md"
	switch cfg.OutputFormat {
	case "text":
		ext = "txt"
	case "pdf":
		ext = "pdf"
	}
	outPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("report_%s.%s", result.Report.GeneratedAt.UTC().Format("20060102_150405"), ext))

	switch cfg.OutputFormat {
	case "pdf":
		if err := report.WritePDF(markdown, outPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	case "text":
		if err := os.WriteFile(outPath, []byte(stripMarkdown(markdown)), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	default:
		if err := os.WriteFile(outPath, []byte(markdown), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	manifest, err := report.BuildManifest(report.Meta{Model: cfg.DefaultModel, LLMEndpoint: cfg.LLMEndpoint, GeneratedAt: result.Report.GeneratedAt}, result.SelectedSummaries)
	if err == nil {
		_ = os.WriteFile(report.SidecarPath(outPath), manifest, 0o644)
	}

	log.Info().Str("out", outPath).Msg("wrote report")
	return nil
}

func stripMarkdown(markdown string) string {
	s := strings.ReplaceAll(markdown, "## ", "")
	s = strings.ReplaceAll(s, "# ", "")
	s = strings.ReplaceAll(s, "**", "")
	return s
}
