package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jstevewhite/rsrch/internal/config"
)

func TestValidateConfig_RequiresLLMAPIKey(t *testing.T) {
	cfg := config.Defaults()
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("expected an error for a missing llm_api_key")
	}
}

func TestValidateConfig_RejectsSubOneParallelism(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMAPIKey = "sk-test"
	cfg.ScrapeParallel = 0
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("expected an error for scrape_parallel=0")
	}
}

func TestValidateConfig_AcceptsParallelismAboveThirtyTwo(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMAPIKey = "sk-test"
	cfg.SearchParallel = 64
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("expected >32 parallelism to be accepted with a warning, got %v", err)
	}
}

func TestApplyLogLevel_AcceptsEverySpecLevel(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARNING", "ERROR", "bogus", ""} {
		applyLogLevel(level) // must not panic on any input
	}
}

func TestStripMarkdown_RemovesHeadingAndBoldMarkers(t *testing.T) {
	out := stripMarkdown("# Title\n\n## Section\n\n**bold** text")
	if strings.Contains(out, "#") || strings.Contains(out, "**") {
		t.Fatalf("expected markdown markers stripped, got %q", out)
	}
}

func TestLoadConfig_LayersFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rsrch.yaml")
	body := "search_provider: tavily\nmax_iterations: 3\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	t.Setenv("LLM_API_KEY", "sk-from-env")

	args := []string{"--config", cfgPath, "--output", dir, "what is grounding in RAG"}
	cfg, queryText, err := loadConfig(args)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if queryText != "what is grounding in RAG" {
		t.Fatalf("expected positional query captured, got %q", queryText)
	}
	if cfg.SearchProvider != "tavily" {
		t.Fatalf("expected file value to survive, got %q", cfg.SearchProvider)
	}
	if cfg.MaxIterations != 3 {
		t.Fatalf("expected file value MaxIterations=3, got %d", cfg.MaxIterations)
	}
	if cfg.LLMAPIKey != "sk-from-env" {
		t.Fatalf("expected env value for LLMAPIKey, got %q", cfg.LLMAPIKey)
	}
	if cfg.OutputDir != dir {
		t.Fatalf("expected flag value to override OutputDir, got %q", cfg.OutputDir)
	}
	if cfg.LogLevel != "INFO" {
		t.Fatalf("expected default LogLevel, got %q", cfg.LogLevel)
	}
}

func TestLoadConfig_RejectsMissingPositionalQuery(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-from-env")
	if _, _, err := loadConfig([]string{"--output", t.TempDir()}); err == nil {
		t.Fatalf("expected an error for a missing positional query")
	}
}
