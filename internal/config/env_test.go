package config

import "testing"

func TestApplyEnv_FillsOnlyZeroValuedFields(t *testing.T) {
	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("SEARCH_RESULTS_PER_QUERY", "7")
	t.Setenv("TOP_K_URL", "0.5")
	t.Setenv("VERIFY_CLAIMS", "true")
	t.Setenv("EXCLUDE_DOMAINS", "a.com, b.com ,")

	cfg := Config{DefaultModel: "already-set"}
	ApplyEnv(&cfg)

	if cfg.LLMAPIKey != "from-env" {
		t.Fatalf("expected LLMAPIKey from env, got %q", cfg.LLMAPIKey)
	}
	if cfg.SearchResultsPerQuery != 7 {
		t.Fatalf("expected SearchResultsPerQuery=7, got %d", cfg.SearchResultsPerQuery)
	}
	if cfg.TopKURL != 0.5 {
		t.Fatalf("expected TopKURL=0.5, got %v", cfg.TopKURL)
	}
	if !cfg.VerifyClaims {
		t.Fatalf("expected VerifyClaims=true")
	}
	if want := []string{"a.com", "b.com"}; len(cfg.ExcludeDomains) != len(want) || cfg.ExcludeDomains[0] != want[0] || cfg.ExcludeDomains[1] != want[1] {
		t.Fatalf("expected ExcludeDomains=%v, got %v", want, cfg.ExcludeDomains)
	}
	if cfg.DefaultModel != "already-set" {
		t.Fatalf("expected pre-set field left untouched, got %q", cfg.DefaultModel)
	}
}

func TestApplyEnv_LeavesFieldsUnsetWhenNoEnvPresent(t *testing.T) {
	cfg := Config{}
	ApplyEnv(&cfg)
	if cfg.LLMAPIKey != "" {
		t.Fatalf("expected LLMAPIKey to stay empty, got %q", cfg.LLMAPIKey)
	}
	if cfg.MaxIterations != 0 {
		t.Fatalf("expected MaxIterations to stay zero, got %d", cfg.MaxIterations)
	}
}

func TestSplitAndTrim_DropsEmptyEntries(t *testing.T) {
	got := splitAndTrim(" a.com ,, b.com,")
	want := []string{"a.com", "b.com"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}
