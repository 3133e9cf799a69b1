package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// FileProvider loads results from a local JSON fixture for offline tests.
// The file format is an array of {"title","url","snippet"} objects.
type FileProvider struct {
	Path           string
	ExcludeDomains []string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, query string, kind domain.SearchKind, n int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider: path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []domain.SearchResult
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" || r.Title == "" {
			continue
		}
		out = append(out, r)
		if n > 0 && len(out) >= n {
			break
		}
	}
	return FilterAndRank(out, f.ExcludeDomains, f.Name()), nil
}
