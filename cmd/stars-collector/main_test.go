package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/github-stars-collector/internal/testutil"
	"github.com/Sternrassler/github-stars-collector/pkg/credentials"
)

func clearCollectorEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GITHUB_TOKENS", "GITHUB_GRAPHQL_URL", "REPOSITORY_SEARCH_QUERY", "LIMIT", "PAGE_SIZE"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunWithoutCredentials(t *testing.T) {
	clearCollectorEnv(t)

	path := writeConfig(t, "log:\n  level: error\n")
	err := run(path)
	if !errors.Is(err, credentials.ErrNoCredentials) {
		t.Fatalf("run() error = %v, want ErrNoCredentials", err)
	}
}

func TestRunMissingConfigFile(t *testing.T) {
	clearCollectorEnv(t)

	if err := run(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("run() expected error for missing config file")
	}
}

func TestRunCollectsAndExports(t *testing.T) {
	clearCollectorEnv(t)

	mock := testutil.NewMockGitHub()
	defer mock.Close()

	reset := time.Now().Add(time.Hour)
	mock.Enqueue(
		testutil.NewSearchPage([]string{"golang/go", "torvalds/linux"}, "c1", true, 4999, reset),
		testutil.NewSearchPage([]string{"rust-lang/rust"}, "c2", true, 4998, reset),
	)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "repos.csv")
	jsonPath := filepath.Join(dir, "repos.json")
	summaryPath := filepath.Join(dir, "summary.json")

	path := writeConfig(t, fmt.Sprintf(`
github:
  tokens:
    - test-token
  endpoint: %s
collector:
  limit: 3
  page_size: 2
  page_delay: 0s
export:
  csv_path: %s
  json_path: %s
  summary_path: %s
log:
  level: error
`, mock.URL(), csvPath, jsonPath, summaryPath))

	if err := run(path); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if got := mock.RequestCount(); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
	for _, tok := range mock.Tokens() {
		if tok != "test-token" {
			t.Errorf("token = %q, want test-token", tok)
		}
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header plus 3 records", len(rows))
	}
	if rows[1][0] != "golang/go" || rows[3][0] != "rust-lang/rust" {
		t.Errorf("csv record order = %q, %q", rows[1][0], rows[3][0])
	}

	for _, p := range []string{jsonPath, summaryPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected export file %s: %v", p, err)
		}
	}
}
