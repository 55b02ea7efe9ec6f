package category

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRouterRoute(t *testing.T) {
	router := MustDefault()

	tests := []struct {
		path     string
		expected string
	}{
		{"yellow_tripdata_2023-01.parquet", "yellow"},
		{"/data/trip data/green_tripdata_2019-12.parquet", "green"},
		{"s3://nyc-tlc/trip data/fhv_tripdata_2021-03.parquet", "fhv"},
		{"s3://nyc-tlc/trip data/fhvhv_tripdata_2021-03.parquet", "fhv"},
		{"/data/YELLOW/2015/tripdata_2015-02.parquet", "yellow"},
		{"/data/other/tripdata_2015-02.parquet", DefaultCategory},
	}

	for _, tt := range tests {
		if got := router.Route(tt.path); got != tt.expected {
			t.Errorf("Route(%q) = %s, want %s", tt.path, got, tt.expected)
		}
	}
}

func TestRouterRuleOrder(t *testing.T) {
	// yellow is checked before green even when both tokens appear.
	router := MustDefault()
	if got := router.Route("/green/yellow_tripdata_2020-01.parquet"); got != "yellow" {
		t.Errorf("expected yellow, got %s", got)
	}
}

func TestRouterRank(t *testing.T) {
	router := MustDefault()

	if router.Rank("yellow") != 0 || router.Rank("green") != 0 {
		t.Error("yellow and green should rank first")
	}
	if router.Rank("fhv") != 1 {
		t.Errorf("fhv rank = %d, want 1", router.Rank("fhv"))
	}
	if router.Rank(DefaultCategory) != DefaultRank {
		t.Errorf("unknown rank = %d, want %d", router.Rank(DefaultCategory), DefaultRank)
	}
}

func TestNewRouterValidation(t *testing.T) {
	if _, err := NewRouter(nil); err == nil {
		t.Error("expected error for empty rules")
	}

	if _, err := NewRouter([]Rule{{Category: "", Tokens: []string{"x"}}}); err == nil {
		t.Error("expected error for empty category")
	}

	if _, err := NewRouter([]Rule{{Category: "x"}}); err == nil {
		t.Error("expected error for rule without tokens")
	}

	_, err := NewRouter([]Rule{
		{Category: "x", Tokens: []string{"a"}},
		{Category: "x", Tokens: []string{"b"}},
	})
	if !errors.Is(err, ErrDuplicateCategory) {
		t.Errorf("expected ErrDuplicateCategory, got %v", err)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := `categories:
  - category: hvfhv
    tokens: [fhvhv, HVFHS]
    rank: 2
  - category: fhv
    tokens: [fhv]
    rank: 1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	router, err := NewRouter(rules)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	if got := router.Route("fhvhv_tripdata_2022-01.parquet"); got != "hvfhv" {
		t.Errorf("Route = %s, want hvfhv", got)
	}
	if got := router.Route("hvfhs_tripdata_2022-01.parquet"); got != "hvfhv" {
		t.Errorf("tokens should match case-insensitively, got %s", got)
	}
	if router.Rank("hvfhv") != 2 {
		t.Errorf("Rank(hvfhv) = %d, want 2", router.Rank("hvfhv"))
	}
}
