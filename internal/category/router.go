// Package category classifies input files into a coarse source category
// (the vehicle type of a trip-record file) and ranks categories for
// scheduling.
package category

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is assigned to files no rule matches.
const DefaultCategory = "unknown"

// DefaultRank orders files whose category has no rule. It ties with the
// least preferred built-in rule.
const DefaultRank = 1

// ErrDuplicateCategory is returned when two rules share a category name.
var ErrDuplicateCategory = errors.New("duplicate category rule")

// Rule maps path tokens to a category.
type Rule struct {
	Category string   `yaml:"category"`
	Tokens   []string `yaml:"tokens"`
	Rank     int      `yaml:"rank"` // lower is scheduled first
}

// DefaultRules returns the built-in NYC TLC categories. Yellow and green
// files carry the documented tpep/lpep column names, so they rank first.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "yellow", Tokens: []string{"yellow"}, Rank: 0},
		{Category: "green", Tokens: []string{"green"}, Rank: 0},
		{Category: "fhv", Tokens: []string{"fhv"}, Rank: 1},
	}
}

// Router routes file paths to categories.
type Router struct {
	rules []Rule
	ranks map[string]int
}

// NewRouter validates the rules and builds a router. Rules are evaluated in
// the given order.
func NewRouter(rules []Rule) (*Router, error) {
	if len(rules) == 0 {
		return nil, errors.New("at least one category rule must be configured")
	}

	ranks := make(map[string]int, len(rules))
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("rule %d: category is empty", i)
		}
		if len(r.Tokens) == 0 {
			return nil, fmt.Errorf("rule %q: at least one token is required", r.Category)
		}
		if _, dup := ranks[r.Category]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCategory, r.Category)
		}
		tokens := make([]string, len(r.Tokens))
		for j, tok := range r.Tokens {
			tokens[j] = strings.ToLower(tok)
		}
		normalized[i] = Rule{Category: r.Category, Tokens: tokens, Rank: r.Rank}
		ranks[r.Category] = r.Rank
	}

	return &Router{rules: normalized, ranks: ranks}, nil
}

// MustDefault returns a router over DefaultRules.
func MustDefault() *Router {
	r, err := NewRouter(DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads a YAML list of rules from path.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules %s: %w", path, err)
	}
	var doc struct {
		Categories []Rule `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse category rules %s: %w", path, err)
	}
	return doc.Categories, nil
}

// Route returns the category of the first rule with a token contained in
// the lower-cased path, or DefaultCategory.
func (r *Router) Route(path string) string {
	lower := strings.ToLower(path)
	for _, rule := range r.rules {
		for _, tok := range rule.Tokens {
			if strings.Contains(lower, tok) {
				return rule.Category
			}
		}
	}
	return DefaultCategory
}

// Rank returns the scheduling rank of a category.
func (r *Router) Rank(category string) int {
	if rank, ok := r.ranks[category]; ok {
		return rank
	}
	return DefaultRank
}

// Rules returns the configured rules.
func (r *Router) Rules() []Rule {
	return r.rules
}
