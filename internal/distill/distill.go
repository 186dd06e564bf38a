// Package distill implements rule-based knowledge distillation over
// free-form text.
//
// The pipeline has three independent operations, all pure functions of
// their input:
//   - ExtractEntities: scan text against a catalog of category rules
//   - ExtractRelationships: co-occurrence triples scoped by sentence
//   - Summarize: token-bounded truncation summary
//
// Distill runs all three and wraps the output in a Result envelope for
// the CLI, HTTP, and MCP surfaces. No linguistic parsing is attempted:
// the rules are coarse, and ambiguity (a string matching two categories)
// is reported, not resolved.
package distill

import (
	"regexp"
	"time"
)

// Distiller holds the compiled pattern catalog. Construct once per
// process or consumer; the catalog is immutable afterward, so a single
// Distiller may serve any number of concurrent calls.
type Distiller struct {
	rules         []categoryRule
	summaryBudget int
}

// Option configures a Distiller.
type Option func(*Distiller)

// WithRule appends an extra category rule to the catalog. The caller
// supplies a compiled pattern, keeping rule compilation failures at
// startup (regexp.MustCompile in an init path) rather than in here.
func WithRule(category Category, pattern *regexp.Regexp) Option {
	return func(d *Distiller) {
		d.rules = append(d.rules, categoryRule{category: category, pattern: pattern})
	}
}

// WithSummaryBudget sets the token budget Distill uses for its summary.
// Non-positive values are ignored and the default budget is kept.
func WithSummaryBudget(maxTokens int) Option {
	return func(d *Distiller) {
		if maxTokens > 0 {
			d.summaryBudget = maxTokens
		}
	}
}

// New builds a Distiller with the built-in catalog.
func New(opts ...Option) *Distiller {
	d := &Distiller{
		rules:         defaultRules(),
		summaryBudget: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result is the structured output of one full distillation pass.
type Result struct {
	Timestamp          time.Time `json:"timestamp"`
	Entities           Entities  `json:"entities"`
	Relationships      []Triple  `json:"relationships"`
	Summary            string    `json:"summary"`
	TotalEntities      int       `json:"total_entities"`
	TotalRelationships int       `json:"total_relationships"`
}

// Distill runs extraction, relationship inference, and summarization
// over text and returns the combined envelope. The summary uses the
// Distiller's configured budget (DefaultMaxTokens unless overridden).
func (d *Distiller) Distill(text string) *Result {
	entities := d.ExtractEntities(text)
	relationships := d.ExtractRelationships(text, entities)

	// The budget is validated at construction, so Summarize cannot fail.
	summary, _ := d.Summarize(text, d.summaryBudget)

	return &Result{
		Timestamp:          time.Now().UTC(),
		Entities:           entities,
		Relationships:      relationships,
		Summary:            summary,
		TotalEntities:      entities.Total(),
		TotalRelationships: len(relationships),
	}
}
