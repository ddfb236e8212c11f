// Package complexity scores itinerary requests so routing can match them to
// an appropriately capable provider. Scoring is a pure function of the
// request text and options.
package complexity

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/tripgrid/trip-router/internal/types"
)

// FactorType names one of the five scored dimensions.
type FactorType string

const (
	FactorQueryLength    FactorType = "query_length"
	FactorTechnicalTerms FactorType = "technical_terms"
	FactorMultiStep      FactorType = "multi_step"
	FactorContextDepth   FactorType = "context_depth"
	FactorOutputFormat   FactorType = "output_format"
)

// Factor is one scored dimension of a request.
type Factor struct {
	Type        FactorType `json:"type"`
	Weight      float64    `json:"weight"`
	Value       float64    `json:"value"`
	Description string     `json:"description"`
}

// Analysis is the full complexity assessment of one request. Derived
// deterministically; never mutated after creation.
type Analysis struct {
	Level            types.ComplexityLevel `json:"level"`
	Score            float64               `json:"score"`
	Factors          []Factor              `json:"factors"`
	DetectedPatterns []string              `json:"detected_patterns"`
	Reasoning        string                `json:"reasoning"`
	TokenEstimate    int                   `json:"token_estimate"`
}

// Weights combines the five factors; they must sum to 1.0.
type Weights struct {
	QueryLength    float64 `yaml:"query_length"`
	TechnicalTerms float64 `yaml:"technical_terms"`
	MultiStep      float64 `yaml:"multi_step"`
	ContextDepth   float64 `yaml:"context_depth"`
	OutputFormat   float64 `yaml:"output_format"`
}

// DefaultWeights returns the standard factor weighting.
func DefaultWeights() Weights {
	return Weights{
		QueryLength:    0.20,
		TechnicalTerms: 0.25,
		MultiStep:      0.25,
		ContextDepth:   0.15,
		OutputFormat:   0.15,
	}
}

func (w Weights) sum() float64 {
	return w.QueryLength + w.TechnicalTerms + w.MultiStep + w.ContextDepth + w.OutputFormat
}

// Thresholds are the level cut points: score <= Low is low, <= Medium is
// medium, above is high. Must be strictly increasing.
type Thresholds struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
}

// DefaultThresholds returns the standard classification cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.3, Medium: 0.7}
}

// Analyzer computes complexity analyses. Safe for concurrent use.
type Analyzer struct {
	weights    Weights
	thresholds Thresholds
}

// NewAnalyzer validates the configuration and returns an analyzer.
func NewAnalyzer(weights Weights, thresholds Thresholds) (*Analyzer, error) {
	if math.Abs(weights.sum()-1.0) > 1e-9 {
		return nil, fmt.Errorf("factor weights must sum to 1.0, got %g", weights.sum())
	}
	if thresholds.Low <= 0 || thresholds.Medium <= thresholds.Low || thresholds.Medium >= 1 {
		return nil, fmt.Errorf("thresholds must satisfy 0 < low < medium < 1, got low=%g medium=%g",
			thresholds.Low, thresholds.Medium)
	}
	return &Analyzer{weights: weights, thresholds: thresholds}, nil
}

// NewDefaultAnalyzer returns an analyzer with default weights and thresholds.
func NewDefaultAnalyzer() *Analyzer {
	a, err := NewAnalyzer(DefaultWeights(), DefaultThresholds())
	if err != nil {
		panic(err) // defaults are known-valid
	}
	return a
}

// Travel-domain vocabulary used for the technical-terms factor. Grouped by
// concern so pattern detection can reuse the sets.
var (
	travelTerms = []string{
		"itinerary", "accommodation", "accommodations", "flight", "flights",
		"hotel", "hostel", "visa", "passport", "layover", "transit",
		"booking", "reservation", "destination", "destinations",
	}
	logisticsTerms = []string{
		"transportation", "schedule", "route", "routes", "connection",
		"transfer", "departure", "arrival", "accessible", "accessibility",
	}
	budgetTerms = []string{
		"budget", "cost", "costs", "price", "prices", "affordable",
		"expensive", "cheap", "currency", "exchange",
	}
	planningTerms = []string{
		"plan", "planning", "optimize", "compare", "alternative",
		"alternatives", "constraint", "constraints", "multiple", "cities",
	}
)

// domainVocabulary is the union of the term groups, built once for the
// technical-terms factor.
var domainVocabulary = func() map[string]struct{} {
	vocab := make(map[string]struct{})
	for _, set := range [][]string{travelTerms, logisticsTerms, budgetTerms, planningTerms} {
		for _, term := range set {
			vocab[term] = struct{}{}
		}
	}
	return vocab
}()

var sequenceMarkers = []string{
	"first", "second", "third", "fourth", "then", "next", "after",
	"before", "finally", "lastly", "followed by", "step",
}

var conditionalMarkers = []string{
	"if", "unless", "otherwise", "depending", "in case", "when possible",
	"alternatively",
}

var (
	numberedListRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
	bulletListRe   = regexp.MustCompile(`(?m)^\s*[-*•]\s`)
)

// Analyze scores the request. Pure: no I/O, no clock reads, always
// terminates, and identical inputs produce identical output.
func (a *Analyzer) Analyze(req *types.TripRequest) *Analysis {
	query := strings.ToLower(req.Query)
	words := strings.Fields(query)

	factors := []Factor{
		a.queryLengthFactor(words),
		a.technicalTermsFactor(words),
		a.multiStepFactor(query),
		a.contextDepthFactor(req),
		a.outputFormatFactor(query),
	}

	var score float64
	for _, f := range factors {
		score += f.Weight * f.Value
	}

	level := a.classify(score)

	return &Analysis{
		Level:            level,
		Score:            score,
		Factors:          factors,
		DetectedPatterns: detectPatterns(query, factors),
		Reasoning:        buildReasoning(level, score, factors),
		TokenEstimate:    estimateTokens(req.Query),
	}
}

func (a *Analyzer) classify(score float64) types.ComplexityLevel {
	switch {
	case score <= a.thresholds.Low:
		return types.ComplexityLow
	case score <= a.thresholds.Medium:
		return types.ComplexityMedium
	default:
		return types.ComplexityHigh
	}
}

// queryLengthFactor buckets word count into four tiers.
func (a *Analyzer) queryLengthFactor(words []string) Factor {
	var value float64
	switch n := len(words); {
	case n < 20:
		value = 0.1
	case n < 60:
		value = 0.3
	case n < 150:
		value = 0.6
	default:
		value = 0.9
	}
	return Factor{
		Type:        FactorQueryLength,
		Weight:      a.weights.QueryLength,
		Value:       value,
		Description: fmt.Sprintf("%d words", len(words)),
	}
}

// technicalTermsFactor measures domain-vocabulary density: keyword matches
// over total words, scaled by 3 and clamped.
func (a *Analyzer) technicalTermsFactor(words []string) Factor {
	matches := 0
	for _, w := range words {
		if _, ok := domainVocabulary[strings.Trim(w, ".,;:!?()\"'")]; ok {
			matches++
		}
	}

	var value float64
	if len(words) > 0 {
		value = clamp(float64(matches) / float64(len(words)) * 3)
	}
	return Factor{
		Type:        FactorTechnicalTerms,
		Weight:      a.weights.TechnicalTerms,
		Value:       value,
		Description: fmt.Sprintf("%d domain terms in %d words", matches, len(words)),
	}
}

// multiStepFactor counts sequencing, conditional, and list markers at 0.15
// per marker.
func (a *Analyzer) multiStepFactor(query string) Factor {
	markers := 0
	for _, m := range sequenceMarkers {
		markers += countWordOccurrences(query, m)
	}
	for _, m := range conditionalMarkers {
		markers += countWordOccurrences(query, m)
	}
	markers += len(numberedListRe.FindAllString(query, -1))
	markers += len(bulletListRe.FindAllString(query, -1))

	return Factor{
		Type:        FactorMultiStep,
		Weight:      a.weights.MultiStep,
		Value:       clamp(float64(markers) * 0.15),
		Description: fmt.Sprintf("%d reasoning markers", markers),
	}
}

// contextDepthFactor accumulates points for contextual signals: session and
// user preference count full, large token budgets count full, non-default
// temperature and stop sequences count half.
func (a *Analyzer) contextDepthFactor(req *types.TripRequest) Factor {
	var points float64
	var signals []string

	if req.Metadata.SessionID != "" {
		points++
		signals = append(signals, "session")
	}
	if req.Metadata.UserPreference != "" {
		points++
		signals = append(signals, "preference")
	}
	if req.Options.MaxTokens > 2000 {
		points++
		signals = append(signals, "large token budget")
	}
	if req.HasCustomTemperature() {
		points += 0.5
		signals = append(signals, "custom temperature")
	}
	if len(req.Options.StopSequences) > 0 {
		points += 0.5
		signals = append(signals, "stop sequences")
	}

	desc := "no contextual signals"
	if len(signals) > 0 {
		desc = strings.Join(signals, ", ")
	}
	return Factor{
		Type:        FactorContextDepth,
		Weight:      a.weights.ContextDepth,
		Value:       clamp(points * 0.2),
		Description: desc,
	}
}

// outputFormatFactor accumulates fixed increments for formatting keywords.
func (a *Analyzer) outputFormatFactor(query string) Factor {
	var value float64
	var hits []string

	if containsAny(query, "json", "format", "structure") {
		value += 0.3
		hits = append(hits, "structured")
	}
	if containsAny(query, "table", "list", "bullet") {
		value += 0.2
		hits = append(hits, "tabular")
	}
	if containsAny(query, "detailed", "comprehensive") {
		value += 0.25
		hits = append(hits, "detailed")
	}
	if containsAnyWord(query, "section", "sections", "part", "parts", "chapter", "chapters") {
		value += 0.25
		hits = append(hits, "sectioned")
	}

	desc := "plain output"
	if len(hits) > 0 {
		desc = strings.Join(hits, ", ")
	}
	return Factor{
		Type:        FactorOutputFormat,
		Weight:      a.weights.OutputFormat,
		Value:       clamp(value),
		Description: desc,
	}
}

// detectPatterns tags the analysis with named patterns. Diagnostic only;
// patterns never affect the score.
func detectPatterns(query string, factors []Factor) []string {
	byType := make(map[FactorType]float64, len(factors))
	for _, f := range factors {
		byType[f.Type] = f.Value
	}

	var patterns []string
	travelHits := 0
	for _, term := range travelTerms {
		if strings.Contains(query, term) {
			travelHits++
		}
	}
	if travelHits >= 2 {
		patterns = append(patterns, "travel_planning")
	}
	for _, term := range budgetTerms {
		if strings.Contains(query, term) {
			patterns = append(patterns, "budget_constrained")
			break
		}
	}
	if byType[FactorMultiStep] >= 0.3 {
		patterns = append(patterns, "multi_step_reasoning")
	}
	if byType[FactorOutputFormat] >= 0.3 {
		patterns = append(patterns, "structured_output")
	}
	sort.Strings(patterns)
	return patterns
}

func buildReasoning(level types.ComplexityLevel, score float64, factors []Factor) string {
	dominant := factors[0]
	for _, f := range factors[1:] {
		if f.Value > dominant.Value {
			dominant = f
		}
	}
	return fmt.Sprintf("classified %s (score %.2f), dominant factor %s: %s",
		level, score, dominant.Type, dominant.Description)
}

// estimateTokens approximates token count as ceil(chars/4).
func estimateTokens(query string) int {
	return (len(query) + 3) / 4
}

// countWordOccurrences counts whole-word occurrences of marker in text.
// Multi-word markers are matched as substrings.
func countWordOccurrences(text, marker string) int {
	if strings.Contains(marker, " ") {
		return strings.Count(text, marker)
	}
	count := 0
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, ".,;:!?()\"'") == marker {
			count++
		}
	}
	return count
}

// containsAnyWord is the whole-word variant, for terms that are common
// substrings of unrelated words ("part" inside "departure").
func containsAnyWord(text string, terms ...string) bool {
	for _, t := range terms {
		if countWordOccurrences(text, t) > 0 {
			return true
		}
	}
	return false
}

func containsAny(text string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
