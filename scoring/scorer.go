// Package scoring turns a feature set and classification into a bounded,
// explainable risk score. The function is deterministic and never fails:
// missing signals contribute zero, and every tier above low carries at least
// one human-readable factor explanation.
package scoring

import (
	"fmt"
	"sort"

	"verdict/classifier"
)

// Risk tiers, inclusive lower bound.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Factor names as they appear in Result.Factors.
const (
	FactorEntropy  = "entropy"
	FactorStrings  = "suspicious_strings"
	FactorCategory = "file_type"
	FactorSize     = "file_size"
	FactorMismatch = "extension_mismatch"
	FactorHidden   = "hidden_file"
)

// Weights are the fractional contribution of each factor and must sum to 1.0.
type Weights struct {
	Entropy  float64 `json:"entropy"`
	Strings  float64 `json:"strings"`
	Category float64 `json:"category"`
	Size     float64 `json:"size"`
	Mismatch float64 `json:"mismatch"`
	Hidden   float64 `json:"hidden"`
}

// Sum returns the total weight, used for validation.
func (w Weights) Sum() float64 {
	return w.Entropy + w.Strings + w.Category + w.Size + w.Mismatch + w.Hidden
}

// DefaultWeights mirror the documented 20/25/20/10/15/10 split. They are
// starting points for operators to retune, not calibrated ground truth.
func DefaultWeights() Weights {
	return Weights{
		Entropy:  0.20,
		Strings:  0.25,
		Category: 0.20,
		Size:     0.10,
		Mismatch: 0.15,
		Hidden:   0.10,
	}
}

// Thresholds are the inclusive lower bounds of the medium, high, and critical
// tiers. Scores below Medium are low.
type Thresholds struct {
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 25, High: 50, Critical: 75}
}

// DefaultNotable is the sub-score a factor must exceed to earn a line in
// RiskFactors.
const DefaultNotable = 20.0

// Input carries the signals the scorer consumes. Zero values are neutral.
type Input struct {
	Entropy           float64
	SuspiciousStrings int
	Category          classifier.Category
	Method            classifier.Method
	SizeBytes         int64
	Extension         string
	Hidden            bool
}

// Result is immutable once returned.
type Result struct {
	Score       float64            `json:"score"`
	RiskLevel   string             `json:"risk_level"`
	IsHighRisk  bool               `json:"is_high_risk"`
	RiskFactors []string           `json:"risk_factors"`
	Factors     map[string]float64 `json:"factors"`
}

type Scorer struct {
	weights    Weights
	thresholds Thresholds
	notable    float64
}

// NewScorer builds a scorer. Zero-valued weights or thresholds fall back to
// the defaults; a non-positive notable threshold falls back to DefaultNotable.
func NewScorer(weights Weights, thresholds Thresholds, notable float64) *Scorer {
	if weights.Sum() == 0 {
		weights = DefaultWeights()
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	if notable <= 0 {
		notable = DefaultNotable
	}
	return &Scorer{weights: weights, thresholds: thresholds, notable: notable}
}

// Score computes the weighted total and its explanation.
func (s *Scorer) Score(in Input) Result {
	subs := map[string]float64{
		FactorEntropy:  scoreEntropy(in.Entropy),
		FactorStrings:  scoreStrings(in.SuspiciousStrings),
		FactorCategory: scoreCategory(in.Category),
		FactorSize:     scoreSize(in.SizeBytes),
		FactorMismatch: scoreMismatch(in),
		FactorHidden:   scoreHidden(in.Hidden),
	}

	total := subs[FactorEntropy]*s.weights.Entropy +
		subs[FactorStrings]*s.weights.Strings +
		subs[FactorCategory]*s.weights.Category +
		subs[FactorSize]*s.weights.Size +
		subs[FactorMismatch]*s.weights.Mismatch +
		subs[FactorHidden]*s.weights.Hidden
	total = clamp(total, 0, 100)

	level := s.riskLevel(total)
	return Result{
		Score:       total,
		RiskLevel:   level,
		IsHighRisk:  total >= s.thresholds.High,
		RiskFactors: s.explain(in, subs, level),
		Factors:     subs,
	}
}

func (s *Scorer) riskLevel(score float64) string {
	switch {
	case score >= s.thresholds.Critical:
		return RiskCritical
	case score >= s.thresholds.High:
		return RiskHigh
	case score >= s.thresholds.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

type factorWeight struct {
	name   string
	weight float64
}

// orderedFactors lists factors by descending weight; ties keep the canonical
// order so the explanation ordering is stable across runs.
func (s *Scorer) orderedFactors() []factorWeight {
	ordered := []factorWeight{
		{FactorEntropy, s.weights.Entropy},
		{FactorStrings, s.weights.Strings},
		{FactorCategory, s.weights.Category},
		{FactorSize, s.weights.Size},
		{FactorMismatch, s.weights.Mismatch},
		{FactorHidden, s.weights.Hidden},
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].weight > ordered[j].weight
	})
	return ordered
}

func (s *Scorer) explain(in Input, subs map[string]float64, level string) []string {
	factors := make([]string, 0, 3)
	for _, fw := range s.orderedFactors() {
		if subs[fw.name] > s.notable {
			factors = append(factors, describe(fw.name, in, subs[fw.name]))
		}
	}
	// A tier above low must always be explainable, even when the notable
	// threshold is configured above every sub-score.
	if len(factors) == 0 && level != RiskLow {
		top := s.orderedFactors()[0]
		best := top
		for _, fw := range s.orderedFactors() {
			if subs[fw.name]*fw.weight > subs[best.name]*best.weight {
				best = fw
			}
		}
		factors = append(factors, describe(best.name, in, subs[best.name]))
	}
	return factors
}

func describe(factor string, in Input, sub float64) string {
	switch factor {
	case FactorEntropy:
		return fmt.Sprintf("entropy %.2f suggests packed or encrypted content", in.Entropy)
	case FactorStrings:
		return fmt.Sprintf("%d suspicious strings found", in.SuspiciousStrings)
	case FactorCategory:
		return fmt.Sprintf("file type %s carries elevated baseline risk", in.Category)
	case FactorSize:
		return fmt.Sprintf("unusual file size (%d bytes)", in.SizeBytes)
	case FactorMismatch:
		return fmt.Sprintf("extension %q does not match detected type %s", in.Extension, in.Category)
	case FactorHidden:
		return "file is hidden"
	default:
		return fmt.Sprintf("factor %s scored %.0f", factor, sub)
	}
}

func scoreEntropy(entropy float64) float64 {
	switch {
	case entropy > 7.5:
		return 100
	case entropy > 7.0:
		return 80
	case entropy > 6.5:
		return 60
	case entropy > 6.0:
		return 40
	case entropy > 5.5:
		return 20
	default:
		return 0
	}
}

func scoreStrings(count int) float64 {
	switch {
	case count >= 10:
		return 100
	case count >= 7:
		return 80
	case count >= 5:
		return 60
	case count >= 3:
		return 40
	case count >= 1:
		return 20
	default:
		return 0
	}
}

var categoryPriors = map[classifier.Category]float64{
	classifier.CategoryExecutable: 60,
	classifier.CategoryScript:     50,
	classifier.CategoryArchive:    40,
	classifier.CategoryDocument:   30,
	classifier.CategoryUnknown:    20,
	classifier.CategoryImage:      10,
	classifier.CategoryMedia:      10,
}

func scoreCategory(category classifier.Category) float64 {
	if prior, ok := categoryPriors[category]; ok {
		return prior
	}
	return 20
}

func scoreSize(size int64) float64 {
	switch {
	case size < 1024:
		return 30
	case size < 10*1024:
		return 20
	case size > 100*1024*1024:
		return 30
	default:
		return 0
	}
}

// scoreMismatch flags disagreement between the extension's implied category
// and the detected one. Executables masquerading behind benign extensions
// score hardest.
func scoreMismatch(in Input) float64 {
	if in.Category == classifier.CategoryExecutable {
		if in.Extension == "" {
			return 60
		}
		expected, known := classifier.ExpectedCategory(in.Extension)
		if !known {
			return 60
		}
		switch expected {
		case classifier.CategoryExecutable, classifier.CategoryScript:
			return 0
		case classifier.CategoryDocument:
			return 80
		default:
			return 100
		}
	}
	if in.Method != classifier.MethodSignature || in.Extension == "" {
		return 0
	}
	expected, known := classifier.ExpectedCategory(in.Extension)
	if known && expected != in.Category {
		return 40
	}
	return 0
}

func scoreHidden(hidden bool) float64 {
	if hidden {
		return 40
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
