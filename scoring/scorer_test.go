package scoring

import (
	"math"
	"strings"
	"testing"

	"verdict/classifier"
)

func defaultScorer() *Scorer {
	return NewScorer(DefaultWeights(), DefaultThresholds(), DefaultNotable)
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	if diff := math.Abs(DefaultWeights().Sum() - 1.0); diff > 1e-9 {
		t.Fatalf("default weights sum off by %g", diff)
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	s := defaultScorer()
	cases := []struct {
		score float64
		level string
	}{
		{0, RiskLow},
		{24.999, RiskLow},
		{25.0, RiskMedium},
		{49.999, RiskMedium},
		{50.0, RiskHigh},
		{74.999, RiskHigh},
		{75.0, RiskCritical},
		{100, RiskCritical},
	}
	for _, tc := range cases {
		if got := s.riskLevel(tc.score); got != tc.level {
			t.Errorf("riskLevel(%v) = %s, want %s", tc.score, got, tc.level)
		}
	}
}

func TestScoreBounded(t *testing.T) {
	s := defaultScorer()
	inputs := []Input{
		{},
		{Entropy: 8, SuspiciousStrings: 500, Category: classifier.CategoryExecutable,
			Method: classifier.MethodSignature, Extension: "jpg", Hidden: true},
		{Entropy: -1, SuspiciousStrings: -5, SizeBytes: -100},
	}
	for _, in := range inputs {
		r := s.Score(in)
		if r.Score < 0 || r.Score > 100 {
			t.Errorf("score %v out of range for %+v", r.Score, in)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := defaultScorer()
	in := Input{
		Entropy:           7.2,
		SuspiciousStrings: 4,
		Category:          classifier.CategoryExecutable,
		Method:            classifier.MethodSignature,
		SizeBytes:         2048,
		Extension:         "exe",
	}
	first := s.Score(in)
	for i := 0; i < 10; i++ {
		again := s.Score(in)
		if again.Score != first.Score || again.RiskLevel != first.RiskLevel {
			t.Fatalf("score drifted: %+v vs %+v", again, first)
		}
		for j := range first.RiskFactors {
			if again.RiskFactors[j] != first.RiskFactors[j] {
				t.Fatalf("factor order drifted at %d", j)
			}
		}
	}
}

func TestHighEntropyContributesFactor(t *testing.T) {
	s := defaultScorer()
	r := s.Score(Input{Entropy: 7.9, Category: classifier.CategoryUnknown, SizeBytes: 1 << 20})
	found := false
	for _, f := range r.RiskFactors {
		if strings.Contains(f, "entropy") {
			found = true
		}
	}
	if !found {
		t.Fatalf("entropy factor missing: %v", r.RiskFactors)
	}
}

func TestSingleSuspiciousStringNotCritical(t *testing.T) {
	s := defaultScorer()
	r := s.Score(Input{SuspiciousStrings: 1, Category: classifier.CategoryUnknown, SizeBytes: 4096})
	if r.RiskLevel == RiskCritical {
		t.Fatalf("one string match reached critical: %+v", r)
	}
	if r.Factors[FactorStrings] != 20 {
		t.Fatalf("strings sub-score = %v, want 20", r.Factors[FactorStrings])
	}
}

func TestExtensionMismatchFactor(t *testing.T) {
	s := defaultScorer()
	r := s.Score(Input{
		Category:  classifier.CategoryExecutable,
		Method:    classifier.MethodSignature,
		Extension: "jpg",
		SizeBytes: 4096,
	})
	if r.Factors[FactorMismatch] != 100 {
		t.Fatalf("mismatch sub-score = %v, want 100", r.Factors[FactorMismatch])
	}
	found := false
	for _, f := range r.RiskFactors {
		if strings.Contains(f, "does not match") {
			found = true
		}
	}
	if !found {
		t.Fatalf("mismatch explanation missing: %v", r.RiskFactors)
	}
}

func TestMatchingExtensionNoMismatch(t *testing.T) {
	s := defaultScorer()
	r := s.Score(Input{
		Category:  classifier.CategoryExecutable,
		Method:    classifier.MethodSignature,
		Extension: "exe",
		SizeBytes: 1 << 20,
	})
	if r.Factors[FactorMismatch] != 0 {
		t.Fatalf("mismatch sub-score = %v, want 0", r.Factors[FactorMismatch])
	}
}

func TestAboveLowAlwaysExplained(t *testing.T) {
	// Notable threshold above every sub-score still yields an explanation.
	s := NewScorer(DefaultWeights(), DefaultThresholds(), 99.5)
	r := s.Score(Input{
		Entropy:           7.2,
		SuspiciousStrings: 6,
		Category:          classifier.CategoryExecutable,
		Method:            classifier.MethodSignature,
		Extension:         "txt",
		Hidden:            true,
		SizeBytes:         512,
	})
	if r.RiskLevel == RiskLow {
		t.Fatalf("expected a tier above low, got %+v", r)
	}
	if len(r.RiskFactors) == 0 {
		t.Fatal("tier above low carried no explanation")
	}
}

func TestFactorOrderingByWeight(t *testing.T) {
	s := defaultScorer()
	r := s.Score(Input{
		Entropy:           7.9,
		SuspiciousStrings: 10,
		Category:          classifier.CategoryExecutable,
		SizeBytes:         1 << 20,
	})
	// strings (0.25) outranks entropy (0.20) which outranks size (0.10).
	if len(r.RiskFactors) < 2 {
		t.Fatalf("expected multiple factors: %v", r.RiskFactors)
	}
	if !strings.Contains(r.RiskFactors[0], "suspicious strings") {
		t.Fatalf("highest-weighted factor must lead: %v", r.RiskFactors)
	}
	if !strings.Contains(r.RiskFactors[1], "entropy") {
		t.Fatalf("entropy must follow strings: %v", r.RiskFactors)
	}
}

func TestNeutralDefaults(t *testing.T) {
	s := defaultScorer()
	r := s.Score(Input{Category: classifier.CategoryUnknown, SizeBytes: 1 << 20})
	// Only the unknown-category prior contributes: 20 * 0.20.
	if r.Score != 4 {
		t.Fatalf("score = %v, want 4", r.Score)
	}
	if r.RiskLevel != RiskLow {
		t.Fatalf("level = %s, want low", r.RiskLevel)
	}
}

func TestCustomWeights(t *testing.T) {
	w := Weights{Entropy: 1.0}
	s := NewScorer(w, DefaultThresholds(), DefaultNotable)
	r := s.Score(Input{Entropy: 7.9})
	if r.Score != 100 {
		t.Fatalf("entropy-only weighting: score = %v, want 100", r.Score)
	}
	if r.RiskLevel != RiskCritical {
		t.Fatalf("level = %s, want critical", r.RiskLevel)
	}
}
