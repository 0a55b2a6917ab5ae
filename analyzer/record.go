package analyzer

import (
	"verdict/classifier"
	"verdict/extractors"
	"verdict/hasher"
	"verdict/scoring"
)

// FeatureSet is the merged map of all extracted signals for one file. It
// contains no wall-clock of the analysis itself, so re-running the pipeline
// over an unchanged file reproduces the record byte for byte.
type FeatureSet struct {
	Size              int64               `json:"file_size"`
	Extension         string              `json:"extension"`
	Hidden            bool                `json:"is_hidden"`
	Entropy           float64             `json:"entropy"`
	Digests           hasher.DigestSet    `json:"hashes"`
	TotalStrings      int                 `json:"total_strings"`
	SuspiciousStrings []string            `json:"suspicious_strings"`
	StringsTruncated  bool                `json:"strings_truncated,omitempty"`
	FuzzyHashes       map[string]string   `json:"fuzzy_hashes,omitempty"`
	CreatedAt         string              `json:"created_at,omitempty"`
	ModifiedAt        string              `json:"modified_at,omitempty"`
	Format            extractors.Features `json:"format,omitempty"`
	ParseError        bool                `json:"parse_error,omitempty"`
}

// AnalysisRecord is the full per-file result handed to reporting. Immutable
// once returned.
type AnalysisRecord struct {
	Path           string                    `json:"path"`
	Name           string                    `json:"name"`
	Classification classifier.Classification `json:"classification"`
	Features       FeatureSet                `json:"features"`
	Score          scoring.Result            `json:"score"`
	KnownBenign    bool                      `json:"known_benign,omitempty"`
}
