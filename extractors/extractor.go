// Package extractors contributes category-specific feature keys to the merged
// feature set. Variants are selected by the classified category; unknown or
// unhandled categories get the Null variant, so the merge step never has to
// branch on a missing handler. A malformed structure yields a partial map with
// parse_error set instead of an error crossing the extractor boundary.
package extractors

import (
	"verdict/classifier"
)

// Features is the partial feature map one extractor contributes.
type Features map[string]interface{}

type Extractor interface {
	Name() string
	Extract(content []byte) Features
}

// ForCategory selects the extractor variant for a category. It always returns
// a usable extractor.
func ForCategory(category classifier.Category) Extractor {
	switch category {
	case classifier.CategoryExecutable:
		return ExecutableExtractor{}
	case classifier.CategoryArchive:
		return ArchiveExtractor{}
	case classifier.CategoryImage:
		return ImageExtractor{}
	case classifier.CategoryDocument:
		return DocumentExtractor{}
	default:
		return NullExtractor{}
	}
}

// NullExtractor is the terminal variant for categories without structural
// parsers. It always returns an empty map.
type NullExtractor struct{}

func (NullExtractor) Name() string { return "null" }

func (NullExtractor) Extract(content []byte) Features { return Features{} }

// guard converts a parser panic on adversarial input into the parse_error
// marker, keeping the degradation explicit and visible in the feature set.
func guard(feats Features) {
	if r := recover(); r != nil {
		feats["parse_error"] = true
	}
}
