// Package analyzer runs the per-file triage pipeline: classify, digest,
// extract strings and format features, then score. Each analysis is a pure
// computation over its inputs; the only shared state is the read-only
// configuration, the injected digest cache, and the known-benign set.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/djherbis/times"

	"verdict/classifier"
	"verdict/extractors"
	"verdict/fuzzy"
	"verdict/hasher"
	"verdict/logger"
	"verdict/patterns"
	"verdict/scoring"
	"verdict/tracing"
	"verdict/utils"
)

// Options is the immutable per-process configuration the analyzer consumes.
type Options struct {
	MaxFileSize     int64
	PerFileTimeout  time.Duration
	MinStringLength int
	MaxSuspicious   int
	Patterns        []string
	HashAlgorithms  []string
	FuzzyAlgorithms []string
	FuzzyMinSize    int64
	FuzzyMaxSize    int64
	Weights         scoring.Weights
	Thresholds      scoring.Thresholds
	Notable         float64
	ContentReadMode string
	MmapMinSize     int64
	StreamChunkSize int
}

type Analyzer struct {
	opts     Options
	patterns *patterns.Extractor
	scorer   *scoring.Scorer
	cache    *DigestCache
	known    *KnownSet
}

// New builds an analyzer. cache and known may be nil.
func New(opts Options, cache *DigestCache, known *KnownSet) *Analyzer {
	if len(opts.HashAlgorithms) == 0 {
		opts.HashAlgorithms = []string{"md5", "sha1", "sha256"}
	}
	return &Analyzer{
		opts:     opts,
		patterns: patterns.NewExtractor(opts.MinStringLength, opts.MaxSuspicious, opts.Patterns),
		scorer:   scoring.NewScorer(opts.Weights, opts.Thresholds, opts.Notable),
		cache:    cache,
		known:    known,
	}
}

// AnalyzeFile runs the full pipeline over one file. It returns a complete
// record or one of the two fatal error kinds; it never returns both.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*AnalysisRecord, error) {
	ctx, endTask := tracing.StartTask(ctx, "analyze_file")
	tracing.Log(ctx, "file", path)
	defer endTask()

	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, &ReadError{Path: path, Err: statErr}
	}
	if info.IsDir() {
		return nil, &ReadError{Path: path, Err: errors.New("is a directory")}
	}
	if a.opts.MaxFileSize > 0 && info.Size() > a.opts.MaxFileSize {
		return nil, &ResourceLimitExceededError{Path: path, Limit: "size"}
	}

	if a.opts.PerFileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.PerFileTimeout)
		defer cancel()
	}

	content, readErr := readFileContent(path, a.opts.MaxFileSize, a.opts.ContentReadMode, a.opts.MmapMinSize, a.opts.StreamChunkSize)
	if readErr != nil {
		return nil, &ReadError{Path: path, Err: readErr}
	}
	if err := a.limitErr(ctx, path); err != nil {
		return nil, err
	}

	key := cacheKey(path, info.Size(), info.ModTime().UnixNano())
	record, err := a.analyzeContent(ctx, path, filepath.Base(path), content, &key)
	if err != nil {
		return nil, err
	}

	record.Features.ModifiedAt = info.ModTime().UTC().Format(time.RFC3339)
	if ts, tErr := times.Stat(path); tErr == nil && ts.HasBirthTime() {
		record.Features.CreatedAt = ts.BirthTime().UTC().Format(time.RFC3339)
	}
	return record, nil
}

// AnalyzeReader runs the pipeline over a caller-owned byte stream. name is
// used for extension and hidden-attribute signals; there is no path identity,
// so the digest cache is bypassed.
func (a *Analyzer) AnalyzeReader(ctx context.Context, name string, r io.Reader) (*AnalysisRecord, error) {
	if a.opts.PerFileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.PerFileTimeout)
		defer cancel()
	}

	var limited io.Reader = r
	if a.opts.MaxFileSize > 0 {
		limited = io.LimitReader(r, a.opts.MaxFileSize+1)
	}
	content, err := io.ReadAll(limited)
	if err != nil {
		return nil, &ReadError{Path: name, Err: err}
	}
	if a.opts.MaxFileSize > 0 && int64(len(content)) > a.opts.MaxFileSize {
		return nil, &ResourceLimitExceededError{Path: name, Limit: "size"}
	}
	return a.analyzeContent(ctx, name, filepath.Base(name), content, nil)
}

// analyzeContent is the shared core. cacheKey is nil when the source has no
// stable identity.
func (a *Analyzer) analyzeContent(ctx context.Context, path, name string, content []byte, key *uint64) (*AnalysisRecord, error) {
	ext := utils.Extension(name)

	head := content
	if len(head) > classifier.HeaderSize {
		head = head[:classifier.HeaderSize]
	}
	classification := classifier.Classify(head, ext)

	digests, entropy, err := a.digest(ctx, path, content, key)
	if err != nil {
		return nil, err
	}

	endRegion := tracing.StartRegion(ctx, "extract_strings")
	stringsResult := a.patterns.Extract(content)
	endRegion()
	if err := a.limitErr(ctx, path); err != nil {
		return nil, err
	}

	endRegion = tracing.StartRegion(ctx, "extract_format")
	formatFeatures := extractors.ForCategory(classification.Category).Extract(content)
	endRegion()
	if err := a.limitErr(ctx, path); err != nil {
		return nil, err
	}

	features := FeatureSet{
		Size:              int64(len(content)),
		Extension:         ext,
		Hidden:            utils.IsHiddenName(name),
		Entropy:           entropy,
		Digests:           digests,
		TotalStrings:      stringsResult.TotalStrings,
		SuspiciousStrings: stringsResult.Suspicious,
		StringsTruncated:  stringsResult.Truncated,
		FuzzyHashes:       a.fuzzyHashes(path, content),
	}
	if len(formatFeatures) > 0 {
		features.Format = formatFeatures
	}
	if marked, ok := formatFeatures["parse_error"].(bool); ok && marked {
		features.ParseError = true
	}

	score := a.scorer.Score(scoring.Input{
		Entropy:           features.Entropy,
		SuspiciousStrings: len(features.SuspiciousStrings),
		Category:          classification.Category,
		Method:            classification.Method,
		SizeBytes:         features.Size,
		Extension:         ext,
		Hidden:            features.Hidden,
	})

	return &AnalysisRecord{
		Path:           path,
		Name:           name,
		Classification: classification,
		Features:       features,
		Score:          score,
		KnownBenign:    a.known.Contains(features.Digests.SHA256),
	}, nil
}

func (a *Analyzer) digest(ctx context.Context, path string, content []byte, key *uint64) (hasher.DigestSet, float64, error) {
	if key != nil {
		if entry, hit := a.cache.get(*key); hit {
			logger.Debugf("Digest cache hit for %s", path)
			return entry.digests, entry.entropy, nil
		}
	}

	endRegion := tracing.StartRegion(ctx, "digest")
	result, err := hasher.DigestReader(ctx, bytes.NewReader(content), a.opts.HashAlgorithms, 0)
	endRegion()
	if err != nil {
		if limitErr := a.limitErr(ctx, path); limitErr != nil {
			return hasher.DigestSet{}, 0, limitErr
		}
		return hasher.DigestSet{}, 0, &ReadError{Path: path, Err: err}
	}

	if key != nil {
		a.cache.put(*key, cacheEntry{digests: result.Digests, entropy: result.Entropy})
	}
	return result.Digests, result.Entropy, nil
}

func (a *Analyzer) fuzzyHashes(path string, content []byte) map[string]string {
	if len(a.opts.FuzzyAlgorithms) == 0 {
		return nil
	}
	size := int64(len(content))
	if size < a.opts.FuzzyMinSize {
		return nil
	}
	if a.opts.FuzzyMaxSize > 0 && size > a.opts.FuzzyMaxSize {
		return nil
	}
	hashes := make(map[string]string, len(a.opts.FuzzyAlgorithms))
	for _, name := range a.opts.FuzzyAlgorithms {
		h, ok := fuzzy.Lookup(name)
		if !ok {
			logger.Warnf("Unknown fuzzy hash algorithm: %s", name)
			continue
		}
		sum, err := h.HashBytes(content)
		if err != nil {
			logger.Debugf("Fuzzy hash %s failed for %s: %v", name, path, err)
			continue
		}
		hashes[h.Name()] = sum
	}
	if len(hashes) == 0 {
		return nil
	}
	return hashes
}

// limitErr maps context expiry onto the error taxonomy: a deadline hit is a
// resource limit, an explicit cancel propagates as-is.
func (a *Analyzer) limitErr(ctx context.Context, path string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &ResourceLimitExceededError{Path: path, Limit: "time", Err: err}
	default:
		return err
	}
}
