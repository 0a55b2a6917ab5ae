package analyzer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"verdict/classifier"
	"verdict/scoring"
)

func testOptions() Options {
	return Options{
		MaxFileSize:     10 * 1024 * 1024,
		MinStringLength: 4,
		MaxSuspicious:   100,
	}
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeEmptyFile(t *testing.T) {
	a := New(testOptions(), nil, nil)
	path := writeTempFile(t, "empty", nil)

	record, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if record.Features.Entropy != 0.0 {
		t.Errorf("entropy = %v, want exactly 0.0", record.Features.Entropy)
	}
	if record.Classification.Category != classifier.CategoryUnknown {
		t.Errorf("category = %s, want unknown", record.Classification.Category)
	}
	if record.Score.RiskLevel != scoring.RiskLow {
		t.Errorf("risk = %s, want low", record.Score.RiskLevel)
	}
}

func TestAnalyzeRandomBufferEntropy(t *testing.T) {
	content := make([]byte, 1<<20)
	rand.New(rand.NewSource(42)).Read(content)
	a := New(testOptions(), nil, nil)

	record, err := a.AnalyzeReader(context.Background(), "blob.bin", bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if record.Features.Entropy <= 7.5 {
		t.Fatalf("entropy = %v, want > 7.5", record.Features.Entropy)
	}
	found := false
	for _, f := range record.Score.RiskFactors {
		if strings.Contains(f, "entropy") {
			found = true
		}
	}
	if !found {
		t.Fatalf("entropy factor missing: %v", record.Score.RiskFactors)
	}
}

func TestAnalyzeSingleSuspiciousString(t *testing.T) {
	a := New(testOptions(), nil, nil)
	path := writeTempFile(t, "note.txt", []byte("this mentions cmd.exe exactly once in plain text"))

	record, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Features.SuspiciousStrings) != 1 {
		t.Fatalf("suspicious = %v, want one entry", record.Features.SuspiciousStrings)
	}
	if record.Score.RiskLevel == scoring.RiskCritical {
		t.Fatalf("one match reached critical: %+v", record.Score)
	}
	if record.Score.Factors[scoring.FactorStrings] == 0 {
		t.Fatal("string factor did not contribute")
	}
}

func TestAnalyzeExtensionMismatch(t *testing.T) {
	a := New(testOptions(), nil, nil)
	content := append([]byte("MZ\x90\x00"), bytes.Repeat([]byte{0x00}, 60)...)
	path := writeTempFile(t, "photo.jpg", content)

	record, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if record.Classification.Category != classifier.CategoryExecutable {
		t.Fatalf("category = %s, want executable", record.Classification.Category)
	}
	if record.Classification.Method != classifier.MethodSignature {
		t.Fatalf("method = %s, want signature", record.Classification.Method)
	}
	if record.Score.Factors[scoring.FactorMismatch] == 0 {
		t.Fatal("mismatch factor absent")
	}
	found := false
	for _, f := range record.Score.RiskFactors {
		if strings.Contains(f, "does not match") {
			found = true
		}
	}
	if !found {
		t.Fatalf("mismatch explanation missing: %v", record.Score.RiskFactors)
	}
}

func TestAnalyzeOverSizeCap(t *testing.T) {
	opts := testOptions()
	opts.MaxFileSize = 16
	a := New(opts, nil, nil)
	path := writeTempFile(t, "big.bin", bytes.Repeat([]byte{0xAA}, 64))

	record, err := a.AnalyzeFile(context.Background(), path)
	if record != nil {
		t.Fatal("partial record returned alongside limit error")
	}
	var limitErr *ResourceLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want ResourceLimitExceededError", err)
	}
	if limitErr.Limit != "size" {
		t.Fatalf("limit = %s, want size", limitErr.Limit)
	}
}

func TestAnalyzeReaderOverSizeCap(t *testing.T) {
	opts := testOptions()
	opts.MaxFileSize = 16
	a := New(opts, nil, nil)

	_, err := a.AnalyzeReader(context.Background(), "stream.bin", bytes.NewReader(make([]byte, 64)))
	var limitErr *ResourceLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want ResourceLimitExceededError", err)
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	opts := testOptions()
	opts.PerFileTimeout = time.Nanosecond
	a := New(opts, nil, nil)
	path := writeTempFile(t, "slow.bin", bytes.Repeat([]byte("data"), 1024))

	_, err := a.AnalyzeFile(context.Background(), path)
	var limitErr *ResourceLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want ResourceLimitExceededError", err)
	}
	if limitErr.Limit != "time" {
		t.Fatalf("limit = %s, want time", limitErr.Limit)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	a := New(testOptions(), nil, nil)
	_, err := a.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "gone"))
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want ReadError", err)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	a := New(testOptions(), nil, nil)
	path := writeTempFile(t, "stable.txt", []byte("the same bytes every time, with powershell inside"))

	first, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(firstJSON, secondJSON) {
		t.Fatalf("records differ:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestAnalyzeDigestCacheHit(t *testing.T) {
	cache := NewDigestCache(8)
	a := New(testOptions(), cache, nil)
	path := writeTempFile(t, "cached.bin", bytes.Repeat([]byte("content"), 100))

	first, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", cache.Len())
	}
	second, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if first.Features.Digests != second.Features.Digests {
		t.Fatal("cached digests diverged")
	}
	if first.Features.Entropy != second.Features.Entropy {
		t.Fatal("cached entropy diverged")
	}
}

func TestAnalyzeKnownBenign(t *testing.T) {
	content := []byte("well known installer payload")
	sum := sha256.Sum256(content)

	listPath := filepath.Join(t.TempDir(), "known.txt")
	lines := "# known-benign sha256 digests\n" + hex.EncodeToString(sum[:]) + "\n"
	if err := os.WriteFile(listPath, []byte(lines), 0o600); err != nil {
		t.Fatal(err)
	}
	known, err := LoadKnownSet(listPath)
	if err != nil {
		t.Fatal(err)
	}
	if known.Size() != 1 {
		t.Fatalf("loaded %d digests, want 1", known.Size())
	}

	a := New(testOptions(), nil, known)
	path := writeTempFile(t, "payload.bin", content)
	record, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !record.KnownBenign {
		t.Fatal("known digest not flagged")
	}

	other := writeTempFile(t, "other.bin", []byte("completely different content"))
	otherRecord, err := a.AnalyzeFile(context.Background(), other)
	if err != nil {
		t.Fatal(err)
	}
	if otherRecord.KnownBenign {
		t.Fatal("unknown digest flagged as benign")
	}
}

func TestAnalyzeHiddenFile(t *testing.T) {
	a := New(testOptions(), nil, nil)
	path := writeTempFile(t, ".secrets", []byte("hidden file content"))

	record, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !record.Features.Hidden {
		t.Fatal("dotfile not marked hidden")
	}
	if record.Score.Factors[scoring.FactorHidden] != 40 {
		t.Fatalf("hidden sub-score = %v, want 40", record.Score.Factors[scoring.FactorHidden])
	}
}

func TestAnalyzeFuzzyHashes(t *testing.T) {
	opts := testOptions()
	opts.FuzzyAlgorithms = []string{"tlsh"}
	a := New(opts, nil, nil)
	content := bytes.Repeat([]byte("enough varied content for a fuzzy digest 0123456789. "), 40)
	path := writeTempFile(t, "fuzzed.bin", content)

	record, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if record.Features.FuzzyHashes["tlsh"] == "" {
		t.Fatalf("fuzzy hashes = %v, want tlsh entry", record.Features.FuzzyHashes)
	}
}

func TestDigestCacheEviction(t *testing.T) {
	cache := NewDigestCache(2)
	for i := 0; i < 5; i++ {
		cache.put(uint64(i), cacheEntry{entropy: float64(i)})
	}
	if cache.Len() != 2 {
		t.Fatalf("cache size = %d, want 2", cache.Len())
	}
	if _, hit := cache.get(0); hit {
		t.Fatal("oldest entry survived eviction")
	}
	if entry, hit := cache.get(4); !hit || entry.entropy != 4 {
		t.Fatal("newest entry missing")
	}
}

func TestNilCacheAndKnownSet(t *testing.T) {
	var cache *DigestCache
	var known *KnownSet
	if _, hit := cache.get(1); hit {
		t.Fatal("nil cache hit")
	}
	cache.put(1, cacheEntry{})
	if known.Contains("abc") {
		t.Fatal("nil known set claimed membership")
	}
}
