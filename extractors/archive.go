package extractors

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"path/filepath"
	"strings"
)

const (
	// gzipRatioCap bounds how much a gzip stream is inflated when measuring
	// its compression ratio, so decompression bombs stay cheap to probe.
	gzipRatioCap = 64 << 20

	zipFlagEncrypted = 0x1
)

var nestedArchiveExts = map[string]struct{}{
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {},
}

// ArchiveExtractor inspects container structure without inflating members
// beyond a bounded probe. High member counts, extreme compression ratios,
// and nested archives all feed the scoring engine.
type ArchiveExtractor struct{}

func (ArchiveExtractor) Name() string { return "archive" }

func (ArchiveExtractor) Extract(content []byte) (feats Features) {
	feats = Features{}
	defer guard(feats)

	switch {
	case bytes.HasPrefix(content, []byte("PK")):
		extractZip(content, feats)
	case bytes.HasPrefix(content, []byte{0x1F, 0x8B}):
		extractGzip(content, feats)
	default:
		feats["parse_error"] = true
	}
	return feats
}

func extractZip(content []byte, feats Features) {
	feats["archive_format"] = "zip"
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		feats["parse_error"] = true
		return
	}

	var compressed, uncompressed uint64
	var encrypted, nested int64
	for _, member := range r.File {
		compressed += member.CompressedSize64
		uncompressed += member.UncompressedSize64
		if member.Flags&zipFlagEncrypted != 0 {
			encrypted++
		}
		ext := strings.ToLower(filepath.Ext(member.Name))
		if _, archive := nestedArchiveExts[ext]; archive {
			nested++
		}
	}

	feats["member_count"] = int64(len(r.File))
	feats["encrypted_members"] = encrypted
	feats["nested_archives"] = nested
	if compressed > 0 {
		feats["compression_ratio"] = float64(uncompressed) / float64(compressed)
	}
}

func extractGzip(content []byte, feats Features) {
	feats["archive_format"] = "gzip"
	zr, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		feats["parse_error"] = true
		return
	}
	defer zr.Close()

	if zr.Name != "" {
		feats["member_count"] = int64(1)
		ext := strings.ToLower(filepath.Ext(zr.Name))
		if _, archive := nestedArchiveExts[ext]; archive {
			feats["nested_archives"] = int64(1)
		}
	}

	inflated, err := io.Copy(io.Discard, io.LimitReader(zr, gzipRatioCap))
	if err != nil {
		feats["parse_error"] = true
		return
	}
	if len(content) > 0 {
		ratio := float64(inflated) / float64(len(content))
		feats["compression_ratio"] = ratio
		if inflated == gzipRatioCap {
			feats["ratio_capped"] = true
		}
	}
}
