package hasher

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"math"
	"os"
	"sync"

	"lukechampine.com/blake3"

	"verdict/logger"
)

const (
	digestBufferSmallSize      = 32 * 1024
	digestBufferLargeSize      = 128 * 1024
	digestLargeBufferThreshold = 256 * 1024
)

// ErrByteLimitExceeded is returned when a source produces more bytes than the
// configured cap allows. Partial digests are never returned alongside it.
var ErrByteLimitExceeded = errors.New("byte limit exceeded")

var digestBufferSmallPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, digestBufferSmallSize)
		return &buf
	},
}

var digestBufferLargePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, digestBufferLargeSize)
		return &buf
	},
}

// DigestSet holds the hex digests of one source. SHA-256 is the digest
// recommended for integrity checks; MD5 and SHA-1 are retained only for
// cross-referencing legacy indicator databases and must not be treated as
// collision resistant.
type DigestSet struct {
	MD5    string `json:"md5,omitempty"`
	SHA1   string `json:"sha1,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
	BLAKE3 string `json:"blake3,omitempty"`
}

// Recommended returns the digest suitable for integrity use.
func (d DigestSet) Recommended() string { return d.SHA256 }

// Result is the output of one streaming pass: digests plus the Shannon
// entropy of the byte distribution.
type Result struct {
	Digests DigestSet
	Entropy float64
	Bytes   int64
}

type digestEntry struct {
	name string
	h    hash.Hash
}

func buildDigesters(algorithms []string) []digestEntry {
	entries := make([]digestEntry, 0, len(algorithms))
	seen := make(map[string]struct{}, len(algorithms))
	for _, algo := range algorithms {
		if _, ok := seen[algo]; ok {
			continue
		}
		switch algo {
		case "md5":
			entries = append(entries, digestEntry{name: "md5", h: md5.New()})
		case "sha1":
			entries = append(entries, digestEntry{name: "sha1", h: sha1.New()})
		case "sha256":
			entries = append(entries, digestEntry{name: "sha256", h: sha256.New()})
		case "blake3":
			entries = append(entries, digestEntry{name: "blake3", h: blake3.New(32, nil)})
		default:
			logger.Warnf("Unsupported hash algorithm: %s", algo)
			continue
		}
		seen[algo] = struct{}{}
	}
	return entries
}

// DigestReader consumes the source in fixed-size chunks, updating every digest
// state and a 256-bucket byte histogram in one pass. maxBytes <= 0 means
// uncapped. On any error partial digests are discarded.
func DigestReader(ctx context.Context, r io.Reader, algorithms []string, maxBytes int64) (Result, error) {
	return digestStream(ctx, r, algorithms, maxBytes, digestBufferSmallSize)
}

// DigestFile runs DigestReader over a file, choosing a larger chunk size for
// large files.
func DigestFile(ctx context.Context, path string, algorithms []string, maxBytes int64) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	chunkSize := digestBufferSmallSize
	if info, statErr := file.Stat(); statErr == nil && info.Size() >= digestLargeBufferThreshold {
		chunkSize = digestBufferLargeSize
	}
	return digestStream(ctx, file, algorithms, maxBytes, chunkSize)
}

func digestStream(ctx context.Context, r io.Reader, algorithms []string, maxBytes int64, chunkSize int) (Result, error) {
	digesters := buildDigesters(algorithms)

	bufferPool := &digestBufferSmallPool
	if chunkSize >= digestBufferLargeSize {
		bufferPool = &digestBufferLargePool
	}
	bufferPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufferPtr)
	buffer := *bufferPtr

	var histogram [256]int64
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n, readErr := r.Read(buffer)
		if n > 0 {
			chunk := buffer[:n]
			total += int64(n)
			if maxBytes > 0 && total > maxBytes {
				return Result{}, ErrByteLimitExceeded
			}
			for i := range digesters {
				// hash.Hash.Write never returns an error.
				digesters[i].h.Write(chunk)
			}
			for _, b := range chunk {
				histogram[b]++
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return Result{}, readErr
		}
	}

	result := Result{
		Entropy: entropyFromHistogram(histogram, total),
		Bytes:   total,
	}
	for i := range digesters {
		sum := hex.EncodeToString(digesters[i].h.Sum(nil))
		switch digesters[i].name {
		case "md5":
			result.Digests.MD5 = sum
		case "sha1":
			result.Digests.SHA1 = sum
		case "sha256":
			result.Digests.SHA256 = sum
		case "blake3":
			result.Digests.BLAKE3 = sum
		}
	}
	return result, nil
}

// entropyFromHistogram computes Shannon entropy in bits per byte. Zero-length
// input is defined as 0.0 entropy.
func entropyFromHistogram(histogram [256]int64, total int64) float64 {
	if total <= 0 {
		return 0.0
	}
	var entropy float64
	for _, count := range histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
