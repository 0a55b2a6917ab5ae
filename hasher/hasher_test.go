package hasher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"testing"

	"verdict/logger"
)

func TestDigestFile(t *testing.T) {
	logger.Init("info")
	tmp, err := os.CreateTemp("", "digest-test")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	defer os.Remove(tmp.Name())
	tmp.WriteString("hello world")
	tmp.Close()

	result, err := DigestFile(context.Background(), tmp.Name(), []string{"md5", "sha1", "sha256", "unknown"}, 0)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if result.Digests.MD5 != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("md5 mismatch: %s", result.Digests.MD5)
	}
	if result.Digests.SHA1 != "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed" {
		t.Errorf("sha1 mismatch: %s", result.Digests.SHA1)
	}
	if result.Digests.SHA256 != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Errorf("sha256 mismatch: %s", result.Digests.SHA256)
	}
	if result.Digests.BLAKE3 != "" {
		t.Errorf("unexpected blake3 digest without the algorithm enabled")
	}
	if result.Digests.Recommended() != result.Digests.SHA256 {
		t.Errorf("recommended digest should be sha256")
	}
	if result.Bytes != 11 {
		t.Errorf("unexpected byte count: %d", result.Bytes)
	}
}

func TestDigestReaderDeterministic(t *testing.T) {
	data := []byte("determinism check")
	first, err := DigestReader(context.Background(), bytes.NewReader(data), []string{"sha256", "blake3"}, 0)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := DigestReader(context.Background(), bytes.NewReader(data), []string{"sha256", "blake3"}, 0)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if first.Digests != second.Digests {
		t.Fatalf("digests differ across runs: %+v vs %+v", first.Digests, second.Digests)
	}

	flipped := append([]byte(nil), data...)
	flipped[0] ^= 0x01
	third, err := DigestReader(context.Background(), bytes.NewReader(flipped), []string{"sha256"}, 0)
	if err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if third.Digests.SHA256 == first.Digests.SHA256 {
		t.Fatalf("single byte change did not alter sha256")
	}
}

func TestEntropyBounds(t *testing.T) {
	empty, err := DigestReader(context.Background(), bytes.NewReader(nil), []string{"sha256"}, 0)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if empty.Entropy != 0.0 {
		t.Fatalf("empty input entropy must be exactly 0.0, got %f", empty.Entropy)
	}

	repeated := bytes.Repeat([]byte{0xAB}, 4096)
	uniform, err := DigestReader(context.Background(), bytes.NewReader(repeated), []string{"sha256"}, 0)
	if err != nil {
		t.Fatalf("uniform: %v", err)
	}
	if uniform.Entropy != 0.0 {
		t.Fatalf("single byte value entropy must be exactly 0.0, got %f", uniform.Entropy)
	}

	random := make([]byte, 1<<20)
	rng := rand.New(rand.NewSource(42))
	rng.Read(random)
	noisy, err := DigestReader(context.Background(), bytes.NewReader(random), []string{"sha256"}, 0)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if noisy.Entropy <= 7.5 || noisy.Entropy > 8.0 {
		t.Fatalf("random 1MB entropy out of expected range: %f", noisy.Entropy)
	}
	if math.IsNaN(noisy.Entropy) {
		t.Fatalf("entropy is NaN")
	}
}

func TestDigestReaderByteLimit(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1024)
	_, err := DigestReader(context.Background(), bytes.NewReader(data), []string{"sha256"}, 128)
	if !errors.Is(err, ErrByteLimitExceeded) {
		t.Fatalf("expected ErrByteLimitExceeded, got %v", err)
	}
}

func TestDigestReaderCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DigestReader(ctx, bytes.NewReader([]byte("data")), []string{"sha256"}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type failingReader struct {
	reads int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.reads == 0 {
		r.reads++
		copy(p, "partial")
		return 7, nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestDigestReaderMidStreamFailure(t *testing.T) {
	result, err := DigestReader(context.Background(), &failingReader{}, []string{"sha256"}, 0)
	if err == nil {
		t.Fatalf("expected mid-stream failure")
	}
	if result.Digests.SHA256 != "" {
		t.Fatalf("partial digest leaked after failure")
	}
}
