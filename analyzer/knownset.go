package analyzer

import (
	"bufio"
	"os"
	"strings"

	"github.com/FastFilter/xorfilter"
	"github.com/cespare/xxhash/v2"

	"verdict/logger"
)

// KnownSet answers "is this SHA-256 a known-benign file" from a compact xor
// filter built over a line-oriented digest list. False positives are possible
// at a small fixed rate, so membership only annotates the record; it never
// suppresses analysis. A nil *KnownSet contains nothing.
type KnownSet struct {
	filter *xorfilter.Xor8
	count  int
}

// LoadKnownSet reads one lowercase hex SHA-256 per line. Blank lines and
// lines starting with '#' are skipped.
func LoadKnownSet(path string) (*KnownSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, xxhash.Sum64String(strings.ToLower(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return &KnownSet{}, nil
	}

	filter, err := xorfilter.Populate(keys)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Loaded %d known-benign digests from %s", len(keys), path)
	return &KnownSet{filter: filter, count: len(keys)}, nil
}

// Contains reports probable membership of a hex SHA-256 digest.
func (k *KnownSet) Contains(sha256Hex string) bool {
	if k == nil || k.filter == nil || sha256Hex == "" {
		return false
	}
	return k.filter.Contains(xxhash.Sum64String(strings.ToLower(sha256Hex)))
}

// Size reports how many digests were loaded.
func (k *KnownSet) Size() int {
	if k == nil {
		return 0
	}
	return k.count
}
