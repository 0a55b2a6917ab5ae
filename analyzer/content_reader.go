package analyzer

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/mmap"
)

const (
	defaultMmapMinSize     = 128 * 1024
	defaultStreamChunkSize = 256 * 1024
)

var openMmapReader = mmap.Open

// readFileContent loads up to maxBytes of a file using the configured mode.
// "auto" uses mmap for files past the mmap threshold and falls back to
// streaming when mapping fails. The caller has already rejected files over
// the size cap, so maxBytes acts as a hard stop, not a skip.
func readFileContent(path string, maxBytes int64, mode string, mmapMinSize int64, chunkSize int) ([]byte, error) {
	if mmapMinSize <= 0 {
		mmapMinSize = defaultMmapMinSize
	}
	if chunkSize <= 0 {
		chunkSize = defaultStreamChunkSize
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "mmap":
		return readContentMmap(path, maxBytes)
	case "stream":
		return readContentStream(path, maxBytes, chunkSize)
	default:
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() >= mmapMinSize {
			if content, err := readContentMmap(path, maxBytes); err == nil {
				return content, nil
			}
		}
		return readContentStream(path, maxBytes, chunkSize)
	}
}

func readContentMmap(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	readSize := info.Size()
	if maxBytes > 0 && readSize > maxBytes {
		readSize = maxBytes
	}
	if readSize <= 0 {
		return []byte{}, nil
	}

	r, err := openMmapReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := make([]byte, readSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

func readContentStream(path string, maxBytes int64, chunkSize int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var content []byte
	if stat, err := file.Stat(); err == nil && stat.Size() > 0 {
		capHint := stat.Size()
		if maxBytes > 0 && capHint > maxBytes {
			capHint = maxBytes
		}
		content = make([]byte, 0, capHint)
	}

	buffer := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := file.Read(buffer)
		if n > 0 {
			chunk := buffer[:n]
			if maxBytes > 0 && total+int64(n) > maxBytes {
				chunk = chunk[:maxBytes-total]
			}
			content = append(content, chunk...)
			total += int64(len(chunk))
			if maxBytes > 0 && total >= maxBytes {
				break
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, readErr
		}
	}
	return content, nil
}
