package fuzzy

import (
	"bufio"
	"bytes"
	"os"

	"github.com/glaslos/tlsh"
)

type TLSHHasher struct{}

func (h TLSHHasher) Name() string {
	return "tlsh"
}

func (h TLSHHasher) HashBytes(content []byte) (string, error) {
	hash, err := tlsh.HashReader(bufio.NewReader(bytes.NewReader(content)))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (h TLSHHasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash, err := tlsh.HashReader(bufio.NewReader(f))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func init() {
	Register(TLSHHasher{})
}
