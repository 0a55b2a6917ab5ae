package fuzzy

import (
	"bytes"
	"testing"
)

func TestLookupRegistered(t *testing.T) {
	h, ok := Lookup("tlsh")
	if !ok {
		t.Fatal("tlsh hasher not registered")
	}
	if h.Name() != "tlsh" {
		t.Fatalf("name = %s", h.Name())
	}
	if _, ok := Lookup("TLSH"); !ok {
		t.Fatal("lookup must be case-insensitive")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("ssdeep"); ok {
		t.Fatal("unregistered hasher resolved")
	}
}

func TestTLSHDeterministic(t *testing.T) {
	h, _ := Lookup("tlsh")
	content := bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 40)
	first, err := h.HashBytes(content)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.HashBytes(content)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || first == "" {
		t.Fatalf("hashes differ or empty: %q vs %q", first, second)
	}
}
