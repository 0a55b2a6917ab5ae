package extractors

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"image"
	"image/png"
	"testing"

	"verdict/classifier"
)

func TestForCategoryDispatch(t *testing.T) {
	cases := []struct {
		category classifier.Category
		name     string
	}{
		{classifier.CategoryExecutable, "executable"},
		{classifier.CategoryArchive, "archive"},
		{classifier.CategoryImage, "image"},
		{classifier.CategoryDocument, "document"},
		{classifier.CategoryScript, "null"},
		{classifier.CategoryMedia, "null"},
		{classifier.CategoryUnknown, "null"},
	}
	for _, tc := range cases {
		if got := ForCategory(tc.category).Name(); got != tc.name {
			t.Errorf("ForCategory(%s) = %s, want %s", tc.category, got, tc.name)
		}
	}
}

func TestNullExtractorEmpty(t *testing.T) {
	feats := NullExtractor{}.Extract([]byte("anything at all"))
	if len(feats) != 0 {
		t.Fatalf("null extractor produced features: %v", feats)
	}
}

func TestExecutableMalformed(t *testing.T) {
	for _, content := range [][]byte{
		[]byte("MZ"),
		[]byte("MZ\x90\x00 truncated header"),
		{0x7F, 'E', 'L', 'F', 0xFF},
		[]byte("not a binary at all"),
	} {
		feats := ExecutableExtractor{}.Extract(content)
		if v, ok := feats["parse_error"].(bool); !ok || !v {
			t.Errorf("content %q: parse_error missing, got %v", content, feats)
		}
	}
}

func TestArchiveZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"readme.txt", "data/inner.zip", "payload.bin"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(bytes.Repeat([]byte("compressible content "), 50))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	feats := ArchiveExtractor{}.Extract(buf.Bytes())
	if feats["archive_format"] != "zip" {
		t.Fatalf("format = %v", feats["archive_format"])
	}
	if feats["member_count"] != int64(3) {
		t.Fatalf("member_count = %v, want 3", feats["member_count"])
	}
	if feats["nested_archives"] != int64(1) {
		t.Fatalf("nested_archives = %v, want 1", feats["nested_archives"])
	}
	if feats["encrypted_members"] != int64(0) {
		t.Fatalf("encrypted_members = %v, want 0", feats["encrypted_members"])
	}
	ratio, ok := feats["compression_ratio"].(float64)
	if !ok || ratio <= 1.0 {
		t.Fatalf("compression_ratio = %v, want > 1", feats["compression_ratio"])
	}
	if _, marked := feats["parse_error"]; marked {
		t.Fatal("well formed archive marked parse_error")
	}
}

func TestArchiveGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(bytes.Repeat([]byte("aaaaaaaa"), 4096))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	feats := ArchiveExtractor{}.Extract(buf.Bytes())
	if feats["archive_format"] != "gzip" {
		t.Fatalf("format = %v", feats["archive_format"])
	}
	ratio, ok := feats["compression_ratio"].(float64)
	if !ok || ratio <= 1.0 {
		t.Fatalf("compression_ratio = %v, want > 1", feats["compression_ratio"])
	}
}

func TestArchiveMalformed(t *testing.T) {
	feats := ArchiveExtractor{}.Extract([]byte("PK\x03\x04 but not really a zip"))
	if v, ok := feats["parse_error"].(bool); !ok || !v {
		t.Fatalf("truncated zip must set parse_error, got %v", feats)
	}
}

func TestImagePNG(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 17, 9))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	feats := ImageExtractor{}.Extract(buf.Bytes())
	if feats["image_format"] != "png" {
		t.Fatalf("format = %v", feats["image_format"])
	}
	if feats["width"] != int64(17) || feats["height"] != int64(9) {
		t.Fatalf("dimensions = %vx%v", feats["width"], feats["height"])
	}
}

func TestImageMalformed(t *testing.T) {
	feats := ImageExtractor{}.Extract([]byte("\x89PNG\r\n\x1a\n garbage"))
	if v, ok := feats["parse_error"].(bool); !ok || !v {
		t.Fatalf("broken image must set parse_error, got %v", feats)
	}
}

func TestDocumentPDFMarkers(t *testing.T) {
	content := []byte("%PDF-1.4\n1 0 obj\n<< /OpenAction 2 0 R /JavaScript (alert) >>\n")
	feats := DocumentExtractor{}.Extract(content)
	if feats["doc_format"] != "pdf" {
		t.Fatalf("format = %v", feats["doc_format"])
	}
	if feats["has_javascript"] != true {
		t.Fatal("JavaScript marker missed")
	}
	if feats["has_open_action"] != true {
		t.Fatal("OpenAction marker missed")
	}
	// Truncated body cannot be fully parsed; markers survive regardless.
	if v, ok := feats["parse_error"].(bool); !ok || !v {
		t.Fatalf("truncated pdf must set parse_error, got %v", feats)
	}
}

func TestDocumentOOXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	core, err := zw.Create("docProps/core.xml")
	if err != nil {
		t.Fatal(err)
	}
	core.Write([]byte(`<?xml version="1.0"?>` +
		`<coreProperties xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		`<dc:title>Quarterly Report</dc:title>` +
		`<dc:creator>fmeyer</dc:creator>` +
		`</coreProperties>`))
	vba, err := zw.Create("word/vbaProject.bin")
	if err != nil {
		t.Fatal(err)
	}
	vba.Write([]byte{0xD0, 0xCF})
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	feats := DocumentExtractor{}.Extract(buf.Bytes())
	if feats["doc_format"] != "ooxml" {
		t.Fatalf("format = %v", feats["doc_format"])
	}
	if feats["has_macros"] != true {
		t.Fatal("macro part missed")
	}
	if feats["title"] != "Quarterly Report" {
		t.Fatalf("title = %v", feats["title"])
	}
	if feats["creator"] != "fmeyer" {
		t.Fatalf("creator = %v", feats["creator"])
	}
}
