package extractors

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DocumentExtractor pulls provenance fields from PDF and OOXML documents and
// flags embedded active content. A document carrying JavaScript or macro parts
// is a common phishing payload shape.
type DocumentExtractor struct{}

func (DocumentExtractor) Name() string { return "document" }

func (DocumentExtractor) Extract(content []byte) (feats Features) {
	feats = Features{}
	defer guard(feats)

	switch {
	case bytes.HasPrefix(content, []byte("%PDF")):
		extractPDF(content, feats)
	case bytes.HasPrefix(content, []byte("PK")):
		extractOOXML(content, feats)
	default:
		// Legacy OLE and RTF documents have no structural parser here.
	}
	return feats
}

func extractPDF(content []byte, feats Features) {
	feats["doc_format"] = "pdf"
	feats["has_javascript"] = bytes.Contains(content, []byte("/JavaScript")) ||
		bytes.Contains(content, []byte("/JS"))
	feats["has_open_action"] = bytes.Contains(content, []byte("/OpenAction"))
	feats["has_embedded_files"] = bytes.Contains(content, []byte("/EmbeddedFile"))

	info, err := api.PDFInfo(bytes.NewReader(content), "", nil, false, nil)
	if err != nil {
		feats["parse_error"] = true
		return
	}
	if info.Title != "" {
		feats["title"] = info.Title
	}
	if info.Author != "" {
		feats["author"] = info.Author
	}
	if info.Creator != "" {
		feats["creator"] = info.Creator
	}
	if info.Producer != "" {
		feats["producer"] = info.Producer
	}
	feats["page_count"] = int64(info.PageCount)
}

func extractOOXML(content []byte, feats Features) {
	feats["doc_format"] = "ooxml"
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		feats["parse_error"] = true
		return
	}

	var hasMacros bool
	var coreFile *zip.File
	for _, member := range r.File {
		switch member.Name {
		case "docProps/core.xml":
			coreFile = member
		case "word/vbaProject.bin", "xl/vbaProject.bin", "ppt/vbaProject.bin":
			hasMacros = true
		}
	}
	feats["has_macros"] = hasMacros
	if coreFile == nil {
		return
	}

	rc, err := coreFile.Open()
	if err != nil {
		feats["parse_error"] = true
		return
	}
	defer rc.Close()

	type coreProperties struct {
		Title   string `xml:"title"`
		Subject string `xml:"subject"`
		Creator string `xml:"creator"`
	}
	var props coreProperties
	if err := xml.NewDecoder(io.LimitReader(rc, 1<<20)).Decode(&props); err != nil {
		feats["parse_error"] = true
		return
	}
	if props.Title != "" {
		feats["title"] = props.Title
	}
	if props.Subject != "" {
		feats["subject"] = props.Subject
	}
	if props.Creator != "" {
		feats["creator"] = props.Creator
	}
}
