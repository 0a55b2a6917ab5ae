// Package classifier maps raw leading bytes to a file category. Magic-number
// matching comes first, then a content-type probe, then the file extension as
// the lowest-confidence fallback. Classification never fails: anything
// unrecognized is category unknown with confidence 0.
package classifier

import (
	"bytes"
	"strings"

	"github.com/h2non/filetype"
)

// HeaderSize is the number of leading bytes the classifier wants to see. It
// exceeds the longest table entry (tar magic at offset 257) with room for the
// container probes.
const HeaderSize = 512

type Category string

const (
	CategoryExecutable Category = "executable"
	CategoryDocument   Category = "document"
	CategoryArchive    Category = "archive"
	CategoryImage      Category = "image"
	CategoryScript     Category = "script"
	CategoryMedia      Category = "media"
	CategoryUnknown    Category = "unknown"
)

type Method string

const (
	MethodSignature    Method = "signature"
	MethodContentProbe Method = "content_probe"
	MethodExtension    Method = "extension"
)

const (
	signatureConfidence = 0.9
	probeConfidence     = 0.6
	extensionConfidence = 0.3
)

// categoryPriority breaks ties between equally specific signature matches.
// Lower is higher priority.
var categoryPriority = map[Category]int{
	CategoryExecutable: 0,
	CategoryArchive:    1,
	CategoryDocument:   2,
	CategoryImage:      3,
	CategoryScript:     4,
	CategoryMedia:      5,
	CategoryUnknown:    6,
}

// Classification is produced once per file and immutable thereafter.
type Classification struct {
	Category     Category `json:"category"`
	DetailedType string   `json:"detailed_type"`
	MimeType     string   `json:"mime_type"`
	Confidence   float64  `json:"confidence"`
	Method       Method   `json:"detection_method"`
}

// Classify determines the category of a file from its leading bytes and its
// extension (without dot, lowercase).
func Classify(head []byte, ext string) Classification {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	if c, ok := classifyBySignature(head); ok {
		return c
	}
	if c, ok := classifyByProbe(head); ok {
		return c
	}
	return classifyByExtension(ext)
}

// classifyBySignature scans the full table; the longest matching prefix wins
// and equal lengths resolve by the fixed category priority, keeping the result
// deterministic regardless of table order.
func classifyBySignature(head []byte) (Classification, bool) {
	best := -1
	for i, sig := range signatureTable {
		end := sig.offset + len(sig.prefix)
		if len(head) < end {
			continue
		}
		if !bytes.Equal(head[sig.offset:end], sig.prefix) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		current := signatureTable[best]
		switch {
		case len(sig.prefix) > len(current.prefix):
			best = i
		case len(sig.prefix) == len(current.prefix) &&
			categoryPriority[sig.category] < categoryPriority[current.category]:
			best = i
		}
	}
	if best < 0 {
		return Classification{}, false
	}

	sig := signatureTable[best]
	c := Classification{
		Category:     sig.category,
		DetailedType: sig.detailed,
		MimeType:     sig.mime,
		Confidence:   signatureConfidence,
		Method:       MethodSignature,
	}
	if sig.category == CategoryArchive && bytes.HasPrefix(sig.prefix, []byte("PK")) {
		refineZipContainer(&c, head)
	}
	return c, true
}

// refineZipContainer upgrades ZIP matches that are really OOXML office
// documents. The probe inspects the container structure, so the detection
// method stays signature-based.
func refineZipContainer(c *Classification, head []byte) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return
	}
	if detailed, ok := ooxmlMimes[kind.MIME.Value]; ok {
		c.Category = CategoryDocument
		c.DetailedType = detailed
		c.MimeType = kind.MIME.Value
	}
}

func classifyByProbe(head []byte) (Classification, bool) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || kind.MIME.Value == "" {
		return Classification{}, false
	}
	category := categoryForMime(kind.MIME.Type, kind.MIME.Value)
	if category == CategoryUnknown {
		return Classification{}, false
	}
	return Classification{
		Category:     category,
		DetailedType: strings.ToUpper(kind.Extension) + " (probed)",
		MimeType:     kind.MIME.Value,
		Confidence:   probeConfidence,
		Method:       MethodContentProbe,
	}, true
}

func categoryForMime(mimeType, mimeValue string) Category {
	switch mimeType {
	case "image":
		return CategoryImage
	case "audio", "video":
		return CategoryMedia
	}
	switch mimeValue {
	case "application/pdf", "application/rtf", "application/msword":
		return CategoryDocument
	case "application/zip", "application/gzip", "application/x-tar",
		"application/vnd.rar", "application/x-7z-compressed",
		"application/x-bzip2", "application/x-compressed", "application/x-xz":
		return CategoryArchive
	case "application/x-executable", "application/x-mach-binary",
		"application/vnd.microsoft.portable-executable":
		return CategoryExecutable
	}
	if _, ok := ooxmlMimes[mimeValue]; ok {
		return CategoryDocument
	}
	return CategoryUnknown
}

// classifyByExtension is the last resort. Extensions are attacker-controlled,
// so confidence stays depressed and drops to zero when even the extension says
// nothing.
func classifyByExtension(ext string) Classification {
	category, ok := extensionCategories[ext]
	if !ok {
		return Classification{
			Category:     CategoryUnknown,
			DetailedType: "Unknown file type",
			MimeType:     "unknown",
			Confidence:   0.0,
			Method:       MethodExtension,
		}
	}
	return Classification{
		Category:     category,
		DetailedType: strings.ToUpper(ext) + " (by extension)",
		MimeType:     "unknown",
		Confidence:   extensionConfidence,
		Method:       MethodExtension,
	}
}

// ExpectedCategory reports the category an extension claims, for
// mismatch scoring. Empty extension yields unknown and false.
func ExpectedCategory(ext string) (Category, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return CategoryUnknown, false
	}
	category, ok := extensionCategories[ext]
	return category, ok
}
