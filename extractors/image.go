package extractors

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
)

// ImageExtractor decodes image dimensions and, for JPEG, EXIF provenance
// fields. Images score low on their own, but format lies and oversized
// dimensions are still worth recording.
type ImageExtractor struct{}

func (ImageExtractor) Name() string { return "image" }

func (ImageExtractor) Extract(content []byte) (feats Features) {
	feats = Features{}
	defer guard(feats)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		feats["parse_error"] = true
		return feats
	}
	feats["image_format"] = format
	feats["width"] = int64(cfg.Width)
	feats["height"] = int64(cfg.Height)

	if format == "jpeg" {
		extractExif(content, feats)
	}
	return feats
}

func extractExif(content []byte, feats Features) {
	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		// Most JPEGs carry no EXIF block; absence is not a parse failure.
		return
	}
	if dt, err := x.DateTime(); err == nil {
		feats["exif_datetime"] = dt.UTC().Format("2006-01-02T15:04:05Z")
	}
	for name, field := range map[string]exif.FieldName{
		"exif_make":     exif.Make,
		"exif_model":    exif.Model,
		"exif_software": exif.Software,
	} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		if val, err := tag.StringVal(); err == nil && val != "" {
			feats[name] = val
		}
	}
}
