// Package output serializes analysis records to a JSON envelope, NDJSON
// lines, or CSV with buffered writes and size-based rotation. One Writer is
// shared by all workers; it is the only component that touches the report
// file.
package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"verdict/analyzer"
	"verdict/config"
	"verdict/systeminfo"
)

// SchemaVersion identifies the report layout for downstream consumers.
const SchemaVersion = "1.0"

type Metrics struct {
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	TotalFiles    int            `json:"total_files"`
	FilesScanned  int            `json:"files_scanned"`
	FilesAnalyzed int            `json:"files_analyzed"`
	FilesFailed   int            `json:"files_failed"`
	LimitExceeded int            `json:"limit_exceeded"`
	TierCounts    map[string]int `json:"tier_counts"`
}

type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	csvw    *csv.Writer
	mu      sync.Mutex
	first   bool
	metrics *Metrics
	cfg     *config.Config
	host    *systeminfo.HostInfo
	base    string
	ext     string
	index   int
	format  string
	layout  string
}

// ndjsonLine is one line of NDJSON-layout output. Exactly one of Host, File
// and Metrics is set, selected by RecordType.
type ndjsonLine struct {
	RecordType    string                   `json:"record_type"`
	SchemaVersion string                   `json:"schema_version,omitempty"`
	Host          *systeminfo.HostInfo     `json:"host,omitempty"`
	File          *analyzer.AnalysisRecord `json:"file,omitempty"`
	Metrics       *Metrics                 `json:"metrics,omitempty"`
}

func New(cfg *config.Config, host *systeminfo.HostInfo, m *Metrics) (*Writer, error) {
	ext := filepath.Ext(cfg.OutputFileName)
	base := strings.TrimSuffix(cfg.OutputFileName, ext)
	format := strings.ToLower(cfg.OutputFormat)
	if format == "" {
		format = "json"
	}
	layout := strings.ToLower(cfg.JSONLayout)
	if layout == "" {
		layout = "envelope"
	}
	if host == nil {
		host = &systeminfo.HostInfo{}
	}
	if m != nil && m.TierCounts == nil {
		m.TierCounts = make(map[string]int)
	}

	w := &Writer{
		first:   true,
		metrics: m,
		cfg:     cfg,
		host:    host,
		base:    base,
		ext:     ext,
		format:  format,
		layout:  layout,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openFile() error {
	name := w.base + w.ext
	if w.index > 0 {
		name = fmt.Sprintf("%s.%d%s", w.base, w.index, w.ext)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, 1024*1024)
	w.csvw = nil
	w.first = true

	switch {
	case w.format == "csv":
		w.csvw = csv.NewWriter(w.buf)
		if err := w.writeCSVHeader(); err != nil {
			return err
		}
	case w.layout == "ndjson":
		if err := w.writeNDJSONLine(ndjsonLine{
			RecordType:    "host",
			SchemaVersion: SchemaVersion,
			Host:          w.host,
		}); err != nil {
			return err
		}
	default:
		if _, err := w.buf.WriteString("{\n"); err != nil {
			return err
		}
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

func (w *Writer) writeHeader() error {
	if _, err := w.buf.WriteString(fmt.Sprintf("  \"schema_version\": %q,\n", SchemaVersion)); err != nil {
		return err
	}
	hostBytes, err := jsonMarshalIndent(w.host, "  ", "  ")
	if err != nil {
		return err
	}
	if _, err := w.buf.WriteString("  \"host\": "); err != nil {
		return err
	}
	if _, err := w.buf.Write(hostBytes); err != nil {
		return err
	}
	if _, err := w.buf.WriteString(",\n  \"files\": [\n"); err != nil {
		return err
	}
	return nil
}

// WriteRecord appends one analysis record and updates the metrics.
func (w *Writer) WriteRecord(record *analyzer.AnalysisRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.format == "csv":
		if err := w.writeCSVRow("file", record, nil); err != nil {
			return
		}
	case w.layout == "ndjson":
		if err := w.writeNDJSONLine(ndjsonLine{RecordType: "file", File: record}); err != nil {
			return
		}
	default:
		if !w.first {
			_, _ = w.buf.WriteString(",\n")
		}
		bytes, err := jsonMarshalIndent(record, "    ", "  ")
		if err == nil {
			_, _ = w.buf.WriteString("    ")
			_, _ = w.buf.Write(bytes)
		}
		w.first = false
	}
	if w.metrics != nil {
		w.metrics.FilesAnalyzed++
		w.metrics.TierCounts[record.Score.RiskLevel]++
	}

	w.flush()

	if w.cfg.MaxOutputFileSize > 0 {
		if info, err := w.file.Stat(); err == nil && info.Size() >= w.cfg.MaxOutputFileSize {
			w.rotate()
		}
	}
}

func (w *Writer) IncrementScanned() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.FilesScanned++
	}
}

// CountFailure records a per-file fatal error. limit distinguishes resource
// cap hits from plain read failures.
func (w *Writer) CountFailure(limit bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.metrics == nil {
		return
	}
	w.metrics.FilesFailed++
	if limit {
		w.metrics.LimitExceeded++
	}
}

func (w *Writer) SetTotalFiles(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.TotalFiles = n
	}
}

func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeFile()
}

func (w *Writer) rotate() {
	w.closeFile()
	w.index++
	w.openFile()
}

func (w *Writer) closeFile() {
	switch {
	case w.format == "csv":
		if w.metrics != nil {
			_ = w.writeCSVRow("metrics", nil, w.metrics)
		}
		w.flush()
	case w.layout == "ndjson":
		if w.metrics != nil {
			_ = w.writeNDJSONLine(ndjsonLine{RecordType: "metrics", Metrics: w.metrics})
		}
		w.flush()
	default:
		_, _ = w.buf.WriteString("\n  ]")
		if w.metrics != nil {
			mBytes, err := jsonMarshalIndent(w.metrics, "  ", "  ")
			if err == nil {
				_, _ = w.buf.WriteString(",\n  \"metrics\": ")
				_, _ = w.buf.Write(mBytes)
			}
		}
		_, _ = w.buf.WriteString("\n}\n")
		w.flush()
	}
	_ = w.file.Sync()
	_ = w.file.Close()
}

func (w *Writer) writeNDJSONLine(line ndjsonLine) error {
	bytes, err := jsonMarshal(line)
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(bytes); err != nil {
		return err
	}
	_, err = w.buf.WriteString("\n")
	return err
}

func (w *Writer) flush() {
	if w.csvw != nil {
		w.csvw.Flush()
	}
	if w.buf != nil {
		_ = w.buf.Flush()
	}
}

func (w *Writer) writeCSVHeader() error {
	header := []string{
		"record_type",
		"schema_version",
		"path",
		"name",
		"category",
		"detailed_type",
		"mime_type",
		"confidence",
		"detection_method",
		"size",
		"entropy",
		"sha256",
		"score",
		"risk_level",
		"risk_factors",
		"suspicious_strings",
		"known_benign",
		"host",
		"metrics",
	}
	if err := w.csvw.Write(header); err != nil {
		return err
	}
	if w.host != nil {
		row := emptyCSVRow(len(header))
		row[0] = "host"
		row[1] = SchemaVersion
		row[17] = jsonString(w.host)
		if err := w.csvw.Write(row); err != nil {
			return err
		}
	}
	w.csvw.Flush()
	return w.csvw.Error()
}

func (w *Writer) writeCSVRow(recordType string, record *analyzer.AnalysisRecord, metrics *Metrics) error {
	row := emptyCSVRow(19)
	row[0] = recordType
	row[1] = SchemaVersion
	if record != nil {
		row[2] = record.Path
		row[3] = record.Name
		row[4] = string(record.Classification.Category)
		row[5] = record.Classification.DetailedType
		row[6] = record.Classification.MimeType
		row[7] = fmt.Sprintf("%.2f", record.Classification.Confidence)
		row[8] = string(record.Classification.Method)
		row[9] = fmt.Sprint(record.Features.Size)
		row[10] = fmt.Sprintf("%.4f", record.Features.Entropy)
		row[11] = record.Features.Digests.SHA256
		row[12] = fmt.Sprintf("%.2f", record.Score.Score)
		row[13] = record.Score.RiskLevel
		row[14] = jsonString(record.Score.RiskFactors)
		row[15] = jsonString(record.Features.SuspiciousStrings)
		row[16] = fmt.Sprint(record.KnownBenign)
	}
	if metrics != nil {
		row[18] = jsonString(metrics)
	}
	if err := w.csvw.Write(row); err != nil {
		return err
	}
	w.csvw.Flush()
	return w.csvw.Error()
}

func emptyCSVRow(n int) []string {
	return make([]string, n)
}

func jsonString(value interface{}) string {
	if value == nil {
		return ""
	}
	bytes, err := jsonMarshal(value)
	if err != nil {
		return ""
	}
	return string(bytes)
}
