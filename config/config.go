package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"verdict/scoring"
	"verdict/version"
)

type Config struct {
	StartPaths        []string           `json:"start_paths"`
	OutputFormat      string             `json:"output_format"`
	OutputFileName    string             `json:"output_file_name"`
	JSONLayout        string             `json:"json_layout"`
	ConcurrencyLevel  int                `json:"concurrency_level"`
	NiceLevel         string             `json:"nice_level"`
	HashAlgorithms    []string           `json:"hash_algorithms"`
	FuzzyHash         bool               `json:"fuzzy_hash"`
	FuzzyAlgorithms   []string           `json:"fuzzy_algorithms"`
	FuzzyMinSize      int64              `json:"fuzzy_min_size"`
	FuzzyMaxSize      int64              `json:"fuzzy_max_size"`
	IncludePatterns   []string           `json:"include_patterns"`
	ExcludePatterns   []string           `json:"exclude_patterns"`
	MaxFileSize       int64              `json:"max_file_size"`
	MaxOutputFileSize int64              `json:"max_output_file_size"`
	PerFileTimeout    time.Duration      `json:"per_file_timeout"`
	MinStringLength   int                `json:"min_string_length"`
	MaxSuspicious     int                `json:"max_suspicious_strings"`
	Patterns          []string           `json:"suspicious_patterns"`
	FactorWeights     scoring.Weights    `json:"factor_weights"`
	RiskThresholds    scoring.Thresholds `json:"risk_thresholds"`
	NotableThreshold  float64            `json:"notable_threshold"`
	KnownHashFile     string             `json:"known_hash_file"`
	DigestCacheSize   int                `json:"digest_cache_size"`
	CollectSystemInfo bool               `json:"collect_system_info"`
	LogLevel          string             `json:"log_level"`
	MaxIOPerSecond    int                `json:"max_io_per_second"`
	SkipCount         bool               `json:"skip_count"`
	ContentReadMode   string             `json:"content_read_mode"`
	StreamChunkSize   int                `json:"stream_chunk_size"`
	MmapMinSize       int64              `json:"mmap_min_size"`
	TraceFile         string             `json:"trace_file"`
	TraceFlight       bool               `json:"trace_flight"`
	TraceFlightFile   string             `json:"trace_flight_file"`
	TraceFlightMax    uint64             `json:"trace_flight_max_bytes"`
	TraceFlightMinAge time.Duration      `json:"trace_flight_min_age"`
	ConfigFile        string             `json:"config_file"`
	ConcurrencySet    bool               `json:"-"`
}

// Default returns the baseline configuration before file and flag overrides.
func Default() *Config {
	now := time.Now().UTC()
	timestamp := now.Format("20060102-150405")
	return &Config{
		StartPaths:        []string{"."},
		OutputFormat:      "json",
		OutputFileName:    fmt.Sprintf("verdict-%s-%d.json", timestamp, now.Unix()),
		JSONLayout:        "envelope",
		ConcurrencyLevel:  runtime.NumCPU(),
		NiceLevel:         "medium",
		HashAlgorithms:    []string{"md5", "sha1", "sha256"},
		FuzzyAlgorithms:   []string{},
		FuzzyMinSize:      256,
		FuzzyMaxSize:      20 * 1024 * 1024,
		MaxFileSize:       10485760,
		MaxOutputFileSize: 104857600,
		PerFileTimeout:    30 * time.Second,
		MinStringLength:   4,
		MaxSuspicious:     100,
		FactorWeights:     scoring.DefaultWeights(),
		RiskThresholds:    scoring.DefaultThresholds(),
		NotableThreshold:  scoring.DefaultNotable,
		DigestCacheSize:   4096,
		CollectSystemInfo: true,
		LogLevel:          "info",
		MaxIOPerSecond:    1000,
		SkipCount:         true,
		ContentReadMode:   "auto",
		StreamChunkSize:   256 * 1024,
		MmapMinSize:       128 * 1024,
		TraceFile:         "trace.out",
		TraceFlightFile:   "trace-flight.out",
	}
}

func LoadConfig() (*Config, error) {
	cfg := Default()

	startPath := flag.String("path", strings.Join(cfg.StartPaths, ","), "Comma-separated list of start paths to analyze.")
	format := flag.String("format", cfg.OutputFormat, "Output format: json or csv (default: json).")
	output := flag.String("output", cfg.OutputFileName, "Output file name (default: verdict-<timestamp>-<unix>.json).")
	jsonLayout := flag.String("json-layout", cfg.JSONLayout, "JSON output layout: envelope or ndjson (default: envelope).")
	concurrency := flag.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Worker count (default: %d).", cfg.ConcurrencyLevel))
	nice := flag.String("nice", cfg.NiceLevel, fmt.Sprintf("Nice level: high, medium, or low; picks the worker count when -concurrency is not given (default: %s).", cfg.NiceLevel))
	hashes := flag.String("hashes", strings.Join(cfg.HashAlgorithms, ","), "Comma-separated hash algorithms: md5, sha1, sha256, blake3. SHA-256 is always included.")
	fuzzyHash := flag.Bool("fuzzy-hash", cfg.FuzzyHash, "Enable fuzzy hashing (default: false).")
	fuzzyAlgorithms := flag.String("fuzzy-algorithms", strings.Join(cfg.FuzzyAlgorithms, ","), "Comma-separated fuzzy hash algorithms (default: tlsh when enabled).")
	fuzzyMinSize := flag.Int64("fuzzy-min-size", cfg.FuzzyMinSize, "Minimum file size in bytes for fuzzy hashing.")
	fuzzyMaxSize := flag.Int64("fuzzy-max-size", cfg.FuzzyMaxSize, "Maximum file size in bytes for fuzzy hashing.")
	includes := flag.String("include", "", "Comma-separated include patterns (default: none).")
	excludes := flag.String("exclude", "", "Comma-separated exclude patterns (default: none).")
	maxFileSize := flag.Int64("max-file-size", cfg.MaxFileSize, fmt.Sprintf("Maximum file size to analyze in bytes (default: %d).", cfg.MaxFileSize))
	maxOutputFileSize := flag.Int64("max-output-file-size", cfg.MaxOutputFileSize, "Maximum output file size before rotation in bytes.")
	perFileTimeout := flag.Duration("per-file-timeout", cfg.PerFileTimeout, "Wall-clock budget per file (default: 30s).")
	minStringLength := flag.Int("min-string-length", cfg.MinStringLength, "Minimum printable run length for string extraction.")
	maxSuspicious := flag.Int("max-suspicious-strings", cfg.MaxSuspicious, "Maximum suspicious strings reported per file.")
	patternsList := flag.String("suspicious-patterns", "", "Comma-separated suspicious string indicators replacing the built-in list.")
	factorWeights := flag.String("factor-weights", "", "Factor weights as key=value pairs (entropy, strings, category, size, mismatch, hidden); must sum to 1.0.")
	riskThresholds := flag.String("risk-thresholds", "", "Risk tier lower bounds as key=value pairs (medium, high, critical).")
	notableThreshold := flag.Float64("notable-threshold", cfg.NotableThreshold, "Sub-score a factor must exceed to appear in risk_factors.")
	knownHashFile := flag.String("known-hashes", cfg.KnownHashFile, "Path to a file of known-benign SHA-256 digests, one per line (default: none).")
	digestCacheSize := flag.Int("digest-cache-size", cfg.DigestCacheSize, "Maximum digest cache entries (default: 4096).")
	collectSystemInfo := flag.Bool("collect-system-info", cfg.CollectSystemInfo, "Attach a host summary record to the report (default: true).")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error, fatal, or panic (default: info).")
	maxIO := flag.Int("max-io-per-second", cfg.MaxIOPerSecond, fmt.Sprintf("Maximum file opens per second (default: %d).", cfg.MaxIOPerSecond))
	skipCount := flag.Bool("skip-count", cfg.SkipCount, "Skip the initial file count and start analyzing immediately.")
	contentReadMode := flag.String("content-read-mode", cfg.ContentReadMode, "Content read mode: auto, stream, or mmap (default: auto).")
	streamChunkSize := flag.Int("stream-chunk-size", cfg.StreamChunkSize, "Streaming chunk size in bytes (default: 262144).")
	mmapMinSize := flag.Int64("mmap-min-size", cfg.MmapMinSize, "Minimum file size in bytes for the mmap read path (default: 131072).")
	traceFile := flag.String("trace-file", cfg.TraceFile, "Runtime trace output file for trace-tagged builds.")
	traceFlight := flag.Bool("trace-flight", cfg.TraceFlight, "Enable flight recorder tracing (default: false).")
	traceFlightFile := flag.String("trace-flight-file", cfg.TraceFlightFile, "Flight recorder output file.")
	traceFlightMax := flag.Uint64("trace-flight-max-bytes", cfg.TraceFlightMax, "Max bytes for flight recorder buffer (0 for runtime default).")
	traceFlightMinAge := flag.Duration("trace-flight-min-age", cfg.TraceFlightMinAge, "Minimum age of trace events to retain.")
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("Verdict version %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.StartPaths = parseCommaSeparated(*startPath)
		case "format":
			cfg.OutputFormat = strings.ToLower(*format)
		case "output":
			cfg.OutputFileName = *output
		case "json-layout":
			cfg.JSONLayout = strings.ToLower(strings.TrimSpace(*jsonLayout))
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
			cfg.ConcurrencySet = true
		case "nice":
			cfg.NiceLevel = strings.ToLower(strings.TrimSpace(*nice))
		case "hashes":
			cfg.HashAlgorithms = parseCommaSeparated(*hashes)
		case "fuzzy-hash":
			cfg.FuzzyHash = *fuzzyHash
		case "fuzzy-algorithms":
			cfg.FuzzyAlgorithms = parseCommaSeparated(*fuzzyAlgorithms)
		case "fuzzy-min-size":
			cfg.FuzzyMinSize = *fuzzyMinSize
		case "fuzzy-max-size":
			cfg.FuzzyMaxSize = *fuzzyMaxSize
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(*includes)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "max-file-size":
			cfg.MaxFileSize = *maxFileSize
		case "max-output-file-size":
			cfg.MaxOutputFileSize = *maxOutputFileSize
		case "per-file-timeout":
			cfg.PerFileTimeout = *perFileTimeout
		case "min-string-length":
			cfg.MinStringLength = *minStringLength
		case "max-suspicious-strings":
			cfg.MaxSuspicious = *maxSuspicious
		case "suspicious-patterns":
			cfg.Patterns = parseCommaSeparated(*patternsList)
		case "factor-weights":
			cfg.FactorWeights = parseWeights(*factorWeights, cfg.FactorWeights)
		case "risk-thresholds":
			cfg.RiskThresholds = parseThresholds(*riskThresholds, cfg.RiskThresholds)
		case "notable-threshold":
			cfg.NotableThreshold = *notableThreshold
		case "known-hashes":
			cfg.KnownHashFile = strings.TrimSpace(*knownHashFile)
		case "digest-cache-size":
			cfg.DigestCacheSize = *digestCacheSize
		case "collect-system-info":
			cfg.CollectSystemInfo = *collectSystemInfo
		case "log-level":
			cfg.LogLevel = *logLevel
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
		case "skip-count":
			cfg.SkipCount = *skipCount
		case "content-read-mode":
			cfg.ContentReadMode = strings.ToLower(strings.TrimSpace(*contentReadMode))
		case "stream-chunk-size":
			cfg.StreamChunkSize = *streamChunkSize
		case "mmap-min-size":
			cfg.MmapMinSize = *mmapMinSize
		case "trace-file":
			cfg.TraceFile = strings.TrimSpace(*traceFile)
		case "trace-flight":
			cfg.TraceFlight = *traceFlight
		case "trace-flight-file":
			cfg.TraceFlightFile = *traceFlightFile
		case "trace-flight-max-bytes":
			cfg.TraceFlightMax = *traceFlightMax
		case "trace-flight-min-age":
			cfg.TraceFlightMinAge = *traceFlightMinAge
		}
	})

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func displayHelp() {
	fmt.Println("Verdict - Static File Triage")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  verdict [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  verdict --path \"/srv/uploads\"")
	fmt.Println("  verdict --path \"/home,/var\" --fuzzy-hash")
	fmt.Println("  verdict --path \"/tmp\" --known-hashes baseline.txt --format csv")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	if _, ok := raw["concurrency_level"]; ok {
		cfg.ConcurrencySet = true
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	cfg.JSONLayout = strings.ToLower(strings.TrimSpace(cfg.JSONLayout))
	cfg.ContentReadMode = strings.ToLower(strings.TrimSpace(cfg.ContentReadMode))
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "json"
	}
	if cfg.JSONLayout == "" {
		cfg.JSONLayout = "envelope"
	}
	if cfg.ContentReadMode == "" {
		cfg.ContentReadMode = "auto"
	}
	cfg.NiceLevel = strings.ToLower(strings.TrimSpace(cfg.NiceLevel))
	if cfg.NiceLevel == "" {
		cfg.NiceLevel = "medium"
	}
	if cfg.StreamChunkSize <= 0 {
		cfg.StreamChunkSize = 256 * 1024
	}
	if cfg.MmapMinSize <= 0 {
		cfg.MmapMinSize = 128 * 1024
	}
	if len(cfg.StartPaths) == 0 {
		cfg.StartPaths = []string{"."}
	}
	cfg.HashAlgorithms = normalizeAlgorithms(cfg.HashAlgorithms)
	// SHA-256 anchors known-benign lookups and record identity.
	if !containsString(cfg.HashAlgorithms, "sha256") {
		cfg.HashAlgorithms = append(cfg.HashAlgorithms, "sha256")
	}
	cfg.FuzzyAlgorithms = normalizeAlgorithms(cfg.FuzzyAlgorithms)
	if cfg.FuzzyHash && len(cfg.FuzzyAlgorithms) == 0 {
		cfg.FuzzyAlgorithms = []string{"tlsh"}
	}
	if len(cfg.FuzzyAlgorithms) > 0 {
		cfg.FuzzyHash = true
	}
	if cfg.FuzzyMaxSize > 0 && cfg.FuzzyMaxSize < cfg.FuzzyMinSize {
		cfg.FuzzyMaxSize = cfg.FuzzyMinSize
	}
	if cfg.TraceFlight && cfg.TraceFlightFile == "" {
		cfg.TraceFlightFile = "trace-flight.out"
	}
}

func (cfg *Config) validate() error {
	if len(cfg.StartPaths) == 0 {
		return fmt.Errorf("at least one start path must be specified")
	}
	if cfg.OutputFormat != "json" && cfg.OutputFormat != "csv" {
		return fmt.Errorf("invalid output format: %s (json or csv)", cfg.OutputFormat)
	}
	if cfg.JSONLayout != "envelope" && cfg.JSONLayout != "ndjson" {
		return fmt.Errorf("invalid json-layout value: %s (envelope or ndjson)", cfg.JSONLayout)
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.NiceLevel != "high" && cfg.NiceLevel != "medium" && cfg.NiceLevel != "low" {
		return fmt.Errorf("invalid nice level: %s", cfg.NiceLevel)
	}
	if cfg.MaxFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive")
	}
	if cfg.PerFileTimeout < 0 {
		return fmt.Errorf("per-file-timeout must be zero or positive")
	}
	if cfg.MinStringLength <= 0 {
		return fmt.Errorf("min-string-length must be positive")
	}
	if cfg.MaxSuspicious <= 0 {
		return fmt.Errorf("max-suspicious-strings must be positive")
	}
	if sum := cfg.FactorWeights.Sum(); math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("factor weights must sum to 1.0, got %v", sum)
	}
	t := cfg.RiskThresholds
	if !(0 < t.Medium && t.Medium < t.High && t.High < t.Critical && t.Critical <= 100) {
		return fmt.Errorf("risk thresholds must satisfy 0 < medium < high < critical <= 100")
	}
	if cfg.NotableThreshold <= 0 || cfg.NotableThreshold > 100 {
		return fmt.Errorf("notable-threshold must be between 0 and 100")
	}
	if cfg.FuzzyMinSize < 0 || cfg.FuzzyMaxSize < 0 {
		return fmt.Errorf("fuzzy size limits must be zero or positive")
	}
	if cfg.DigestCacheSize < 0 {
		return fmt.Errorf("digest-cache-size must be zero or positive")
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	if cfg.ContentReadMode != "auto" && cfg.ContentReadMode != "stream" && cfg.ContentReadMode != "mmap" {
		return fmt.Errorf("invalid content-read-mode value: %s", cfg.ContentReadMode)
	}
	if cfg.StreamChunkSize <= 0 {
		return fmt.Errorf("stream-chunk-size must be positive")
	}
	if cfg.MmapMinSize < 0 {
		return fmt.Errorf("mmap-min-size must be zero or positive")
	}
	if cfg.TraceFlightMinAge < 0 {
		return fmt.Errorf("trace-flight-min-age must be zero or positive")
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	return nil
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

// parseWeights overrides base with key=value pairs, e.g.
// "entropy=0.3,strings=0.3". Unknown keys and unparsable values are skipped.
func parseWeights(input string, base scoring.Weights) scoring.Weights {
	for key, value := range parseKeyValues(input) {
		switch key {
		case "entropy":
			base.Entropy = value
		case "strings":
			base.Strings = value
		case "category":
			base.Category = value
		case "size":
			base.Size = value
		case "mismatch":
			base.Mismatch = value
		case "hidden":
			base.Hidden = value
		default:
			fmt.Fprintf(os.Stderr, "unknown factor weight: %s\n", key)
		}
	}
	return base
}

func parseThresholds(input string, base scoring.Thresholds) scoring.Thresholds {
	for key, value := range parseKeyValues(input) {
		switch key {
		case "medium":
			base.Medium = value
		case "high":
			base.High = value
		case "critical":
			base.Critical = value
		default:
			fmt.Fprintf(os.Stderr, "unknown risk threshold: %s\n", key)
		}
	}
	return base
}

func parseKeyValues(input string) map[string]float64 {
	values := make(map[string]float64)
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

func normalizeAlgorithms(items []string) []string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		normalized = append(normalized, item)
	}
	return normalized
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
