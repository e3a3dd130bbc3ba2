// Package config provides configuration loading and management for orphasnap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/orphasnap/codeset"
	"github.com/c360studio/orphasnap/hgnc"
	"github.com/c360studio/orphasnap/orphadata"
	"github.com/c360studio/orphasnap/snapshot"
	"github.com/c360studio/orphasnap/tabular"
)

// Default locations of the upstream datasets.
const (
	OrphadataBaseURL   = "https://www.orphadata.com/data/xml/"
	DefaultProduct1URL = OrphadataBaseURL + "en_product1.xml"
	DefaultProduct4URL = OrphadataBaseURL + "en_product4.xml"
	DefaultProduct9URL = OrphadataBaseURL + "en_product9_prev.xml"
	DefaultHGNCURL     = "https://storage.googleapis.com/public-download-files/hgnc/tsv/tsv/hgnc_complete_set.txt"

	DefaultUserAgent      = "orphasnap/1.0"
	DefaultFetchTimeout   = 10 * time.Minute
	DefaultMaxContentSize = 1 << 30
	DefaultNotifySubject  = "orphasnap.snapshot.published"
	DefaultNotifyTimeout  = 10 * time.Second
)

// Config represents the complete orphasnap configuration
type Config struct {
	Sources SourcesConfig `yaml:"sources"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Codes   CodesConfig   `yaml:"codes"`
	Extract ExtractConfig `yaml:"extract"`
	HGNC    HGNCConfig    `yaml:"hgnc"`
	Output  OutputConfig  `yaml:"output"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SourcesConfig holds the location of each feed: an https URL, a file://
// URL or a local path. Feeds sharing a location are fetched once.
type SourcesConfig struct {
	Definitions string `yaml:"definitions"`
	Phenotypes  string `yaml:"phenotypes"`
	Prevalence  string `yaml:"prevalence"`
	OMIM        string `yaml:"omim"`
	HGNC        string `yaml:"hgnc"`
}

// FetchConfig configures downloads
type FetchConfig struct {
	// Timeout bounds the wait for response headers (e.g. "10m")
	Timeout string `yaml:"timeout"`
	// UserAgent is the User-Agent header for HTTP requests
	UserAgent string `yaml:"user_agent"`
	// MaxContentSize caps each download in bytes (0 = default)
	MaxContentSize int64 `yaml:"max_content_size"`
	// AllowInsecure permits plain http:// sources
	AllowInsecure bool `yaml:"allow_insecure"`
}

// CodesConfig locates the disease code list
type CodesConfig struct {
	// Paths are file paths or doublestar globs (text or xlsx)
	Paths []string `yaml:"paths"`
	// Sheet is the xlsx worksheet (empty = first sheet)
	Sheet string `yaml:"sheet"`
	// Column is the xlsx header holding the codes
	Column string `yaml:"column"`
}

// ExtractConfig tunes the Orphadata extraction
type ExtractConfig struct {
	// TargetFrequency is the HPO frequency label phenotypes must carry
	TargetFrequency string `yaml:"target_frequency"`
}

// HGNCConfig configures the gene table projection
type HGNCConfig struct {
	Columns []string `yaml:"columns"`
}

// OutputConfig configures snapshot files
type OutputConfig struct {
	ProcessedDir string `yaml:"processed_dir"`
	LatestDir    string `yaml:"latest_dir"`
	VersionFile  string `yaml:"version_file"`
	// Formats for the Orphadata table (tsv, csv, xlsx, parquet)
	Formats []string `yaml:"formats"`
	// HGNCFormats for the gene table
	HGNCFormats []string `yaml:"hgnc_formats"`
	// CleanLatest empties latest_dir before linking (default true)
	CleanLatest *bool `yaml:"clean_latest,omitempty"`
	// DateFormat is a Go time layout for file stamps
	DateFormat string `yaml:"date_format"`
}

// MirrorConfig configures the optional S3-compatible upload
type MirrorConfig struct {
	// Endpoint is host[:port] of the object store (empty = disabled)
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Insecure disables TLS to the endpoint
	Insecure bool `yaml:"insecure"`
}

// NotifyConfig configures the optional NATS event
type NotifyConfig struct {
	// NATSURL is the server URL (empty = disabled)
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Timeout string `yaml:"timeout"`
}

// MetricsConfig configures metrics output
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path (empty = disabled)
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	clean := true
	return &Config{
		Sources: SourcesConfig{
			Definitions: DefaultProduct1URL,
			Phenotypes:  DefaultProduct4URL,
			Prevalence:  DefaultProduct9URL,
			OMIM:        DefaultProduct1URL,
			HGNC:        DefaultHGNCURL,
		},
		Fetch: FetchConfig{
			Timeout:        DefaultFetchTimeout.String(),
			UserAgent:      DefaultUserAgent,
			MaxContentSize: DefaultMaxContentSize,
		},
		Codes: CodesConfig{
			Paths:  []string{"data/orphacodes.txt"},
			Column: codeset.DefaultColumn,
		},
		Extract: ExtractConfig{
			TargetFrequency: orphadata.DefaultTargetFrequency,
		},
		HGNC: HGNCConfig{
			Columns: append([]string(nil), hgnc.DefaultColumns...),
		},
		Output: OutputConfig{
			ProcessedDir: snapshot.DefaultProcessedDir,
			LatestDir:    snapshot.DefaultLatestDir,
			VersionFile:  snapshot.DefaultVersionFile,
			Formats:      []string{"tsv", "csv", "xlsx"},
			HGNCFormats:  []string{"tsv"},
			CleanLatest:  &clean,
			DateFormat:   snapshot.DefaultDateLayout,
		},
		Notify: NotifyConfig{
			Subject: DefaultNotifySubject,
			Timeout: DefaultNotifyTimeout.String(),
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	sources := []struct{ key, value string }{
		{"sources.definitions", c.Sources.Definitions},
		{"sources.phenotypes", c.Sources.Phenotypes},
		{"sources.prevalence", c.Sources.Prevalence},
		{"sources.omim", c.Sources.OMIM},
		{"sources.hgnc", c.Sources.HGNC},
	}
	for _, s := range sources {
		if s.value == "" {
			return fmt.Errorf("%s is required", s.key)
		}
	}
	if c.Fetch.Timeout != "" {
		if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			return fmt.Errorf("invalid fetch.timeout format: %w", err)
		}
	}
	if c.Fetch.MaxContentSize < 0 {
		return fmt.Errorf("fetch.max_content_size must be non-negative")
	}
	if len(c.Codes.Paths) == 0 {
		return fmt.Errorf("codes.paths is required")
	}
	if c.Extract.TargetFrequency == "" {
		return fmt.Errorf("extract.target_frequency is required")
	}
	if len(c.HGNC.Columns) == 0 {
		return fmt.Errorf("hgnc.columns is required")
	}
	if len(c.Output.Formats) == 0 {
		return fmt.Errorf("output.formats is required")
	}
	for _, f := range append(append([]string(nil), c.Output.Formats...), c.Output.HGNCFormats...) {
		if _, err := tabular.ParseFormat(f); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}
	if c.Output.ProcessedDir == "" || c.Output.LatestDir == "" {
		return fmt.Errorf("output.processed_dir and output.latest_dir are required")
	}
	if c.Mirror.Endpoint != "" && c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror.bucket is required when mirror.endpoint is set")
	}
	if c.Notify.NATSURL != "" && c.Notify.Subject == "" {
		return fmt.Errorf("notify.subject is required when notify.nats_url is set")
	}
	if c.Notify.Timeout != "" {
		if _, err := time.ParseDuration(c.Notify.Timeout); err != nil {
			return fmt.Errorf("invalid notify.timeout format: %w", err)
		}
	}
	return nil
}

// parseDurationOrDefault parses a duration string and returns the default if empty or invalid.
func parseDurationOrDefault(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// GetFetchTimeout returns the fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDurationOrDefault(c.Fetch.Timeout, DefaultFetchTimeout)
}

// GetNotifyTimeout returns the publish timeout as a duration.
func (c *Config) GetNotifyTimeout() time.Duration {
	return parseDurationOrDefault(c.Notify.Timeout, DefaultNotifyTimeout)
}

// GetMaxContentSize returns the max content size with default.
func (c *Config) GetMaxContentSize() int64 {
	if c.Fetch.MaxContentSize <= 0 {
		return DefaultMaxContentSize
	}
	return c.Fetch.MaxContentSize
}

// ShouldCleanLatest reports whether latest_dir is emptied before linking.
func (c *Config) ShouldCleanLatest() bool {
	return c.Output.CleanLatest == nil || *c.Output.CleanLatest
}

// MirrorEnabled reports whether uploads are configured.
func (c *Config) MirrorEnabled() bool {
	return c.Mirror.Endpoint != "" && c.Mirror.Bucket != ""
}

// NotifyEnabled reports whether a NATS event is published.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.NATSURL != ""
}

// LoadFromFile loads configuration from a YAML file over the defaults.
// ${VAR} and ${VAR:-default} references are expanded first.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(ExpandEnvWithDefaults(string(data))), into); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Sources
	mergeString(&c.Sources.Definitions, other.Sources.Definitions)
	mergeString(&c.Sources.Phenotypes, other.Sources.Phenotypes)
	mergeString(&c.Sources.Prevalence, other.Sources.Prevalence)
	mergeString(&c.Sources.OMIM, other.Sources.OMIM)
	mergeString(&c.Sources.HGNC, other.Sources.HGNC)

	// Fetch
	mergeString(&c.Fetch.Timeout, other.Fetch.Timeout)
	mergeString(&c.Fetch.UserAgent, other.Fetch.UserAgent)
	if other.Fetch.MaxContentSize != 0 {
		c.Fetch.MaxContentSize = other.Fetch.MaxContentSize
	}
	if other.Fetch.AllowInsecure {
		c.Fetch.AllowInsecure = true
	}

	// Codes
	if len(other.Codes.Paths) > 0 {
		c.Codes.Paths = other.Codes.Paths
	}
	mergeString(&c.Codes.Sheet, other.Codes.Sheet)
	mergeString(&c.Codes.Column, other.Codes.Column)

	mergeString(&c.Extract.TargetFrequency, other.Extract.TargetFrequency)

	if len(other.HGNC.Columns) > 0 {
		c.HGNC.Columns = other.HGNC.Columns
	}

	// Output
	mergeString(&c.Output.ProcessedDir, other.Output.ProcessedDir)
	mergeString(&c.Output.LatestDir, other.Output.LatestDir)
	mergeString(&c.Output.VersionFile, other.Output.VersionFile)
	if len(other.Output.Formats) > 0 {
		c.Output.Formats = other.Output.Formats
	}
	if len(other.Output.HGNCFormats) > 0 {
		c.Output.HGNCFormats = other.Output.HGNCFormats
	}
	if other.Output.CleanLatest != nil {
		v := *other.Output.CleanLatest
		c.Output.CleanLatest = &v
	}
	mergeString(&c.Output.DateFormat, other.Output.DateFormat)

	// Mirror
	mergeString(&c.Mirror.Endpoint, other.Mirror.Endpoint)
	mergeString(&c.Mirror.Bucket, other.Mirror.Bucket)
	mergeString(&c.Mirror.Prefix, other.Mirror.Prefix)
	mergeString(&c.Mirror.Region, other.Mirror.Region)
	mergeString(&c.Mirror.AccessKey, other.Mirror.AccessKey)
	mergeString(&c.Mirror.SecretKey, other.Mirror.SecretKey)
	if other.Mirror.Insecure {
		c.Mirror.Insecure = true
	}

	// Notify
	mergeString(&c.Notify.NATSURL, other.Notify.NATSURL)
	mergeString(&c.Notify.Subject, other.Notify.Subject)
	mergeString(&c.Notify.Timeout, other.Notify.Timeout)

	mergeString(&c.Metrics.Textfile, other.Metrics.Textfile)
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
