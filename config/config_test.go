package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sources.Definitions != DefaultProduct1URL || cfg.Sources.OMIM != DefaultProduct1URL {
		t.Errorf("definitions and omim should share product1, got %s and %s", cfg.Sources.Definitions, cfg.Sources.OMIM)
	}
	if cfg.Extract.TargetFrequency != "Very frequent (99-80%)" {
		t.Errorf("unexpected target frequency %q", cfg.Extract.TargetFrequency)
	}
	if cfg.Codes.Column != "Orphacodes" {
		t.Errorf("expected column Orphacodes, got %s", cfg.Codes.Column)
	}
	if !cfg.ShouldCleanLatest() {
		t.Error("expected latest cleaning by default")
	}
	if cfg.MirrorEnabled() || cfg.NotifyEnabled() {
		t.Error("mirror and notify should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing prevalence source",
			modify:  func(c *Config) { c.Sources.Prevalence = "" },
			wantErr: true,
		},
		{
			name:    "bad fetch timeout",
			modify:  func(c *Config) { c.Fetch.Timeout = "soon" },
			wantErr: true,
		},
		{
			name:    "negative max content size",
			modify:  func(c *Config) { c.Fetch.MaxContentSize = -1 },
			wantErr: true,
		},
		{
			name:    "no code paths",
			modify:  func(c *Config) { c.Codes.Paths = nil },
			wantErr: true,
		},
		{
			name:    "empty target frequency",
			modify:  func(c *Config) { c.Extract.TargetFrequency = "" },
			wantErr: true,
		},
		{
			name:    "unknown output format",
			modify:  func(c *Config) { c.Output.Formats = []string{"tsv", "ods"} },
			wantErr: true,
		},
		{
			name:    "unknown hgnc format",
			modify:  func(c *Config) { c.Output.HGNCFormats = []string{"json"} },
			wantErr: true,
		},
		{
			name:    "parquet accepted",
			modify:  func(c *Config) { c.Output.Formats = []string{"parquet"} },
			wantErr: false,
		},
		{
			name:    "mirror without bucket",
			modify:  func(c *Config) { c.Mirror.Endpoint = "minio:9000" },
			wantErr: true,
		},
		{
			name:    "notify without subject",
			modify:  func(c *Config) { c.Notify.NATSURL = "nats://localhost:4222"; c.Notify.Subject = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
sources:
  definitions: "/data/en_product1.xml"
  omim: "/data/en_product1.xml"
fetch:
  timeout: 2m
  allow_insecure: true
codes:
  paths: ["codes/*.xlsx"]
  sheet: "Panel"
output:
  formats: [tsv, parquet]
  clean_latest: false
mirror:
  endpoint: "${ORPHASNAP_TEST_S3:-minio:9000}"
  bucket: snapshots
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	t.Setenv("ORPHASNAP_TEST_S3", "")

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/data/en_product1.xml", cfg.Sources.Definitions)
	assert.Equal(t, DefaultProduct4URL, cfg.Sources.Phenotypes, "unset keys keep defaults")
	assert.Equal(t, 2*time.Minute, cfg.GetFetchTimeout())
	assert.True(t, cfg.Fetch.AllowInsecure)
	assert.Equal(t, []string{"codes/*.xlsx"}, cfg.Codes.Paths)
	assert.Equal(t, "Panel", cfg.Codes.Sheet)
	assert.Equal(t, []string{"tsv", "parquet"}, cfg.Output.Formats)
	assert.False(t, cfg.ShouldCleanLatest())
	assert.Equal(t, "minio:9000", cfg.Mirror.Endpoint)
	assert.True(t, cfg.MirrorEnabled())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sources: [unclosed"), 0644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	clean := false
	override := &Config{
		Sources: SourcesConfig{HGNC: "/mirror/hgnc_complete_set.txt"},
		HGNC:    HGNCConfig{Columns: []string{"symbol"}},
		Output:  OutputConfig{CleanLatest: &clean},
		Notify:  NotifyConfig{NATSURL: "nats://nats:4222"},
	}

	base.Merge(override)

	assert.Equal(t, "/mirror/hgnc_complete_set.txt", base.Sources.HGNC)
	assert.Equal(t, DefaultProduct1URL, base.Sources.Definitions, "unset values keep base")
	assert.Equal(t, []string{"symbol"}, base.HGNC.Columns)
	assert.False(t, base.ShouldCleanLatest())
	assert.True(t, base.NotifyEnabled())
	assert.Equal(t, DefaultNotifySubject, base.Notify.Subject)

	base.Merge(nil)
	assert.True(t, base.NotifyEnabled())
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Extract.TargetFrequency = "Frequent (79-30%)"

	require.NoError(t, cfg.SaveToFile(configPath))

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "Frequent (79-30%)", loaded.Extract.TargetFrequency)
	assert.Equal(t, cfg.Output.Formats, loaded.Output.Formats)
}

func TestGetters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.Timeout = "garbage"
	cfg.Fetch.MaxContentSize = 0
	cfg.Notify.Timeout = ""

	assert.Equal(t, DefaultFetchTimeout, cfg.GetFetchTimeout())
	assert.Equal(t, int64(DefaultMaxContentSize), cfg.GetMaxContentSize())
	assert.Equal(t, DefaultNotifyTimeout, cfg.GetNotifyTimeout())
}
