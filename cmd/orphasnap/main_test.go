package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/orphasnap/config"
)

// execute runs the root command with an isolated HOME.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func abs(t *testing.T, parts ...string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join(parts...))
	require.NoError(t, err)
	return p
}

// writeLocalConfig points every source at testdata and every output into dir.
func writeLocalConfig(t *testing.T, dir string, codes ...string) string {
	t.Helper()
	codesPath := filepath.Join(dir, "orphacodes.txt")
	require.NoError(t, os.WriteFile(codesPath, []byte(strings.Join(codes, "\n")+"\n"), 0o644))

	product1 := abs(t, "..", "..", "orphadata", "testdata", "en_product1.xml")
	content := fmt.Sprintf(`
sources:
  definitions: %q
  omim: %q
  phenotypes: %q
  prevalence: %q
  hgnc: %q
codes:
  paths: [%q]
output:
  processed_dir: %q
  latest_dir: %q
  version_file: %q
  formats: [tsv, csv]
`,
		product1, product1,
		abs(t, "..", "..", "orphadata", "testdata", "en_product4.xml"),
		abs(t, "..", "..", "orphadata", "testdata", "en_product9_prev.xml"),
		abs(t, "..", "..", "hgnc", "testdata", "hgnc_complete_set.txt"),
		codesPath,
		filepath.Join(dir, "data", "processed"),
		filepath.Join(dir, "data", "latest"),
		filepath.Join(dir, "version.txt"),
	)
	path := filepath.Join(dir, "orphasnap-test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "orphasnap version "+Version+" (build: "+BuildTime+")\n", out)
}

func TestCodesCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeLocalConfig(t, dir, "166024", "58", "166024")

	out, err := execute(t, "--config", cfgPath, "codes")
	require.NoError(t, err)
	assert.Equal(t, "166024\n58\n", out)

	out, err = execute(t, "--config", cfgPath, "codes", "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = execute(t, "--config", cfgPath, "codes", filepath.Join(dir, "missing-*.txt"))
	assert.Error(t, err)
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeLocalConfig(t, dir, "166024", "42")

	out, err := execute(t, "--config", cfgPath, "extract")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "OrphaCode\tDefinition\tPhenotypes\tPrevalence\tOMIM", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "166024\tA rare chromosomal anomaly syndrome"))
	assert.True(t, strings.HasSuffix(lines[1], "\t606232; 607596"))
	assert.Equal(t, "42\t\t\t\t", lines[2])

	_, err = os.Stat(filepath.Join(dir, "data"))
	assert.True(t, os.IsNotExist(err), "extract publishes nothing")

	csvPath := filepath.Join(dir, "out.csv")
	_, err = execute(t, "--config", cfgPath, "extract", "--format", "csv", "-o", csvPath, "--frequency", "Frequent (79-30%)")
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Autism (HP:0000717)")

	_, err = execute(t, "--config", cfgPath, "extract", "--format", "json")
	assert.Error(t, err)
}

func TestUpdateCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeLocalConfig(t, dir, "166024", "58", "3380")

	out, err := execute(t, "--config", cfgPath, "update", "--local-only")
	require.NoError(t, err)
	assert.Contains(t, out, "Update complete!")
	assert.Contains(t, out, "Records: 3 disorders, 3 genes")

	entries, err := os.ReadDir(filepath.Join(dir, "data", "latest"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	// orphadata tsv+csv, hgnc tsv, manifest
	assert.Len(t, names, 4)

	version, err := os.ReadFile(filepath.Join(dir, "version.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(version), "v_"))
}

func TestHGNCCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeLocalConfig(t, dir, "58")

	out, err := execute(t, "--config", cfgPath, "hgnc", "--columns", "symbol,entrez_id")
	require.NoError(t, err)
	assert.Equal(t, "symbol\tentrez_id\nA1BG\t1\nA1BG-AS1\t503538\nA1CF\t29974\n", out)

	_, err = execute(t, "--config", cfgPath, "hgnc", "--columns", "nope")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.ProjectConfigFile)

	out, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	_, err = execute(t, "config", "init", "--path", path)
	assert.Error(t, err, "existing file is not overwritten")
	_, err = execute(t, "config", "init", "--path", path, "--force")
	assert.NoError(t, err)

	cfgPath := writeLocalConfig(t, dir, "58")
	out, err = execute(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Very frequent (99-80%)")
	assert.Contains(t, out, "- csv")
	assert.NotContains(t, out, "- xlsx", "--config formats replace the defaults")
}

func TestMirrorCommand_NotConfigured(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeLocalConfig(t, dir, "58")

	_, err := execute(t, "--config", cfgPath, "mirror", filepath.Join(dir, "manifest.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror.endpoint")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		hidden  slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"INFO", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			h := newLogger(tt.level).Handler()
			assert.True(t, h.Enabled(t.Context(), tt.enabled))
			assert.False(t, h.Enabled(t.Context(), tt.hidden))
		})
	}
}
