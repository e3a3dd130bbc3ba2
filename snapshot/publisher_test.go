package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}

func newTestPublisher(t *testing.T, clean bool) (*Publisher, string) {
	t.Helper()
	root := t.TempDir()
	p := NewPublisher(Options{
		ProcessedDir: filepath.Join(root, "data", "processed"),
		LatestDir:    filepath.Join(root, "data", "latest"),
		VersionFile:  filepath.Join(root, "version.txt"),
		CleanLatest:  clean,
		Now:          fixedClock,
	}, nil)
	require.NoError(t, p.Prepare())
	return p, root
}

func writeOutput(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPublisher_Naming(t *testing.T) {
	p, root := newTestPublisher(t, true)

	assert.Equal(t, "2025-03-14", p.Date())
	assert.Equal(t, "v_2025-03-14", p.Version())
	assert.Equal(t,
		filepath.Join(root, "data", "processed", "orphadata_filtered_2025-03-14.tsv"),
		p.Path("orphadata_filtered", ".tsv"))
}

func TestPublisher_Defaults(t *testing.T) {
	p := NewPublisher(Options{}, nil)
	assert.Equal(t, DefaultProcessedDir, p.ProcessedDir())
	assert.Equal(t, DefaultLatestDir, p.LatestDir())
	assert.Equal(t, time.Now().Format(DefaultDateLayout), p.Date())
}

func TestPublisher_Publish(t *testing.T) {
	p, root := newTestPublisher(t, true)

	tsv := p.Path("orphadata_filtered", ".tsv")
	hgnc := p.Path("hgnc_filtered", ".tsv")
	writeOutput(t, tsv, "OrphaCode\n166024\n")
	writeOutput(t, hgnc, "symbol\nA1BG\n")

	m, err := p.Publish("run-1", []File{
		{Path: tsv, Dataset: "orphadata", Format: "tsv", Records: 1},
		{Path: hgnc, Dataset: "hgnc", Format: "tsv", Records: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "v_2025-03-14", m.Version)
	assert.Equal(t, fixedClock(), m.GeneratedAt)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "orphadata_filtered_2025-03-14.tsv", m.Files[0].Name)
	assert.Equal(t, int64(len("OrphaCode\n166024\n")), m.Files[0].Size)
	sum := sha256.Sum256([]byte("OrphaCode\n166024\n"))
	assert.Equal(t, hex.EncodeToString(sum[:]), m.Files[0].SHA256)

	version, err := os.ReadFile(filepath.Join(root, "version.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v_2025-03-14", string(version))

	latest := filepath.Join(root, "data", "latest")
	for _, name := range []string{
		"orphadata_filtered_2025-03-14.tsv",
		"hgnc_filtered_2025-03-14.tsv",
		"manifest_2025-03-14.json",
	} {
		link := filepath.Join(latest, name)
		target, err := os.Readlink(link)
		require.NoError(t, err, name)
		assert.Equal(t, filepath.Join("..", "processed", name), target, "links are relative")

		_, err = os.Stat(link)
		assert.NoError(t, err, "link resolves")
	}

	loaded, err := ReadManifest(m.Path)
	require.NoError(t, err)
	assert.Equal(t, m.Files, loaded.Files)
	assert.Equal(t, m.Version, loaded.Version)
	assert.Equal(t, filepath.Dir(m.Path), loaded.Dir)
}

func TestPublisher_CleanLatest(t *testing.T) {
	tests := []struct {
		name      string
		clean     bool
		wantStale bool
	}{
		{"clean removes previous entries", true, false},
		{"no clean keeps previous entries", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPublisher(t, tt.clean)

			stale := filepath.Join(p.LatestDir(), "orphadata_filtered_2025-03-01.tsv")
			writeOutput(t, stale, "old")
			require.NoError(t, os.Mkdir(filepath.Join(p.LatestDir(), "keep"), 0o755))

			out := p.Path("orphadata_filtered", ".csv")
			writeOutput(t, out, "x")
			_, err := p.Publish("run", []File{{Path: out, Format: "csv"}})
			require.NoError(t, err)

			_, err = os.Lstat(stale)
			assert.Equal(t, tt.wantStale, err == nil)

			_, err = os.Stat(filepath.Join(p.LatestDir(), "keep"))
			assert.NoError(t, err, "subdirectories are left alone")
		})
	}
}

func TestLink_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	latest := filepath.Join(dir, "latest")
	require.NoError(t, os.Mkdir(latest, 0o755))

	target := filepath.Join(dir, "a.tsv")
	writeOutput(t, target, "new")
	writeOutput(t, filepath.Join(latest, "a.tsv"), "regular file in the way")

	require.NoError(t, Link(target, latest))
	require.NoError(t, Link(target, latest), "relinking is idempotent")

	content, err := os.ReadFile(filepath.Join(latest, "a.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestPublisher_Errors(t *testing.T) {
	p, _ := newTestPublisher(t, true)

	_, err := p.Publish("run", nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = p.Publish("run", []File{{Path: p.Path("missing", ".tsv")}})
	assert.Error(t, err)

	_, err = ReadManifest(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
