// Package snapshot names, records and publishes the dated output files of a
// run: a processed directory of date-stamped files, a latest/ directory of
// relative symlinks to them, a version file and a JSON manifest.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Defaults for Options.
const (
	DefaultProcessedDir = "data/processed"
	DefaultLatestDir    = "data/latest"
	DefaultVersionFile  = "version.txt"
	DefaultDateLayout   = "2006-01-02"
	ManifestPrefix      = "manifest"
)

// ErrNoFiles is returned when Publish is called without files.
var ErrNoFiles = errors.New("nothing to publish")

// Options configures a Publisher.
type Options struct {
	ProcessedDir string
	LatestDir    string
	VersionFile  string
	// CleanLatest removes previous files and links from LatestDir first.
	CleanLatest bool
	// DateLayout is a Go time layout for the file stamp.
	DateLayout string
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// File is an output to publish.
type File struct {
	// Path is the file on disk, normally from Publisher.Path.
	Path string
	// Dataset groups files of the same table (e.g. "orphadata", "hgnc").
	Dataset string
	Format  string
	Records int
}

// ManifestFile describes a published file.
type ManifestFile struct {
	Name    string `json:"name"`
	Dataset string `json:"dataset"`
	Format  string `json:"format"`
	Records int    `json:"records"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
}

// Manifest describes one published snapshot.
type Manifest struct {
	RunID       string         `json:"run_id"`
	Version     string         `json:"version"`
	Date        string         `json:"date"`
	GeneratedAt time.Time      `json:"generated_at"`
	Files       []ManifestFile `json:"files"`

	// Dir is the processed directory the file names are relative to.
	Dir string `json:"-"`
	// Path is the manifest file itself.
	Path string `json:"-"`
}

// Publisher writes snapshots. The date stamp is fixed when the Publisher is
// created so every file of a run shares it.
type Publisher struct {
	opts   Options
	at     time.Time
	date   string
	logger *slog.Logger
}

// NewPublisher creates a publisher, filling zero Options with defaults.
func NewPublisher(opts Options, logger *slog.Logger) *Publisher {
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = DefaultProcessedDir
	}
	if opts.LatestDir == "" {
		opts.LatestDir = DefaultLatestDir
	}
	if opts.VersionFile == "" {
		opts.VersionFile = DefaultVersionFile
	}
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultDateLayout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	at := opts.Now()
	return &Publisher{
		opts:   opts,
		at:     at,
		date:   at.Format(opts.DateLayout),
		logger: logger,
	}
}

// Date returns the run's date stamp.
func (p *Publisher) Date() string { return p.date }

// Version returns the version string written to the version file.
func (p *Publisher) Version() string { return "v_" + p.date }

// ProcessedDir returns the directory dated files are written to.
func (p *Publisher) ProcessedDir() string { return p.opts.ProcessedDir }

// LatestDir returns the directory holding the latest links.
func (p *Publisher) LatestDir() string { return p.opts.LatestDir }

// Prepare creates the processed and latest directories.
func (p *Publisher) Prepare() error {
	for _, dir := range []string{p.opts.ProcessedDir, p.opts.LatestDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Path returns the dated output path <processed>/<prefix>_<date><ext>.
func (p *Publisher) Path(prefix, ext string) string {
	return filepath.Join(p.opts.ProcessedDir, fmt.Sprintf("%s_%s%s", prefix, p.date, ext))
}

// Publish records the files in a manifest, refreshes the latest links and
// writes the version file. Files must already exist.
func (p *Publisher) Publish(runID string, files []File) (*Manifest, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if err := p.Prepare(); err != nil {
		return nil, err
	}

	m := &Manifest{
		RunID:       runID,
		Version:     p.Version(),
		Date:        p.date,
		GeneratedAt: p.at.UTC(),
		Dir:         p.opts.ProcessedDir,
	}
	for _, f := range files {
		size, sum, err := digest(f.Path)
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, ManifestFile{
			Name:    filepath.Base(f.Path),
			Dataset: f.Dataset,
			Format:  f.Format,
			Records: f.Records,
			Size:    size,
			SHA256:  sum,
		})
	}

	m.Path = p.Path(ManifestPrefix, ".json")
	if err := writeManifest(m); err != nil {
		return nil, err
	}

	if p.opts.CleanLatest {
		if err := cleanDir(p.opts.LatestDir); err != nil {
			return nil, err
		}
	}

	links := make([]string, 0, len(files)+1)
	for _, f := range files {
		links = append(links, f.Path)
	}
	links = append(links, m.Path)
	for _, target := range links {
		if err := Link(target, p.opts.LatestDir); err != nil {
			return nil, err
		}
	}

	if err := os.WriteFile(p.opts.VersionFile, []byte(m.Version), 0o644); err != nil {
		return nil, fmt.Errorf("write version file: %w", err)
	}

	p.logger.Info("Published snapshot",
		"version", m.Version,
		"files", len(m.Files),
		"processed_dir", p.opts.ProcessedDir,
		"latest_dir", p.opts.LatestDir)
	return m, nil
}

// Link creates or replaces dir/<base of target> as a symlink to target,
// relative to dir.
func Link(target, dir string) error {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil {
		return fmt.Errorf("relative link for %s: %w", target, err)
	}

	link := filepath.Join(absDir, filepath.Base(absTarget))
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("replace %s: %w", link, err)
		}
	}
	if err := os.Symlink(rel, link); err != nil {
		return fmt.Errorf("link %s: %w", link, err)
	}
	return nil
}

// cleanDir removes regular files and symlinks from dir, leaving subdirectories.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clean %s: %w", dir, err)
		}
	}
	return nil
}

func digest(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("hash %s: %w", path, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func writeManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(m.Path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Publish.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.Dir = filepath.Dir(path)
	m.Path = path
	return &m, nil
}
