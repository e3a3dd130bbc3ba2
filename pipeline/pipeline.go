// Package pipeline runs one update: load codes, stage sources, extract and
// merge Orphadata feeds, filter HGNC, write tables and publish a snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/orphasnap/codeset"
	"github.com/c360studio/orphasnap/hgnc"
	"github.com/c360studio/orphasnap/metrics"
	"github.com/c360studio/orphasnap/orphadata"
	"github.com/c360studio/orphasnap/snapshot"
	"github.com/c360studio/orphasnap/source"
	"github.com/c360studio/orphasnap/tabular"
)

// Output file prefixes; the publisher appends _<date><ext>.
const (
	OrphadataPrefix = "orphadata_filtered"
	HGNCPrefix      = "hgnc_filtered"

	DatasetOrphadata = "orphadata"
	DatasetHGNC      = "hgnc"
)

// ErrNoCodes is returned when the code loader yields an empty set.
var ErrNoCodes = errors.New("code set is empty")

// Fetcher streams a location into dst.
type Fetcher interface {
	Fetch(ctx context.Context, location string, dst io.Writer) (int64, error)
}

// CodeLoader produces the code set for a run.
type CodeLoader interface {
	Load(ctx context.Context) (*codeset.Set, error)
}

// Publisher names output files and publishes them.
type Publisher interface {
	Prepare() error
	Path(prefix, ext string) string
	Publish(runID string, files []snapshot.File) (*snapshot.Manifest, error)
	ProcessedDir() string
	LatestDir() string
}

// Mirror copies a published snapshot elsewhere.
type Mirror interface {
	Upload(ctx context.Context, m *snapshot.Manifest) ([]string, error)
}

// Notifier announces a published snapshot.
type Notifier interface {
	Published(ctx context.Context, m *snapshot.Manifest, objects []string) error
}

// Sources holds the location of every input.
type Sources struct {
	Definitions string
	Phenotypes  string
	Prevalence  string
	OMIM        string
	HGNC        string
}

// Options controls what a run produces.
type Options struct {
	Sources         Sources
	TargetFrequency string
	HGNCColumns     []string
	Formats         []tabular.Format
	HGNCFormats     []tabular.Format
	// WorkDir is the parent of the per-run download directory ("" = system temp).
	WorkDir string
	// AllowEmptyCodes lets a run publish header-only tables.
	AllowEmptyCodes bool
}

// Result summarizes a successful run.
type Result struct {
	RunID    string
	Codes    int
	Records  []orphadata.Record
	Genes    int
	Manifest *snapshot.Manifest
	Objects  []string
}

// Runner executes runs with injected collaborators.
type Runner struct {
	opts      Options
	fetcher   Fetcher
	codes     CodeLoader
	publisher Publisher
	mirror    Mirror
	notifier  Notifier
	metrics   *metrics.Metrics
	textfile  string
	newRunID  func() string
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMirror uploads every published snapshot.
func WithMirror(m Mirror) Option {
	return func(r *Runner) { r.mirror = m }
}

// WithNotifier announces every published snapshot.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithMetrics records run metrics and, when textfile is set, writes them there.
func WithMetrics(m *metrics.Metrics, textfile string) Option {
	return func(r *Runner) {
		r.metrics = m
		r.textfile = textfile
	}
}

// WithRunID overrides the run ID generator.
func WithRunID(fn func() string) Option {
	return func(r *Runner) { r.newRunID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner.
func New(opts Options, fetcher Fetcher, codes CodeLoader, publisher Publisher, options ...Option) *Runner {
	if len(opts.Formats) == 0 {
		opts.Formats = []tabular.Format{tabular.FormatTSV}
	}
	if len(opts.HGNCColumns) == 0 {
		opts.HGNCColumns = hgnc.DefaultColumns
	}
	if opts.TargetFrequency == "" {
		opts.TargetFrequency = orphadata.DefaultTargetFrequency
	}

	r := &Runner{
		opts:      opts,
		fetcher:   fetcher,
		codes:     codes,
		publisher: publisher,
		newRunID:  uuid.NewString,
	}
	for _, o := range options {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run performs one full update.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	runID := r.newRunID()
	logger := r.logger.With("run_id", runID)

	defer func() {
		r.metrics.ObserveRun(start, err)
		if werr := r.metrics.WriteTextfile(r.textfile); werr != nil {
			logger.Warn("Failed to write metrics textfile", "path", r.textfile, "error", werr)
		}
	}()

	codes, err := r.loadCodes(ctx, logger)
	if err != nil {
		return nil, err
	}

	stager, cleanup, err := r.newStager(logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	records, err := r.extract(ctx, stager, codes, logger)
	if err != nil {
		return nil, err
	}

	var genes *tabular.Table
	if len(r.opts.HGNCFormats) > 0 {
		genes, err = r.filterHGNC(ctx, stager)
		if err != nil {
			return nil, err
		}
	}

	if err := r.publisher.Prepare(); err != nil {
		return nil, err
	}

	files, err := r.writeTables(RecordsTable(records), DatasetOrphadata, OrphadataPrefix, r.opts.Formats)
	if err != nil {
		return nil, err
	}
	if genes != nil {
		geneFiles, err := r.writeTables(genes, DatasetHGNC, HGNCPrefix, r.opts.HGNCFormats)
		if err != nil {
			return nil, err
		}
		files = append(files, geneFiles...)
	}

	manifest, err := r.publisher.Publish(runID, files)
	if err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	r.metrics.PublishedFiles.Set(float64(len(manifest.Files)))
	r.metrics.Records.WithLabelValues(DatasetOrphadata).Set(float64(len(records)))
	r.metrics.Records.WithLabelValues(DatasetHGNC).Set(float64(genes.Len()))

	res = &Result{
		RunID:    runID,
		Codes:    codes.Len(),
		Records:  records,
		Genes:    genes.Len(),
		Manifest: manifest,
	}

	if r.mirror != nil {
		res.Objects, err = r.mirror.Upload(ctx, manifest)
		if err != nil {
			return nil, fmt.Errorf("mirror snapshot: %w", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Published(ctx, manifest, res.Objects); err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
	}

	logger.Info("Update complete",
		"version", manifest.Version,
		"records", len(records),
		"genes", genes.Len(),
		"processed_dir", r.publisher.ProcessedDir(),
		"latest_dir", r.publisher.LatestDir(),
		"duration", time.Since(start))
	return res, nil
}

// Extract stages the Orphadata feeds and returns the merged records for the
// code set without writing or publishing anything.
func (r *Runner) Extract(ctx context.Context) ([]orphadata.Record, error) {
	codes, err := r.loadCodes(ctx, r.logger)
	if err != nil {
		return nil, err
	}
	stager, cleanup, err := r.newStager(r.logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return r.extract(ctx, stager, codes, r.logger)
}

func (r *Runner) loadCodes(ctx context.Context, logger *slog.Logger) (*codeset.Set, error) {
	codes, err := r.codes.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load codes: %w", err)
	}
	if codes.Len() == 0 && !r.opts.AllowEmptyCodes {
		return nil, ErrNoCodes
	}
	r.metrics.Codes.Set(float64(codes.Len()))
	logger.Info("Loaded code set", "codes", codes.Len())
	return codes, nil
}

// newStager creates the per-run download directory; cleanup removes it.
func (r *Runner) newStager(logger *slog.Logger) (*source.Stager, func(), error) {
	workDir, err := os.MkdirTemp(r.opts.WorkDir, "orphasnap-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create work directory: %w", err)
	}
	logger.Debug("Using work directory", "path", workDir)
	return source.NewStager(workDir, r.fetcher, logger), func() { os.RemoveAll(workDir) }, nil
}

func (r *Runner) extract(ctx context.Context, stager *source.Stager, codes *codeset.Set, logger *slog.Logger) ([]orphadata.Record, error) {
	paths, err := r.stageFeeds(ctx, stager)
	if err != nil {
		return nil, err
	}
	extraction, err := orphadata.ExtractFiles(paths, codes, r.opts.TargetFrequency, logger)
	if err != nil {
		return nil, err
	}

	entries := map[orphadata.Feed]int{
		orphadata.FeedDefinitions: len(extraction.Definitions),
		orphadata.FeedPhenotypes:  len(extraction.Phenotypes),
		orphadata.FeedPrevalence:  len(extraction.Prevalence),
		orphadata.FeedOMIM:        len(extraction.OMIM),
	}
	for feed, n := range entries {
		r.metrics.FeedEntries.WithLabelValues(string(feed)).Set(float64(n))
	}

	return orphadata.Merge(codes, extraction), nil
}

func (r *Runner) stageFeeds(ctx context.Context, stager *source.Stager) (map[orphadata.Feed]string, error) {
	locations := map[orphadata.Feed]string{
		orphadata.FeedDefinitions: r.opts.Sources.Definitions,
		orphadata.FeedPhenotypes:  r.opts.Sources.Phenotypes,
		orphadata.FeedPrevalence:  r.opts.Sources.Prevalence,
		orphadata.FeedOMIM:        r.opts.Sources.OMIM,
	}

	paths := make(map[orphadata.Feed]string, len(locations))
	for _, feed := range orphadata.Feeds {
		loc := locations[feed]
		if loc == "" {
			continue
		}
		st, err := r.stage(ctx, stager, string(feed), loc)
		if err != nil {
			return nil, err
		}
		paths[feed] = st.Path
	}
	return paths, nil
}

func (r *Runner) filterHGNC(ctx context.Context, stager *source.Stager) (*tabular.Table, error) {
	if r.opts.Sources.HGNC == "" {
		return nil, fmt.Errorf("hgnc source is not configured")
	}
	st, err := r.stage(ctx, stager, DatasetHGNC, r.opts.Sources.HGNC)
	if err != nil {
		return nil, err
	}
	return hgnc.FilterFile(st.Path, r.opts.HGNCColumns)
}

func (r *Runner) stage(ctx context.Context, stager *source.Stager, feed, location string) (source.Staged, error) {
	st, err := stager.Stage(ctx, location)
	if err != nil {
		return st, fmt.Errorf("fetch %s: %w", feed, err)
	}
	if !st.Cached {
		r.metrics.FetchedBytes.WithLabelValues(feed).Add(float64(st.Bytes))
	}
	return st, nil
}

func (r *Runner) writeTables(t *tabular.Table, dataset, prefix string, formats []tabular.Format) ([]snapshot.File, error) {
	files := make([]snapshot.File, 0, len(formats))
	for _, format := range formats {
		info, ok := tabular.GetFormatInfo(format)
		if !ok {
			return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownFormat, format)
		}
		path := r.publisher.Path(prefix, info.Extension)
		if err := tabular.WriteFile(path, format, t); err != nil {
			return nil, err
		}
		r.logger.Debug("Wrote table", "dataset", dataset, "format", format, "path", path, "rows", t.Len())
		files = append(files, snapshot.File{
			Path:    path,
			Dataset: dataset,
			Format:  string(format),
			Records: t.Len(),
		})
	}
	return files, nil
}

// RecordsTable lays merged records out under orphadata.Header.
func RecordsTable(records []orphadata.Record) *tabular.Table {
	t := &tabular.Table{
		Header: append([]string(nil), orphadata.Header...),
		Rows:   make([][]string, 0, len(records)),
	}
	for _, rec := range records {
		t.Rows = append(t.Rows, rec.Values())
	}
	return t
}
