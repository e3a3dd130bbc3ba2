package main

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/orphasnap/codeset"
	"github.com/c360studio/orphasnap/config"
	"github.com/c360studio/orphasnap/metrics"
	"github.com/c360studio/orphasnap/mirror"
	"github.com/c360studio/orphasnap/notify"
	"github.com/c360studio/orphasnap/pipeline"
	"github.com/c360studio/orphasnap/snapshot"
	"github.com/c360studio/orphasnap/source"
	"github.com/c360studio/orphasnap/source/weburl"
	"github.com/c360studio/orphasnap/tabular"
)

func newFetcher(cfg *config.Config, logger *slog.Logger) *source.Fetcher {
	opts := []source.Option{source.WithLogger(logger)}
	if cfg.Fetch.AllowInsecure {
		opts = append(opts, source.WithURLValidator(weburl.ValidateURLAllowHTTP))
	}
	return source.NewFetcher(cfg.GetFetchTimeout(), cfg.Fetch.UserAgent, cfg.GetMaxContentSize(), opts...)
}

func newCodeLoader(cfg *config.Config, logger *slog.Logger) *codeset.Loader {
	return codeset.NewLoader(codeset.Options{
		Patterns: cfg.Codes.Paths,
		Sheet:    cfg.Codes.Sheet,
		Column:   cfg.Codes.Column,
	}, logger)
}

func newPublisher(cfg *config.Config, logger *slog.Logger) *snapshot.Publisher {
	return snapshot.NewPublisher(snapshot.Options{
		ProcessedDir: cfg.Output.ProcessedDir,
		LatestDir:    cfg.Output.LatestDir,
		VersionFile:  cfg.Output.VersionFile,
		CleanLatest:  cfg.ShouldCleanLatest(),
		DateLayout:   cfg.Output.DateFormat,
	}, logger)
}

func newMirror(cfg *config.Config, logger *slog.Logger) (*mirror.Mirror, error) {
	store, err := mirror.NewS3Store(mirror.S3Config{
		Endpoint:  cfg.Mirror.Endpoint,
		AccessKey: cfg.Mirror.AccessKey,
		SecretKey: cfg.Mirror.SecretKey,
		Region:    cfg.Mirror.Region,
		UseSSL:    !cfg.Mirror.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	return mirror.New(store, cfg.Mirror.Bucket, cfg.Mirror.Prefix, logger), nil
}

func parseFormats(names []string) ([]tabular.Format, error) {
	formats := make([]tabular.Format, 0, len(names))
	for _, name := range names {
		f, err := tabular.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func pipelineOptions(cfg *config.Config) (pipeline.Options, error) {
	formats, err := parseFormats(cfg.Output.Formats)
	if err != nil {
		return pipeline.Options{}, err
	}
	hgncFormats, err := parseFormats(cfg.Output.HGNCFormats)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Sources: pipeline.Sources{
			Definitions: cfg.Sources.Definitions,
			Phenotypes:  cfg.Sources.Phenotypes,
			Prevalence:  cfg.Sources.Prevalence,
			OMIM:        cfg.Sources.OMIM,
			HGNC:        cfg.Sources.HGNC,
		},
		TargetFrequency: cfg.Extract.TargetFrequency,
		HGNCColumns:     cfg.HGNC.Columns,
		Formats:         formats,
		HGNCFormats:     hgncFormats,
	}, nil
}

// newRunner wires a runner from configuration. The returned close function
// releases the NATS connection, if any.
func newRunner(cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	opts, err := pipelineOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	options := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics.New(), cfg.Metrics.Textfile),
	}

	if cfg.MirrorEnabled() {
		m, err := newMirror(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		options = append(options, pipeline.WithMirror(m))
	}

	if cfg.NotifyEnabled() {
		conn, err := notify.Connect(cfg.Notify.NATSURL, cfg.GetNotifyTimeout())
		if err != nil {
			return nil, nil, err
		}
		closeFn = conn.Close
		options = append(options, pipeline.WithNotifier(notify.NewNotifier(conn, cfg.Notify.Subject, logger).WithFlushTimeout(cfg.GetNotifyTimeout())))
	}

	runner := pipeline.New(opts,
		newFetcher(cfg, logger),
		newCodeLoader(cfg, logger),
		newPublisher(cfg, logger),
		options...,
	)
	return runner, closeFn, nil
}
