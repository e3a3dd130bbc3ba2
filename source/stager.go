package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/orphasnap/source/weburl"
)

// Getter is the part of Fetcher a Stager needs.
type Getter interface {
	Fetch(ctx context.Context, location string, dst io.Writer) (int64, error)
}

// Staged is a location materialized on the local filesystem.
type Staged struct {
	Location string
	Path     string
	Bytes    int64
	// Cached is set when an earlier Stage call already produced Path.
	Cached bool
	// Local is set when Path is the caller's own file, not a copy.
	Local bool
}

// Stager downloads remote locations into a work directory, once per location.
// Local files are used in place.
type Stager struct {
	dir    string
	getter Getter
	logger *slog.Logger
	staged map[string]Staged
	names  map[string]bool
}

// NewStager creates a stager writing into dir, which must exist.
func NewStager(dir string, getter Getter, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{
		dir:    dir,
		getter: getter,
		logger: logger,
		staged: make(map[string]Staged),
		names:  make(map[string]bool),
	}
}

// Stage returns a local path holding the content of location.
func (s *Stager) Stage(ctx context.Context, location string) (Staged, error) {
	location = strings.TrimSpace(location)
	if st, ok := s.staged[location]; ok {
		st.Cached = true
		return st, nil
	}

	kind, path, err := weburl.Classify(location)
	if err != nil {
		return Staged{}, err
	}

	var st Staged
	if kind == weburl.KindFile {
		info, err := os.Stat(path)
		if err != nil {
			return Staged{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			return Staged{}, fmt.Errorf("%s is a directory", path)
		}
		st = Staged{Location: location, Path: path, Bytes: info.Size(), Local: true}
	} else {
		st, err = s.download(ctx, location)
		if err != nil {
			return Staged{}, err
		}
	}

	s.staged[location] = st
	return st, nil
}

func (s *Stager) download(ctx context.Context, location string) (Staged, error) {
	dst := filepath.Join(s.dir, s.uniqueName(weburl.FileName(location)))
	f, err := os.Create(dst)
	if err != nil {
		return Staged{}, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := s.getter.Fetch(ctx, location, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", dst, cerr)
	}
	if err != nil {
		os.Remove(dst)
		return Staged{}, err
	}

	s.logger.Info("Downloaded", "location", location, "path", dst, "bytes", n)
	return Staged{Location: location, Path: dst, Bytes: n}, nil
}

func (s *Stager) uniqueName(base string) string {
	name := base
	for i := 2; s.names[name]; i++ {
		name = fmt.Sprintf("%d-%s", i, base)
	}
	s.names[name] = true
	return name
}
