// Package mirror copies a published snapshot to S3-compatible object storage.
//
// Objects are laid out as
//
//	<prefix>/<version>/<file name>
//	<prefix>/<version>/manifest_<date>.json
//	<prefix>/latest.json
//
// where latest.json is a copy of the newest manifest.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/c360studio/orphasnap/snapshot"
	"github.com/c360studio/orphasnap/tabular"
)

// LatestKey is the object name of the newest manifest under the prefix.
const LatestKey = "latest.json"

// ObjectStore is the storage surface the mirror needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutFile(ctx context.Context, bucket, key, path, contentType string) error
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Mirror uploads snapshots into one bucket.
type Mirror struct {
	store  ObjectStore
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates a mirror.
func New(store ObjectStore, bucket, prefix string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns the object key for name inside version.
func (m *Mirror) Key(version, name string) string {
	return path.Join(m.prefix, version, name)
}

// Upload copies every manifest file, then the manifest, then latest.json.
// It returns the keys written, in that order.
func (m *Mirror) Upload(ctx context.Context, manifest *snapshot.Manifest) ([]string, error) {
	if err := m.store.EnsureBucket(ctx, m.bucket); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(manifest.Files)+2)
	for _, f := range manifest.Files {
		key := m.Key(manifest.Version, f.Name)
		src := filepath.Join(manifest.Dir, f.Name)
		if err := m.store.PutFile(ctx, m.bucket, key, src, contentType(f.Format)); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	data, err := os.ReadFile(manifest.Path)
	if err != nil {
		return keys, fmt.Errorf("read manifest: %w", err)
	}
	manifestKey := m.Key(manifest.Version, filepath.Base(manifest.Path))
	if err := m.store.PutObject(ctx, m.bucket, manifestKey, data, "application/json"); err != nil {
		return keys, err
	}
	keys = append(keys, manifestKey)

	latestKey := path.Join(m.prefix, LatestKey)
	if err := m.store.PutObject(ctx, m.bucket, latestKey, data, "application/json"); err != nil {
		return keys, err
	}
	keys = append(keys, latestKey)

	m.logger.Info("Mirrored snapshot", "bucket", m.bucket, "prefix", m.prefix, "objects", len(keys))
	return keys, nil
}

func contentType(format string) string {
	if info, ok := tabular.GetFormatInfo(tabular.Format(format)); ok {
		return info.MIMEType
	}
	return "application/octet-stream"
}
