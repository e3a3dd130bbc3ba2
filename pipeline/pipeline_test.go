package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/c360studio/orphasnap/codeset"
	"github.com/c360studio/orphasnap/metrics"
	"github.com/c360studio/orphasnap/orphadata"
	"github.com/c360studio/orphasnap/snapshot"
	"github.com/c360studio/orphasnap/source"
	"github.com/c360studio/orphasnap/tabular"
)

type staticCodes struct {
	set *codeset.Set
	err error
}

func (s staticCodes) Load(context.Context) (*codeset.Set, error) { return s.set, s.err }

type fakeMirror struct {
	manifest *snapshot.Manifest
	err      error
}

func (f *fakeMirror) Upload(_ context.Context, m *snapshot.Manifest) ([]string, error) {
	f.manifest = m
	if f.err != nil {
		return nil, f.err
	}
	return []string{"snapshots/" + m.Version + "/latest.json"}, nil
}

type fakeNotifier struct {
	manifest *snapshot.Manifest
	objects  []string
}

func (f *fakeNotifier) Published(_ context.Context, m *snapshot.Manifest, objects []string) error {
	f.manifest = m
	f.objects = objects
	return nil
}

// datasetServer serves the orphadata and hgnc testdata and counts requests per path.
func datasetServer(t *testing.T) (*httptest.Server, map[string]*int32) {
	t.Helper()
	files := map[string]string{
		"/data/xml/en_product1.xml":      filepath.Join("..", "orphadata", "testdata", "en_product1.xml"),
		"/data/xml/en_product4.xml":      filepath.Join("..", "orphadata", "testdata", "en_product4.xml"),
		"/data/xml/en_product9_prev.xml": filepath.Join("..", "orphadata", "testdata", "en_product9_prev.xml"),
		"/hgnc/hgnc_complete_set.txt":    filepath.Join("..", "hgnc", "testdata", "hgnc_complete_set.txt"),
	}
	hits := make(map[string]*int32, len(files))
	for p := range files {
		hits[p] = new(int32)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(hits[r.URL.Path], 1)
		http.ServeFile(w, r, path)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func testSources(base string) Sources {
	return Sources{
		Definitions: base + "/data/xml/en_product1.xml",
		Phenotypes:  base + "/data/xml/en_product4.xml",
		Prevalence:  base + "/data/xml/en_product9_prev.xml",
		OMIM:        base + "/data/xml/en_product1.xml",
		HGNC:        base + "/hgnc/hgnc_complete_set.txt",
	}
}

func testPublisher(root string) *snapshot.Publisher {
	return snapshot.NewPublisher(snapshot.Options{
		ProcessedDir: filepath.Join(root, "data", "processed"),
		LatestDir:    filepath.Join(root, "data", "latest"),
		VersionFile:  filepath.Join(root, "version.txt"),
		CleanLatest:  true,
		Now:          func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) },
	}, nil)
}

func testFetcher(srv *httptest.Server) *source.Fetcher {
	return source.NewFetcher(5*time.Second, "orphasnap-test", 0,
		source.WithHTTPClient(srv.Client()),
		source.WithURLValidator(func(string) error { return nil }),
	)
}

func TestRunner_Run(t *testing.T) {
	srv, hits := datasetServer(t)
	root := t.TempDir()
	m := metrics.New()
	mirror := &fakeMirror{}
	notifier := &fakeNotifier{}
	textfile := filepath.Join(root, "orphasnap.prom")

	runner := New(Options{
		Sources:     testSources(srv.URL),
		Formats:     []tabular.Format{tabular.FormatTSV, tabular.FormatCSV, tabular.FormatXLSX},
		HGNCFormats: []tabular.Format{tabular.FormatTSV},
		WorkDir:     root,
	},
		testFetcher(srv),
		staticCodes{set: codeset.New("166024", "58", "3380", "42")},
		testPublisher(root),
		WithMirror(mirror),
		WithNotifier(notifier),
		WithMetrics(m, textfile),
		WithRunID(func() string { return "run-42" }),
	)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, 4, res.Codes)
	assert.Equal(t, 3, res.Genes)
	require.Len(t, res.Records, 4)
	assert.Equal(t, orphadata.Record{
		Code:       "166024",
		Definition: "A rare chromosomal anomaly syndrome with neonatal hypotonia and absent or delayed speech.",
		Phenotypes: "Seizure (HP:0001250); Hypotonia (HP:0001252)",
		Prevalence: "0.0 (<1 / 1 000 000) (PMID:12345678,87654321); 2.5",
		OMIM:       "606232; 607596",
	}, res.Records[0])
	assert.Equal(t, orphadata.Record{Code: "42"}, res.Records[3])

	assert.Equal(t, int32(1), *hits["/data/xml/en_product1.xml"], "shared product1 is downloaded once")
	assert.Equal(t, int32(1), *hits["/hgnc/hgnc_complete_set.txt"])

	// Published files
	processed := filepath.Join(root, "data", "processed")
	tsv, err := os.ReadFile(filepath.Join(processed, "orphadata_filtered_2025-03-14.tsv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(tsv), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "OrphaCode\tDefinition\tPhenotypes\tPrevalence\tOMIM", lines[0])
	assert.Equal(t, "42\t\t\t\t", lines[4])

	wb, err := excelize.OpenFile(filepath.Join(processed, "orphadata_filtered_2025-03-14.xlsx"))
	require.NoError(t, err)
	rows, err := wb.GetRows(tabular.DefaultSheet)
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	assert.Equal(t, orphadata.Header, rows[0])
	assert.Equal(t, "606232; 607596", rows[1][4])

	genes, err := os.ReadFile(filepath.Join(processed, "hgnc_filtered_2025-03-14.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(genes), "symbol\tname\tentrez_id\tensembl_gene_id\tuniprot_ids\n"))

	require.Len(t, res.Manifest.Files, 4)
	assert.Equal(t, "v_2025-03-14", res.Manifest.Version)
	for _, f := range res.Manifest.Files {
		_, err := os.Stat(filepath.Join(root, "data", "latest", f.Name))
		assert.NoError(t, err, f.Name)
	}
	version, err := os.ReadFile(filepath.Join(root, "version.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v_2025-03-14", string(version))

	// Collaborators
	assert.Same(t, res.Manifest, mirror.manifest)
	assert.Same(t, res.Manifest, notifier.manifest)
	assert.Equal(t, res.Objects, notifier.objects)

	// Metrics
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Codes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Records.WithLabelValues(DatasetOrphadata)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Records.WithLabelValues(DatasetHGNC)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FetchedBytes.WithLabelValues(string(orphadata.FeedOMIM))), "cached feed adds no bytes")
	assert.Positive(t, testutil.ToFloat64(m.FetchedBytes.WithLabelValues(string(orphadata.FeedDefinitions))))
	_, err = os.Stat(textfile)
	assert.NoError(t, err)

	// Work directory is removed.
	leftovers, err := filepath.Glob(filepath.Join(root, "orphasnap-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRunner_LocalSourcesWithoutHGNC(t *testing.T) {
	root := t.TempDir()
	testdata := filepath.Join("..", "orphadata", "testdata")

	runner := New(Options{
		Sources: Sources{
			Definitions: filepath.Join(testdata, "en_product1.xml"),
			OMIM:        filepath.Join(testdata, "en_product1.xml"),
		},
		Formats: []tabular.Format{tabular.FormatParquet},
	},
		source.NewFetcher(time.Second, "", 0),
		staticCodes{set: codeset.New("58")},
		testPublisher(root),
	)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []orphadata.Record{{Code: "58", Definition: "A rare leukodystrophy."}}, res.Records)
	assert.Equal(t, 0, res.Genes)
	require.Len(t, res.Manifest.Files, 1)
	assert.Equal(t, "orphadata_filtered_2025-03-14.parquet", res.Manifest.Files[0].Name)
	assert.NotEmpty(t, res.RunID)
}

func TestRunner_Errors(t *testing.T) {
	srv, _ := datasetServer(t)

	tests := []struct {
		name    string
		codes   staticCodes
		sources func(Sources) Sources
		mirror  Mirror
		wantErr error
		wantMsg string
	}{
		{
			name:    "empty code set",
			codes:   staticCodes{set: codeset.New()},
			wantErr: ErrNoCodes,
		},
		{
			name:    "loader failure",
			codes:   staticCodes{err: codeset.ErrNoInput},
			wantErr: codeset.ErrNoInput,
		},
		{
			name:  "missing feed",
			codes: staticCodes{set: codeset.New("58")},
			sources: func(s Sources) Sources {
				s.Phenotypes = srv.URL + "/data/xml/en_product404.xml"
				return s
			},
			wantMsg: "fetch phenotypes",
		},
		{
			name:    "mirror failure",
			codes:   staticCodes{set: codeset.New("58")},
			mirror:  &fakeMirror{err: errors.New("bucket gone")},
			wantMsg: "mirror snapshot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := testSources(srv.URL)
			if tt.sources != nil {
				sources = tt.sources(sources)
			}
			m := metrics.New()
			opts := []Option{WithMetrics(m, "")}
			if tt.mirror != nil {
				opts = append(opts, WithMirror(tt.mirror))
			}

			_, err := New(Options{
				Sources:     sources,
				HGNCFormats: []tabular.Format{tabular.FormatTSV},
			}, testFetcher(srv), tt.codes, testPublisher(t.TempDir()), opts...).Run(context.Background())

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RunFailures))
		})
	}
}

func TestRecordsTable(t *testing.T) {
	table := RecordsTable([]orphadata.Record{{Code: "1", OMIM: "100"}})
	assert.Equal(t, orphadata.Header, table.Header)
	assert.Equal(t, [][]string{{"1", "", "", "", "100"}}, table.Rows)
}

func TestRunner_Extract(t *testing.T) {
	srv, hits := datasetServer(t)

	runner := New(Options{
		Sources:         testSources(srv.URL),
		TargetFrequency: "Frequent (79-30%)",
	}, testFetcher(srv), staticCodes{set: codeset.New("166024")}, nil)

	records, err := runner.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Autism (HP:0000717)", records[0].Phenotypes)
	assert.Equal(t, int32(0), *hits["/hgnc/hgnc_complete_set.txt"], "extract does not touch HGNC")
}
