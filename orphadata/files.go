package orphadata

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/c360studio/orphasnap/codeset"
)

// ExtractFiles fills a new Extraction from local feed files. Feeds mapped to
// the same path share a single scan. Feeds without a path are left empty.
func ExtractFiles(paths map[Feed]string, codes *codeset.Set, targetFrequency string, logger *slog.Logger) (*Extraction, error) {
	if logger == nil {
		logger = slog.Default()
	}
	x := NewExtraction(targetFrequency)

	// Group feeds by file, keeping feed order so scans run deterministically.
	var order []string
	byPath := make(map[string][]Feed)
	for _, feed := range Feeds {
		path := paths[feed]
		if path == "" {
			continue
		}
		if _, seen := byPath[path]; !seen {
			order = append(order, path)
		}
		byPath[path] = append(byPath[path], feed)
	}

	for _, path := range order {
		feeds := byPath[path]
		collectors := make([]Collector, 0, len(feeds))
		for _, feed := range feeds {
			c, err := x.Collector(feed)
			if err != nil {
				return nil, err
			}
			collectors = append(collectors, c)
		}

		n, err := scanFile(path, codes, collectors)
		if err != nil {
			return nil, fmt.Errorf("extract %v from %s: %w", feeds, path, err)
		}
		logger.Info("Extracted Orphadata feed",
			slog.Any("feeds", feeds),
			slog.String("path", path),
			slog.Int("disorders", n))
	}
	return x, nil
}

func scanFile(path string, codes *codeset.Set, collectors []Collector) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Scan(f, codes, collectors...)
}
