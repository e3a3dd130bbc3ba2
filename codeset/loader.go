package codeset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xuri/excelize/v2"
)

// DefaultColumn is the spreadsheet header holding OrphaCodes.
const DefaultColumn = "Orphacodes"

var (
	// ErrNoInput is returned when a configured pattern matches no file.
	ErrNoInput = errors.New("no code set input found")

	// ErrMissingColumn is returned when a spreadsheet lacks the code column.
	ErrMissingColumn = errors.New("code column not found")

	// ErrUnsupportedInput is returned for files that are neither text nor xlsx.
	ErrUnsupportedInput = errors.New("unsupported code set input")
)

// leadingCode keeps the numeric prefix of entries such as "166024 (Phelan-McDermid)".
var leadingCode = regexp.MustCompile(`^(\d+)`)

// Options configures a Loader.
type Options struct {
	// Patterns are file paths or doublestar globs, read in order.
	Patterns []string

	// Sheet is the spreadsheet sheet to read (empty = first sheet).
	Sheet string

	// Column is the spreadsheet header holding codes (empty = DefaultColumn).
	Column string
}

// Loader reads code sets from text files and spreadsheets.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Column == "" {
		opts.Column = DefaultColumn
	}
	return &Loader{opts: opts, logger: logger}
}

// Load resolves every pattern and merges all codes into one set. Files
// matched by one glob are read in lexical order.
func (l *Loader) Load(ctx context.Context) (*Set, error) {
	set := New()
	for _, pattern := range l.opts.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoInput, pattern)
		}
		sort.Strings(matches)

		for _, path := range matches {
			before := set.Len()
			if err := l.loadFile(path, set); err != nil {
				return nil, err
			}
			l.logger.Debug("Loaded code set input",
				slog.String("path", path),
				slog.Int("added", set.Len()-before))
		}
	}

	if set.Len() == 0 {
		l.logger.Warn("Code set is empty; outputs will have no rows")
	}
	return set, nil
}

func (l *Loader) loadFile(path string, set *Set) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open code set %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		err = ReadSpreadsheet(f, l.opts.Sheet, l.opts.Column, set)
	case ".txt", ".list", "":
		err = ReadText(f, set)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
	}
	if err != nil {
		return fmt.Errorf("read code set %s: %w", path, err)
	}
	return nil
}

// ReadText adds one code per line, trimming whitespace and skipping blanks.
func ReadText(r io.Reader, set *Set) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if code := strings.TrimSpace(scanner.Text()); code != "" {
			set.Add(code)
		}
	}
	return scanner.Err()
}

// ReadSpreadsheet adds codes from the named column of an xlsx workbook. The
// first row is the header. Each cell may hold several comma-separated entries;
// the leading digits of every entry are kept and entries without any are dropped.
func ReadSpreadsheet(r io.Reader, sheet, column string, set *Set) error {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: sheet %q is empty", ErrMissingColumn, sheet)
	}

	col := -1
	for i, name := range rows[0] {
		if strings.TrimSpace(name) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return fmt.Errorf("%w: %q in sheet %q", ErrMissingColumn, column, sheet)
	}

	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		for _, part := range ParseCell(row[col]) {
			set.Add(part)
		}
	}
	return nil
}

// ParseCell extracts codes from a spreadsheet cell such as "166024, 3380 (alias)".
func ParseCell(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	var codes []string
	for _, part := range strings.Split(cell, ",") {
		if m := leadingCode.FindStringSubmatch(strings.TrimSpace(part)); m != nil {
			codes = append(codes, m[1])
		}
	}
	return codes
}
