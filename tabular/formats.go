// Package tabular serializes header-plus-rows tables to delimited text,
// spreadsheet and columnar files.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrUnknownFormat is returned for an unregistered format name.
var ErrUnknownFormat = errors.New("unknown table format")

// Format identifies an output encoding.
type Format string

// Supported formats.
const (
	FormatTSV     Format = "tsv"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// FormatInfo provides metadata about a table format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTSV: {
		Name:        FormatTSV,
		MIMEType:    "text/tab-separated-values",
		Extension:   ".tsv",
		Description: "Tab-separated values",
	},
	FormatCSV: {
		Name:        FormatCSV,
		MIMEType:    "text/csv",
		Extension:   ".csv",
		Description: "Comma-separated values",
	},
	FormatXLSX: {
		Name:        FormatXLSX,
		MIMEType:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Extension:   ".xlsx",
		Description: "Office Open XML workbook",
	},
	FormatParquet: {
		Name:        FormatParquet,
		MIMEType:    "application/vnd.apache.parquet",
		Extension:   ".parquet",
		Description: "Apache Parquet, snappy compressed",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat resolves a case-insensitive format name, with or without a leading dot.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "."))
	if _, ok := FormatRegistry[f]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, name, strings.Join(FormatNames(), ", "))
	}
	return f, nil
}

// FormatNames returns the registered format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Table is a header row plus data rows, all text.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Writer encodes a table.
type Writer interface {
	Write(w io.Writer, t *Table) error
}

// NewWriter returns the writer for a format.
func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatTSV:
		return &DelimitedWriter{Comma: '\t'}, nil
	case FormatCSV:
		return &DelimitedWriter{Comma: ','}, nil
	case FormatXLSX:
		return &XLSXWriter{}, nil
	case FormatParquet:
		return &ParquetWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile encodes t into path, creating or truncating it.
func WriteFile(path string, format Format, t *Table) error {
	w, err := NewWriter(format)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := w.Write(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s table %s: %w", format, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
