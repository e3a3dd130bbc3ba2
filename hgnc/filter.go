// Package hgnc projects the HGNC complete gene set onto a subset of columns.
package hgnc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c360studio/orphasnap/tabular"
)

// DefaultColumns are the columns kept from hgnc_complete_set.txt.
var DefaultColumns = []string{
	"symbol",
	"name",
	"entrez_id",
	"ensembl_gene_id",
	"uniprot_ids",
}

// Errors returned by Filter.
var (
	ErrEmptyInput    = errors.New("hgnc input has no header row")
	ErrMissingColumn = errors.New("hgnc column not found")
)

// Filter reads a tab-separated table with a header row and keeps only the
// named columns, in the order given. Every value stays text; rows shorter
// than the header yield empty cells.
func Filter(r io.Reader, columns []string) (*tabular.Table, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	positions := make([]int, len(columns))
	var missing []string
	for i, col := range columns {
		pos, ok := index[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		positions[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	t := &tabular.Table{Header: append([]string(nil), columns...)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+2, err)
		}

		row := make([]string, len(positions))
		for i, pos := range positions {
			if pos < len(rec) {
				row[i] = rec[pos]
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// FilterFile is Filter over a file on disk.
func FilterFile(path string, columns []string) (*tabular.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hgnc file: %w", err)
	}
	defer f.Close()

	t, err := Filter(f, columns)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", path, err)
	}
	return t, nil
}
