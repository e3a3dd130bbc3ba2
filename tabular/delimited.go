package tabular

import (
	"encoding/csv"
	"io"
)

// DelimitedWriter writes RFC 4180 style text with a configurable separator.
// Fields containing the separator, quotes or newlines are quoted.
type DelimitedWriter struct {
	Comma rune
}

// Write encodes the header followed by every row.
func (d *DelimitedWriter) Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if d.Comma != 0 {
		cw.Comma = d.Comma
	}
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
