package tabular

import (
	"encoding/json"
	"fmt"
	"io"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// ParquetWriter writes every column as an optional UTF-8 string.
type ParquetWriter struct {
	// Parallelism is the number of marshalling goroutines (0 = 4).
	Parallelism int64
}

// Write encodes the table as a single snappy-compressed row group stream.
func (p *ParquetWriter) Write(w io.Writer, t *Table) error {
	np := p.Parallelism
	if np <= 0 {
		np = 4
	}

	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(parquetSchema(t.Header), pfw, np)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range t.Rows {
		rec, err := parquetRow(t.Header, row)
		if err != nil {
			_ = pw.WriteStop()
			return err
		}
		if err := pw.Write(rec); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return pfw.Close()
}

func parquetSchema(header []string) string {
	fields := make([]map[string]string, 0, len(header))
	for _, name := range header {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// parquetRow projects a row onto the header; short rows leave trailing columns null.
func parquetRow(header, row []string) (string, error) {
	rec := make(map[string]any, len(header))
	for i, name := range header {
		if i < len(row) {
			rec[name] = row[i]
		} else {
			rec[name] = nil
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode parquet row: %w", err)
	}
	return string(b), nil
}
