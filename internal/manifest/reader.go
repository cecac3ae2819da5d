package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"keeper/internal/pipeline"
)

// Reader streams rows from a manifest file.
type Reader struct {
	file    *os.File
	csv     *csv.Reader
	columns []string
	offset  int
}

// OpenReader opens a manifest and validates its header against the schema.
// Extra columns are tolerated; missing schema columns are an error since
// the downstream stage could not make decisions without them.
func OpenReader(path string, schema Schema) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIO, "", "open manifest", path, err)
	}

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		_ = file.Close()
		return nil, pipeline.Wrap(pipeline.ErrIO, "", "read manifest header", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	present := make(map[string]struct{}, len(header))
	for _, column := range header {
		present[column] = struct{}{}
	}
	for _, column := range schema.Columns {
		if _, ok := present[column]; !ok {
			_ = file.Close()
			return nil, fmt.Errorf("manifest %s: missing column %q for %s schema", path, column, schema.Name)
		}
	}

	return &Reader{file: file, csv: cr, columns: header}, nil
}

// Next returns the next row and its zero-based offset within the manifest
// body. io.EOF signals the end of the manifest.
func (r *Reader) Next() (Row, int, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return Row{}, r.offset, io.EOF
	}
	if err != nil {
		return Row{}, r.offset, pipeline.Wrap(pipeline.ErrIO, "", "read manifest row", fmt.Sprintf("offset %d", r.offset), err)
	}

	var row Row
	for i, column := range r.columns {
		if i < len(record) {
			row.setField(column, record[i])
		}
	}
	offset := r.offset
	r.offset++
	return row, offset, nil
}

// Skip advances past n rows without decoding them.
func (r *Reader) Skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.csv.Read(); err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return pipeline.Wrap(pipeline.ErrIO, "", "skip manifest row", fmt.Sprintf("offset %d", r.offset), err)
		}
		r.offset++
	}
	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// ReadAll loads every row of a manifest into memory. Intended for group
// resolution and tests, not for the row-by-row stages.
func ReadAll(path string, schema Schema) ([]Row, error) {
	reader, err := OpenReader(path, schema)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var rows []Row
	for {
		row, _, err := reader.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
