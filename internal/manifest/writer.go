package manifest

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"keeper/internal/pipeline"
)

// Writer appends rows to a manifest file, flushing after every row so an
// interrupted stage loses at most the in-flight record.
type Writer struct {
	file   *os.File
	csv    *csv.Writer
	schema Schema
}

// OpenWriter opens (or creates) a manifest for appending. The header row is
// written only when the file is new or empty, which keeps resumed stages
// from corrupting their own outputs.
func OpenWriter(path string, schema Schema) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pipeline.Wrap(pipeline.ErrIO, "", "create manifest dir", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIO, "", "open manifest", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, pipeline.Wrap(pipeline.ErrIO, "", "stat manifest", path, err)
	}

	writer := &Writer{file: file, csv: csv.NewWriter(file), schema: schema}
	if info.Size() == 0 {
		if err := writer.csv.Write(schema.Columns); err != nil {
			_ = file.Close()
			return nil, pipeline.Wrap(pipeline.ErrIO, "", "write manifest header", path, err)
		}
		writer.csv.Flush()
		if err := writer.csv.Error(); err != nil {
			_ = file.Close()
			return nil, pipeline.Wrap(pipeline.ErrIO, "", "flush manifest header", path, err)
		}
	}
	return writer, nil
}

// Write appends one row and flushes it to disk.
func (w *Writer) Write(row Row) error {
	if err := w.csv.Write(w.schema.record(row)); err != nil {
		return pipeline.Wrap(pipeline.ErrIO, "", "write manifest row", w.file.Name(), err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return pipeline.Wrap(pipeline.ErrIO, "", "flush manifest row", w.file.Name(), err)
	}
	return nil
}

// Close flushes buffered output and releases the file.
func (w *Writer) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
