package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/stocksight/stocksight/internal/config"
)

// ChunkSource supplies raw rows in bounded chunks. The pipeline never
// sees the underlying format; file loaders implement this contract.
type ChunkSource interface {
	// Header returns the column names
	Header() []string

	// Next returns the next chunk of rows, or io.EOF when exhausted
	Next(ctx context.Context) ([][]string, error)

	// Close releases the underlying resource
	Close() error
}

// CSVSource reads a CSV file in row chunks
type CSVSource struct {
	file      *os.File
	reader    *csv.Reader
	header    []string
	chunkRows int
}

// OpenCSV opens a CSV file as a chunked row source. Files above the
// configured size limit are rejected before any rows are read.
func OpenCSV(path string, chunkRows int, cfg config.DatasetConfig) (*CSVSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxBytes := cfg.MaxFileSizeMB * 1024 * 1024; info.Size() > maxBytes {
		return nil, fmt.Errorf("file %s exceeds size limit: %d > %d bytes", path, info.Size(), maxBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged rows surface as short cells, not fatal errors

	header, err := reader.Read()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	if chunkRows < 1 {
		chunkRows = 10000
	}

	return &CSVSource{
		file:      file,
		reader:    reader,
		header:    header,
		chunkRows: chunkRows,
	}, nil
}

// Header returns the column names
func (s *CSVSource) Header() []string {
	return s.header
}

// Next reads up to chunkRows rows. Returns io.EOF when the file is done.
func (s *CSVSource) Next(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, s.chunkRows)
	for len(rows) < s.chunkRows {
		row, err := s.reader.Read()
		if err == io.EOF {
			if len(rows) == 0 {
				return nil, io.EOF
			}
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close closes the underlying file
func (s *CSVSource) Close() error {
	return s.file.Close()
}

// SliceSource serves in-memory rows as a ChunkSource. Used by tests and
// by callers that already hold parsed rows.
type SliceSource struct {
	header    []string
	rows      [][]string
	chunkRows int
	offset    int
}

// NewSliceSource wraps rows already in memory
func NewSliceSource(header []string, rows [][]string, chunkRows int) *SliceSource {
	if chunkRows < 1 {
		chunkRows = len(rows)
		if chunkRows < 1 {
			chunkRows = 1
		}
	}
	return &SliceSource{header: header, rows: rows, chunkRows: chunkRows}
}

// Header returns the column names
func (s *SliceSource) Header() []string { return s.header }

// Next returns the next chunk of rows, or io.EOF when exhausted
func (s *SliceSource) Next(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.offset >= len(s.rows) {
		return nil, io.EOF
	}
	end := s.offset + s.chunkRows
	if end > len(s.rows) {
		end = len(s.rows)
	}
	chunk := s.rows[s.offset:end]
	s.offset = end
	return chunk, nil
}

// Close is a no-op for in-memory sources
func (s *SliceSource) Close() error { return nil }
