// Package dataset reads an uploaded table and builds the column preview
// shown on the root node.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// DefaultPreviewRows is how many data rows the root node shows.
const DefaultPreviewRows = 10

// maxSize caps uploads read into memory.
const maxSize = 64 << 20

// ErrInvalid is returned for files that cannot be parsed as a table.
var ErrInvalid = errors.New("invalid dataset")

// Dataset is an uploaded table: the raw bytes sent to the backend and the
// column preview.
type Dataset struct {
	Name    string
	Data    []byte
	Columns []graph.Column
	// Rows is the number of data rows read, header excluded.
	Rows int
}

// Reader returns a reader over the raw file content.
func (d Dataset) Reader() io.Reader {
	return bytes.NewReader(d.Data)
}

// RootContent is the root node payload for d.
func (d Dataset) RootContent() graph.RootContent {
	return graph.RootContent{Title: d.Name, Columns: d.Columns}
}

// Load parses a CSV with a header row and keeps the first previewRows data
// rows as columns.
func Load(name string, r io.Reader, previewRows int) (Dataset, error) {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return Dataset{}, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxSize {
		return Dataset{}, fmt.Errorf("%w: %s is larger than %d bytes", ErrInvalid, name, maxSize)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, fmt.Errorf("%w: %s is empty", ErrInvalid, name)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}

	cols := make([]graph.Column, len(header))
	for i, h := range header {
		cols[i] = graph.Column{Title: strings.TrimSpace(h), Rows: []string{}}
	}

	rows := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
		rows++
		if rows > previewRows {
			continue
		}
		for i := range cols {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			cols[i].Rows = append(cols[i].Rows, cell)
		}
	}

	return Dataset{Name: name, Data: data, Columns: cols, Rows: rows}, nil
}

// LoadFile loads a dataset from disk, named after the file.
func LoadFile(path string, previewRows int) (Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()
	return Load(filepath.Base(path), f, previewRows)
}
