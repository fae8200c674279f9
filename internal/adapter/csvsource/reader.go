// Package csvsource loads traffic tables from CSV files on disk.
package csvsource

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/go-gota/gota/dataframe"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader reads a CSV file into an untyped column table. Every cell is kept as
// a string; typing happens in domain.Normalize.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a CSV Reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Load reads path. Failures are returned as *domain.LoadError.
func (r *Reader) Load(ctx context.Context, path string) (domain.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawTable{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.RawTable{}, &domain.LoadError{
				Path:  path,
				Cause: fmt.Sprintf("%s: %s", domain.ErrFileNotFound, path),
				Err:   fmt.Errorf("%w: %w", domain.ErrFileNotFound, err),
			}
		}
		return domain.RawTable{}, domain.NewLoadError(path, err)
	}

	table, err := Parse(data)
	if err != nil {
		return domain.RawTable{}, domain.NewLoadError(path, err)
	}
	r.logger.Debug("csv loaded", "path", path, "rows", table.Rows, "columns", len(table.Order))
	return table, nil
}

// Parse decodes CSV bytes. The first record is the header. Empty or duplicate
// header names are renamed ("Unnamed: 3", "Queue.1") before alias resolution.
// The returned table holds only canonical columns, named canonically, in
// source order. Rows shorter than the header are padded with blanks; a row
// longer than the header is an error.
func Parse(data []byte) (domain.RawTable, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, domain.ErrEmptyInput
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("parse header: %w", err)
	}
	header = uniqueHeader(header)

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawTable{}, fmt.Errorf("parse row %d: %w", len(rows)+1, err)
		}
		if len(row) > len(header) {
			line, _ := cr.FieldPos(0)
			return domain.RawTable{}, fmt.Errorf("%w: line %d has %d fields, header has %d",
				domain.ErrRaggedRow, line, len(row), len(header))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows = append(rows, row)
	}

	t, err := canonicalize(header, rows)
	if err != nil {
		return domain.RawTable{}, err
	}
	t.Digest = digest
	return t, nil
}

// canonicalize loads the rows into a string DataFrame, keeps only the columns
// that feed a canonical column and renames aliases to their canonical name.
// Rows is the data row count even when no column is kept.
func canonicalize(header []string, rows [][]string) (domain.RawTable, error) {
	sources := domain.ResolveColumns(header)
	canonical := make(map[string]string, len(sources))
	for target, src := range sources {
		canonical[src] = target
	}

	var keep, names []string
	for _, h := range header {
		if target, ok := canonical[h]; ok {
			keep = append(keep, h)
			names = append(names, target)
		}
	}

	if len(rows) == 0 || len(keep) == 0 {
		t := domain.NewRawTable(names, nil)
		t.Rows = len(rows)
		return t, nil
	}

	df := dataframe.LoadRecords(
		append([][]string{header}, rows...),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues(nil),
	).Select(keep)
	for i, src := range keep {
		if names[i] != src {
			df = df.Rename(names[i], src)
		}
	}
	if df.Err != nil {
		return domain.RawTable{}, fmt.Errorf("build frame: %w", df.Err)
	}

	t := domain.RawTable{
		Columns: make(map[string][]string, df.Ncol()),
		Order:   df.Names(),
		Rows:    df.Nrow(),
	}
	for _, name := range t.Order {
		t.Columns[name] = df.Col(name).Records()
	}
	return t, nil
}

// uniqueHeader names blank headers "Unnamed: <index>" and suffixes repeats with
// ".1", ".2" and so on, skipping suffixes that collide with existing names.
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[h]; dup {
			name := h
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if !taken[name] {
					break
				}
			}
			seen[h] = n
			taken[name] = true
			out[i] = name
			continue
		}
		seen[h] = 0
		taken[h] = true
		out[i] = h
	}
	return out
}
