package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSVOptions controls numeric CSV parsing.
type CSVOptions struct {
	// HasHeader skips the first record.
	HasHeader bool

	// LabelColumn is the index of a class-label column, or -1 for none.
	// Label values may be integers or arbitrary strings; strings are
	// interned into class indices in first-seen order.
	LabelColumn int

	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// DefaultCSVOptions returns options for a plain headerless numeric CSV.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{HasHeader: false, LabelColumn: -1}
}

// LoadCSV loads a numeric CSV file into a dataset.
func LoadCSV(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	d, err := ReadCSV(f, opts)
	if err != nil {
		return nil, err
	}
	d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return d, nil
}

// ReadCSV reads a numeric CSV from r according to opts.
func ReadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if opts.HasHeader && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv contains no data rows")
	}

	width := len(records[0])
	labelCol := opts.LabelColumn
	if labelCol >= width {
		return nil, fmt.Errorf("label column %d out of range for %d columns", labelCol, width)
	}

	dim := width
	if labelCol >= 0 {
		dim = width - 1
	}
	if dim == 0 {
		return nil, fmt.Errorf("csv has no feature columns")
	}

	d := &Dataset{Name: "csv", Dimension: dim, Vectors: make([][]float64, 0, len(records))}
	classIndex := make(map[string]int)

	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i, len(rec), width)
		}
		vec := make([]float64, 0, dim)
		for j, field := range rec {
			if j == labelCol {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			vec = append(vec, v)
		}
		d.Vectors = append(d.Vectors, vec)

		if labelCol >= 0 {
			name := strings.TrimSpace(rec[labelCol])
			idx, ok := classIndex[name]
			if !ok {
				idx = len(classIndex)
				classIndex[name] = idx
				d.ClassNames = append(d.ClassNames, name)
			}
			d.Labels = append(d.Labels, idx)
		}
	}

	return d, nil
}

// WriteCSV writes a matrix to w, one row per record.
func WriteCSV(w io.Writer, rows [][]float64) error {
	cw := csv.NewWriter(w)
	record := make([]string, 0, 16)
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes a matrix to a file via [WriteCSV].
func SaveCSV(path string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, rows)
}
