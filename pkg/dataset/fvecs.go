package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadFvecs loads vectors from a .fvecs file.
//
// FVECS format, per vector:
//   - 4 bytes: dimension (int32, little-endian)
//   - dimension * 4 bytes: float32 values (little-endian)
//
// All vectors must have the same dimension.
func LoadFvecs(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fvecs file: %w", err)
	}
	defer f.Close()

	return ReadFvecs(f)
}

// ReadFvecs reads vectors from an io.Reader in FVECS format.
func ReadFvecs(r io.Reader) ([][]float64, error) {
	var vectors [][]float64
	var expectedDim int32 = -1

	for {
		var dim int32
		err := binary.Read(r, binary.LittleEndian, &dim)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dimension: %w", err)
		}
		if dim <= 0 {
			return nil, fmt.Errorf("invalid vector dimension %d", dim)
		}

		if expectedDim == -1 {
			expectedDim = dim
		} else if dim != expectedDim {
			return nil, fmt.Errorf("inconsistent dimensions: expected %d, got %d", expectedDim, dim)
		}

		raw := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("failed to read vector values: %w", err)
		}

		vec := make([]float64, dim)
		for i, v := range raw {
			vec[i] = float64(v)
		}
		vectors = append(vectors, vec)
	}

	return vectors, nil
}

// SaveFvecs writes vectors to a .fvecs file.
func SaveFvecs(path string, vectors [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fvecs file: %w", err)
	}
	defer f.Close()

	return WriteFvecs(f, vectors)
}

// WriteFvecs writes vectors to an io.Writer in FVECS format.
// Values are narrowed to float32 as the format requires.
func WriteFvecs(w io.Writer, vectors [][]float64) error {
	for _, vec := range vectors {
		dim := int32(len(vec))
		if err := binary.Write(w, binary.LittleEndian, dim); err != nil {
			return fmt.Errorf("failed to write dimension: %w", err)
		}

		raw := make([]float32, dim)
		for i, v := range vec {
			raw[i] = float32(v)
		}
		if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
			return fmt.Errorf("failed to write vector values: %w", err)
		}
	}
	return nil
}

// LoadIvecs loads integer vectors from a .ivecs file (same layout as FVECS
// with int32 payloads). Width-1 ivecs files are the common encoding for
// per-sample labels.
func LoadIvecs(path string) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ivecs file: %w", err)
	}
	defer f.Close()

	return ReadIvecs(f)
}

// ReadIvecs reads integer vectors from an io.Reader in IVECS format.
func ReadIvecs(r io.Reader) ([][]int, error) {
	var vectors [][]int
	var expectedDim int32 = -1

	for {
		var dim int32
		err := binary.Read(r, binary.LittleEndian, &dim)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dimension: %w", err)
		}
		if dim <= 0 {
			return nil, fmt.Errorf("invalid vector dimension %d", dim)
		}

		if expectedDim == -1 {
			expectedDim = dim
		} else if dim != expectedDim {
			return nil, fmt.Errorf("inconsistent dimensions: expected %d, got %d", expectedDim, dim)
		}

		raw := make([]int32, dim)
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("failed to read vector values: %w", err)
		}

		vec := make([]int, dim)
		for i, v := range raw {
			vec[i] = int(v)
		}
		vectors = append(vectors, vec)
	}

	return vectors, nil
}

// FromFvecs loads a dataset from an .fvecs file, with labels from a matching
// .ivecs file when labelsPath is non-empty.
func FromFvecs(path, labelsPath string) (*Dataset, error) {
	vectors, err := LoadFvecs(path)
	if err != nil {
		return nil, err
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	d := &Dataset{
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Dimension: dim,
		Vectors:   vectors,
	}

	if labelsPath != "" {
		rows, err := LoadIvecs(labelsPath)
		if err != nil {
			return nil, err
		}
		if len(rows) != len(vectors) {
			return nil, fmt.Errorf("label count %d does not match sample count %d", len(rows), len(vectors))
		}
		labels := make([]int, len(rows))
		for i, row := range rows {
			labels[i] = row[0]
		}
		d.Labels = labels
	}

	return d, nil
}
