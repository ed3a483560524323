package checkpoint

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// encodeGrid compresses grid values using gob encoding and gzip compression.
func encodeGrid(grid []float64) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(grid); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGrid decompresses and decodes grid values from a gob+gzip blob.
func decodeGrid(blob []byte) ([]float64, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("checkpoint: empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: gzip reader: %w", err)
	}
	defer gz.Close()

	var grid []float64
	if err := gob.NewDecoder(gz).Decode(&grid); err != nil {
		return nil, fmt.Errorf("checkpoint: decode grid values: %w", err)
	}
	return grid, nil
}
