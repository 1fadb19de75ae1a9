package source

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Pattern placeholders.
const (
	placeholderScale  = "{scale}"
	placeholderRow    = "{row}"
	placeholderColumn = "{column}"
)

func validatePattern(pattern string) error {
	for _, p := range []string{placeholderScale, placeholderRow, placeholderColumn} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

func formatScale(scale float64) string {
	return strconv.FormatFloat(scale, 'g', -1, 64)
}

func formatPattern(pattern string, scale float64, row, column int) string {
	r := strings.NewReplacer(
		placeholderScale, formatScale(scale),
		placeholderRow, strconv.Itoa(row),
		placeholderColumn, strconv.Itoa(column),
	)
	return r.Replace(pattern)
}

// DirReader reads tiles stored as individual files, with paths like
// "/tiles/{scale}/{row}/{column}.png". Files may be zstd compressed.
type DirReader struct {
	pattern string
}

// NewDirReader creates a reader for the given file pattern.
func NewDirReader(pattern string) (*DirReader, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	return &DirReader{pattern: pattern}, nil
}

// Path returns the file path of a tile.
func (r *DirReader) Path(scale float64, row, column int) string {
	return formatPattern(r.pattern, scale, row, column)
}

// ReadTile reads the file of a tile. A missing file yields empty data.
func (r *DirReader) ReadTile(ctx context.Context, scale float64, row, column int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.Path(scale, row, column))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *DirReader) Close() error { return nil }
