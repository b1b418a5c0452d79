// Package loader turns uploaded bytes into a table. The decoder is chosen by
// the detected content format; the file extension only breaks ties for
// formats without a signature.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/vizqa/internal/table"
)

// Format identifies a supported (or recognized) input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// ErrUnsupportedFormat is returned when neither the content nor the
// extension maps to a known decoder.
var ErrUnsupportedFormat = errors.New("Unsupported file format. Please upload a CSV or Excel file.") //nolint:staticcheck // shown to users verbatim

// ReadError wraps any failure to decode a recognized format.
type ReadError struct {
	Name   string
	Format Format
	Err    error
}

func (e *ReadError) Error() string { return fmt.Sprintf("Error reading file: %v", e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// Options tunes decoding.
type Options struct {
	// Delimiter overrides CSV delimiter sniffing.
	Delimiter rune
	// Sheet selects a workbook sheet by name; empty means the first sheet.
	Sheet string
	// Infer controls cell type inference.
	Infer table.InferOptions
}

// Decoder parses one format.
type Decoder interface {
	Format() Format
	Decode(name string, data []byte, opt Options) (*table.Table, error)
}

var registry = map[Format]Decoder{}

// Register adds or replaces the decoder for its format.
func Register(d Decoder) { registry[d.Format()] = d }

func init() {
	Register(csvDecoder{})
	Register(xlsxDecoder{})
	Register(xlsDecoder{})
}

var (
	zipMagic = []byte("PK\x03\x04")
	ole2     = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Detect determines the format from magic bytes, falling back to the
// extension for signature-less text formats.
func Detect(name string, data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, true
	case bytes.HasPrefix(data, ole2):
		return FormatXLS, true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	}
	return "", false
}

// Load decodes data into a table. Failures are ErrUnsupportedFormat or
// *ReadError; the table is nil whenever err is non-nil.
func Load(name string, data []byte, opt Options) (tb *table.Table, err error) {
	format, ok := Detect(name, data)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	d, ok := registry[format]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	defer func() {
		if r := recover(); r != nil {
			tb, err = nil, &ReadError{Name: name, Format: format, Err: fmt.Errorf("%v", r)}
		}
	}()
	tb, err = d.Decode(name, data, opt)
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &ReadError{Name: name, Format: format, Err: err}
	}
	tb.Name = filepath.Base(name)
	return tb, nil
}

// LoadFile reads path from disk and decodes it.
func LoadFile(path string, opt Options) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Name: path, Err: err}
	}
	return Load(path, data, opt)
}

type xlsDecoder struct{}

func (xlsDecoder) Format() Format { return FormatXLS }

func (xlsDecoder) Decode(string, []byte, Options) (*table.Table, error) {
	return nil, errors.New("legacy .xls workbooks are not supported; save the file as .xlsx or .csv")
}
