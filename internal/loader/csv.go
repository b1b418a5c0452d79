package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/vizqa/internal/table"
)

type csvDecoder struct{}

func (csvDecoder) Format() Format { return FormatCSV }

func (csvDecoder) Decode(name string, data []byte, opt Options) (*table.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse from file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > table.MaxColumns {
		return nil, fmt.Errorf("header has %d columns, more than the limit of %d", len(header), table.MaxColumns)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		if len(rec) > table.MaxColumns {
			return nil, fmt.Errorf("row %d has %d columns, more than the limit of %d", len(rows)+2, len(rec), table.MaxColumns)
		}
		rows = append(rows, rec)
	}
	return table.FromRecords(filepath.Base(name), header, rows, opt.Infer), nil
}

// sniffDelimiter picks the candidate that splits the first line into the
// most fields. A .tsv extension short-circuits to tab.
func sniffDelimiter(name string, data []byte) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}
