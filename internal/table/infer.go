package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InferOptions controls how raw cells are typed.
type InferOptions struct {
	// LocaleNumbers enables locale-aware numeric parsing ("1.234,5", "12 %").
	LocaleNumbers bool
	// DecimalSeparator forces the decimal separator; 0 auto-detects per value.
	DecimalSeparator rune
	// ThousandsSeparator forces the grouping separator; 0 auto-detects.
	ThousandsSeparator rune
}

var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissingToken reports whether a raw cell denotes a missing value.
// Whitespace-only cells are values, not missing. Any spelling that
// strconv.ParseFloat reads as NaN counts as missing.
func IsMissingToken(s string) bool {
	if _, ok := missingTokens[s]; ok {
		return true
	}
	return isNaNSpelling(s)
}

func isNaNSpelling(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return strings.EqualFold(s, "nan")
}

// MaxColumns is the widest table accepted, matching Excel's XFD limit.
const MaxColumns = 16384

// FromRecords builds a typed table from a header and raw string rows.
// Short rows are padded with missing cells; duplicate or blank header names
// are disambiguated. Cells beyond MaxColumns are dropped.
func FromRecords(name string, header []string, rows [][]string, opt InferOptions) *Table {
	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	width = min(width, MaxColumns)
	names := headerNames(header, width)
	t := &Table{Name: name, Columns: make([]*Column, width)}
	for j := 0; j < width; j++ {
		cells := make([]string, len(rows))
		present := make([]bool, len(rows))
		for i, r := range rows {
			if j < len(r) {
				cells[i] = r[j]
				present[i] = true
			}
		}
		t.Columns[j] = inferColumn(names[j], cells, present, opt)
	}
	return t
}

func headerNames(header []string, width int) []string {
	out := make([]string, width)
	seen := map[string]bool{}
	counts := map[string]int{}
	for j := 0; j < width; j++ {
		n := ""
		if j < len(header) {
			n = header[j]
		}
		if strings.TrimSpace(n) == "" {
			n = fmt.Sprintf("Unnamed: %d", j)
		}
		base := n
		for seen[n] {
			counts[base]++
			n = fmt.Sprintf("%s.%d", base, counts[base])
		}
		seen[n] = true
		out[j] = n
	}
	return out
}

func inferColumn(name string, cells []string, present []bool, opt InferOptions) *Column {
	col := &Column{Name: name, Values: make([]Value, len(cells))}
	nonMissing := 0
	numeric, integral, datetime := true, true, true
	nums := make([]float64, len(cells))
	times := make([]time.Time, len(cells))
	for i, s := range cells {
		if !present[i] || IsMissingToken(s) {
			continue
		}
		nonMissing++
		if numeric {
			if f, ok := parseNumber(s, opt); ok {
				nums[i] = f
				if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
					integral = false
				}
			} else {
				numeric = false
			}
		}
		if datetime {
			if tm, ok := ParseTime(strings.TrimSpace(s)); ok {
				times[i] = tm
			} else {
				datetime = false
			}
		}
	}
	switch {
	case nonMissing == 0:
		col.Kind = Text
	case numeric:
		col.Kind = Numeric
		col.IntLike = integral
	case datetime:
		col.Kind = Datetime
	default:
		col.Kind = Text
	}
	for i, s := range cells {
		if !present[i] || IsMissingToken(s) {
			col.Values[i] = Null()
			continue
		}
		switch col.Kind {
		case Numeric:
			col.Values[i] = Number(nums[i])
		case Datetime:
			col.Values[i] = Timestamp(times[i])
		default:
			col.Values[i] = String(s)
		}
	}
	return col
}

func parseNumber(s string, opt InferOptions) (float64, bool) {
	if opt.LocaleNumbers {
		return ParseLocaleNumber(s, opt.DecimalSeparator, opt.ThousandsSeparator)
	}
	raw := strings.TrimSpace(s)
	if raw == "" || strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseLocaleNumber parses numbers written with locale-specific separators.
// With dec == 0 the decimal separator is whichever of ',' or '.' appears last.
func ParseLocaleNumber(s string, dec, thou rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime tries the supported date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
