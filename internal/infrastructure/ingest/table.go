// Package ingest reads the four source tables from CSV files.  It is the
// ingestion boundary: values are parsed tolerantly, bad cells become issues
// and nothing past a whole-table read failure aborts a run.
package ingest

import (
	"encoding/csv"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/pkg/errors"
)

// columnSet maps a canonical field name to the header spellings accepted for
// it.  The canonical name itself is always accepted.
type columnSet map[string][]string

var assetColumns = columnSet{
	"serial_id":      {"serial", "serial_number", "serial_no", "asset_id"},
	"product_name":   {"product", "product_description"},
	"product_number": {"product_no", "part_number", "product_id"},
	"product_family": {"family"},
	"territory_id":   {"territory", "account_territory", "account_id"},
	"account_name":   {"account", "customer", "customer_name"},
	"business_area":  {"category", "business_unit"},
	"support_status": {"status", "warranty_status", "coverage_status"},
	"eol_date":       {"eol", "end_of_life", "end_of_life_date"},
	"eosl_date":      {"eosl", "end_of_service_life", "end_of_service", "eos_date"},
	"description":    {"notes", "comments"},
}

var opportunityColumns = columnSet{
	"opportunity_id": {"opp_id", "opportunity", "id"},
	"territory_id":   {"territory", "account_territory", "account_id"},
	"account_name":   {"account", "customer", "customer_name"},
	"product_line":   {"product", "product_family"},
}

var projectColumns = columnSet{
	"project_id":    {"project", "id"},
	"primary_key":   {"siebel_id", "opportunity_id", "prj_siebel_id"},
	"secondary_key": {"territory_id", "territory", "customer_id"},
	"account_name":  {"account", "customer", "customer_name"},
	"practice_code": {"practice"},
	"start_date":    {"start", "prj_start_date"},
	"end_date":      {"end", "prj_end_date"},
	"description":   {"project_description", "notes"},
	"size_category": {"project_size", "size", "value_category"},
}

var catalogColumns = columnSet{
	"practice":        {"practice_name"},
	"sub_practice":    {"subpractice"},
	"service_name":    {"service", "name"},
	"sku_code":        {"sku"},
	"product_mapping": {"products", "product_numbers"},
}

// normalizeHeader folds a header cell to snake case: "EOL Date" and
// "eol-date" both become "eol_date".
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	var sb strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pending = false
			sb.WriteRune(r)
			continue
		}
		pending = true
	}
	return sb.String()
}

// table is one CSV source being read.
type table struct {
	name   string
	index  map[string]int
	issues []installbase.Issue
}

func newTable(name string, header []string, cols columnSet) *table {
	byHeader := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, dup := byHeader[n]; !dup && n != "" {
			byHeader[n] = i
		}
	}
	t := &table{name: name, index: make(map[string]int, len(cols))}
	for field, aliases := range cols {
		for _, candidate := range append([]string{field}, aliases...) {
			if i, ok := byHeader[candidate]; ok {
				t.index[field] = i
				break
			}
		}
	}
	return t
}

// has reports whether the header carried field.
func (t *table) has(field string) bool {
	_, ok := t.index[field]
	return ok
}

// get returns the trimmed cell for field, or "" when the column is absent or
// the row is short.
func (t *table) get(rec []string, field string) string {
	i, ok := t.index[field]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// date parses a date cell.  Unparsable values are recorded and read as nil.
func (t *table) date(rec []string, row int, field string) *time.Time {
	raw := t.get(rec, field)
	d, ok := installbase.ParseDate(raw)
	if !ok {
		t.unparsable(row, field, raw, "not a recognised date; treated as missing")
	}
	return d
}

func (t *table) unparsable(row int, field, raw, msg string) {
	t.issues = append(t.issues, installbase.Issue{
		Code:    errors.ErrCodeUnparsableValue,
		Table:   t.name,
		Row:     row,
		Field:   field,
		Value:   raw,
		Message: msg,
	})
}

// readTable streams src through fn, one call per data row.  Rows are
// numbered from 1.  Blank rows are skipped but still counted.
func readTable(src io.Reader, name string, cols columnSet, fn func(t *table, rec []string, row int)) ([]installbase.Issue, error) {
	r := csv.NewReader(src)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceRead, "failed to read header").WithDetail(name)
	}
	header = append([]string(nil), header...)
	t := newTable(name, header, cols)

	for row := 1; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceRead, "failed to read row").
				WithDetail(name)
		}
		if blank(rec) {
			continue
		}
		fn(t, rec, row)
	}
	return t.issues, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
