package index

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// ErrInvalidRecord matches, via errors.Is, every error returned for a record
// that lacks a table or column name.
var ErrInvalidRecord = smerrors.New(smerrors.ErrCodeInvalidRecord, "invalid record", nil)

// TableEntry is one table and its keywords.
// Terms holds the same keywords as Keywords, sorted.
type TableEntry struct {
	Key      TableKey
	Keywords KeywordSet
	Terms    []string
}

// ColumnEntry is one column and its keywords.
type ColumnEntry struct {
	Key      ColumnKey
	Keywords KeywordSet
	Terms    []string
}

// Index holds the table and column indexes of one catalog snapshot.
// Entries are sorted by key; that order is the tie-break order used when
// ranking. An Index must not be modified after Build returns it.
type Index struct {
	tables  []TableEntry
	columns []ColumnEntry
}

// Stats summarizes an Index.
type Stats struct {
	Tables   int `json:"tables"`
	Columns  int `json:"columns"`
	Keywords int `json:"keywords"`
}

// Tables returns the table entries in key order. Callers must not modify them.
func (idx *Index) Tables() []TableEntry {
	if idx == nil {
		return nil
	}
	return idx.tables
}

// Columns returns the column entries in key order. Callers must not modify them.
func (idx *Index) Columns() []ColumnEntry {
	if idx == nil {
		return nil
	}
	return idx.columns
}

// Table looks up a table entry.
func (idx *Index) Table(key TableKey) (TableEntry, bool) {
	i, ok := slices.BinarySearchFunc(idx.Tables(), key, func(e TableEntry, k TableKey) int {
		return e.Key.Compare(k)
	})
	if !ok {
		return TableEntry{}, false
	}
	return idx.tables[i], true
}

// Column looks up a column entry.
func (idx *Index) Column(key ColumnKey) (ColumnEntry, bool) {
	i, ok := slices.BinarySearchFunc(idx.Columns(), key, func(e ColumnEntry, k ColumnKey) int {
		return e.Key.Compare(k)
	})
	if !ok {
		return ColumnEntry{}, false
	}
	return idx.columns[i], true
}

// Vocabulary returns every distinct keyword across both indexes, sorted.
func (idx *Index) Vocabulary() []string {
	all := make(KeywordSet)
	for _, t := range idx.Tables() {
		for w := range t.Keywords {
			all.Add(w)
		}
	}
	for _, c := range idx.Columns() {
		for w := range c.Keywords {
			all.Add(w)
		}
	}
	return all.Slice()
}

// Stats counts entries and distinct keywords.
func (idx *Index) Stats() Stats {
	return Stats{
		Tables:   len(idx.Tables()),
		Columns:  len(idx.Columns()),
		Keywords: len(idx.Vocabulary()),
	}
}

// Build indexes records. It fails on the first record without a table or
// column name; see BuildLenient for the skip-and-continue policy.
// An empty input yields an empty Index.
func Build(records []catalog.AttributeRecord) (*Index, error) {
	b := newBuilder()
	for i, r := range records {
		if err := validate(i, r); err != nil {
			return nil, err
		}
		b.add(r)
	}
	return b.finish(), nil
}

// BuildLenient indexes every valid record and skips the rest, logging each
// skipped record at warn level. The returned errors describe the skipped
// records in input order. A record with a table but no column is still
// skipped for the column index but feeds its table's keywords.
func BuildLenient(records []catalog.AttributeRecord, logger *slog.Logger) (*Index, []error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := newBuilder()
	var skipped []error
	for i, r := range records {
		if err := validate(i, r); err != nil {
			logger.Warn("record_skipped",
				slog.Int("position", i),
				slog.String("schema", r.Schema),
				slog.String("table", r.Table),
				slog.String("column", r.Column),
				slog.String("error", err.Error()))
			skipped = append(skipped, err)
			if strings.TrimSpace(r.Table) != "" {
				b.addTable(r, Tokenize(r.Description))
			}
			continue
		}
		b.add(r)
	}
	return b.finish(), skipped
}

func validate(pos int, r catalog.AttributeRecord) error {
	var field string
	switch {
	case strings.TrimSpace(r.Table) == "":
		field = "table"
	case strings.TrimSpace(r.Column) == "":
		field = "column"
	default:
		return nil
	}
	return smerrors.New(smerrors.ErrCodeInvalidRecord,
		fmt.Sprintf("record %d: missing %s name", pos, field), nil).
		WithDetail("position", strconv.Itoa(pos)).
		WithDetail("field", field).
		WithSuggestion("Every catalog row needs a table and a column name")
}

type builder struct {
	tables  map[TableKey]KeywordSet
	columns map[ColumnKey]KeywordSet
}

func newBuilder() *builder {
	return &builder{
		tables:  make(map[TableKey]KeywordSet),
		columns: make(map[ColumnKey]KeywordSet),
	}
}

func (b *builder) add(r catalog.AttributeRecord) {
	tokens := Tokenize(r.Description)
	b.addTable(r, tokens)

	ck := ColumnKey{Schema: r.Schema, Table: r.Table, Column: r.Column}
	ckw, ok := b.columns[ck]
	if !ok {
		ckw = NewKeywordSet(strings.ToLower(r.Column))
		b.columns[ck] = ckw
	}
	for _, tok := range tokens {
		ckw.Add(tok)
	}
}

func (b *builder) addTable(r catalog.AttributeRecord, tokens []string) {
	tk := TableKey{Schema: r.Schema, Table: r.Table}
	tkw, ok := b.tables[tk]
	if !ok {
		tkw = NewKeywordSet(strings.ToLower(r.Table))
		b.tables[tk] = tkw
	}
	for _, tok := range tokens {
		tkw.Add(tok)
	}
}

func (b *builder) finish() *Index {
	idx := &Index{
		tables:  make([]TableEntry, 0, len(b.tables)),
		columns: make([]ColumnEntry, 0, len(b.columns)),
	}
	for k, kw := range b.tables {
		idx.tables = append(idx.tables, TableEntry{Key: k, Keywords: kw, Terms: kw.Slice()})
	}
	for k, kw := range b.columns {
		idx.columns = append(idx.columns, ColumnEntry{Key: k, Keywords: kw, Terms: kw.Slice()})
	}
	slices.SortFunc(idx.tables, func(a, b TableEntry) int { return a.Key.Compare(b.Key) })
	slices.SortFunc(idx.columns, func(a, b ColumnEntry) int { return a.Key.Compare(b.Key) })
	return idx
}
