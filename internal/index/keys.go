// Package index builds the keyword indexes that the matcher ranks against.
//
// An Index maps every (schema, table) and every (schema, table, column) of a
// catalog to a set of lowercase keywords:
//
//   - a table's keywords are its lowercased name plus the whitespace tokens
//     of every description attached to any of its columns;
//   - a column's keywords are its lowercased name plus the tokens of its own
//     description.
//
// Tokens are not stemmed and keep their punctuation and accents. An Index is
// immutable once built; a rebuild produces a new value that callers swap in
// through a Holder.
package index

import (
	"cmp"
	"sort"
	"strings"
)

// TableKey identifies a table.
type TableKey struct {
	Schema string
	Table  string
}

// String renders schema.table, or just table when the schema is empty.
func (k TableKey) String() string {
	if k.Schema == "" {
		return k.Table
	}
	return k.Schema + "." + k.Table
}

// Compare orders keys by schema then table.
func (k TableKey) Compare(o TableKey) int {
	if c := cmp.Compare(k.Schema, o.Schema); c != 0 {
		return c
	}
	return cmp.Compare(k.Table, o.Table)
}

// ColumnKey identifies a column.
type ColumnKey struct {
	Schema string
	Table  string
	Column string
}

// TableKey returns the key of the column's table.
func (k ColumnKey) TableKey() TableKey {
	return TableKey{Schema: k.Schema, Table: k.Table}
}

// String renders schema.table.column.
func (k ColumnKey) String() string {
	return k.TableKey().String() + "." + k.Column
}

// Compare orders keys by schema, table, then column.
func (k ColumnKey) Compare(o ColumnKey) int {
	if c := k.TableKey().Compare(o.TableKey()); c != 0 {
		return c
	}
	return cmp.Compare(k.Column, o.Column)
}

// KeywordSet is a set of lowercase keywords.
type KeywordSet map[string]struct{}

// NewKeywordSet returns a set holding words as given.
func NewKeywordSet(words ...string) KeywordSet {
	s := make(KeywordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Add inserts w.
func (s KeywordSet) Add(w string) {
	s[w] = struct{}{}
}

// Has reports whether w is in the set.
func (s KeywordSet) Has(w string) bool {
	_, ok := s[w]
	return ok
}

// Slice returns the keywords in sorted order.
func (s KeywordSet) Slice() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same keywords.
func (s KeywordSet) Equal(o KeywordSet) bool {
	if len(s) != len(o) {
		return false
	}
	for w := range s {
		if !o.Has(w) {
			return false
		}
	}
	return true
}

// Tokenize lowercases text and splits it on whitespace.
// Punctuation and accents are kept as-is.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
