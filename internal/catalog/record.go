// Package catalog defines the attribute records that describe a relational
// schema, and the sources they are read from.
//
// A record is one row of the metadata catalog: one column of one table, with
// its type, constraint, relation and free-text description. Records are
// read-only inputs to the index builder.
package catalog

import (
	"context"
	"strings"
)

// AttributeRecord describes one column of one table.
// Field tags use the catalog's column names so exported snapshots round-trip.
type AttributeRecord struct {
	ID          int64  `yaml:"id,omitempty" json:"id,omitempty"`
	Schema      string `yaml:"schema" json:"schema"`
	Table       string `yaml:"table" json:"table"`
	Column      string `yaml:"nom_attr" json:"nom_attr"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Constraint  string `yaml:"contraint,omitempty" json:"contraint,omitempty"`
	Relation    string `yaml:"relation,omitempty" json:"relation,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// QualifiedName returns schema.table.column, omitting an empty schema.
func (r AttributeRecord) QualifiedName() string {
	parts := make([]string, 0, 3)
	if r.Schema != "" {
		parts = append(parts, r.Schema)
	}
	return strings.Join(append(parts, r.Table, r.Column), ".")
}

// Source yields the full set of attribute records.
type Source interface {
	// Attributes returns every record in source order.
	Attributes(ctx context.Context) ([]AttributeRecord, error)

	// Close releases resources held by the source.
	Close() error
}

// TableRef names a table within a schema.
type TableRef struct {
	Schema string
	Table  string
}

// Tables returns the distinct (schema, table) pairs in first-seen order.
func Tables(records []AttributeRecord) []TableRef {
	seen := make(map[TableRef]struct{})
	var refs []TableRef
	for _, r := range records {
		ref := TableRef{Schema: r.Schema, Table: r.Table}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// Describe returns the description of a column, if a record for it exists.
// Names compare case-insensitively.
func Describe(records []AttributeRecord, schema, table, column string) (string, bool) {
	for _, r := range records {
		if strings.EqualFold(r.Schema, schema) &&
			strings.EqualFold(r.Table, table) &&
			strings.EqualFold(r.Column, column) {
			return r.Description, true
		}
	}
	return "", false
}
