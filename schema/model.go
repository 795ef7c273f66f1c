package schema

import (
	"fmt"
)

// Table is one table of the bound schema. Fields are ordered by Ordinal.
type Table struct {
	Name        string
	Caption     string
	Description string
	Ordinal     int
	Fields      []Field
}

// Field is a column of a Table as the templates see it.
type Field struct {
	Name       string
	Caption    string
	Type       TypeCode
	SQLType    string // source column type, informational only
	PrimaryKey bool
	Searchable bool
	Ordinal    int
}

// PrimaryKey returns the primary key field, if the table has one.
func (t Table) PrimaryKey() (Field, bool) {
	for _, f := range t.Fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}

// NonKeyFields returns every field except the primary key, order preserved.
func (t Table) NonKeyFields() []Field {
	out := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}

// SearchableFields returns the fields flagged searchable, order preserved.
func (t Table) SearchableFields() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.Searchable {
			out = append(out, f)
		}
	}
	return out
}

// DisplayName returns the caption, falling back to the table name.
func (t Table) DisplayName() string {
	if t.Caption != "" {
		return t.Caption
	}
	return t.Name
}

// Validate checks the table invariants: at most one primary key and
// dense, unique field ordinals starting at 1.
func (t Table) Validate() error {
	keys := 0
	seen := make(map[int]string, len(t.Fields))
	for _, f := range t.Fields {
		if f.PrimaryKey {
			keys++
		}
		if other, ok := seen[f.Ordinal]; ok {
			return fmt.Errorf("table %s: fields %s and %s share ordinal %d", t.Name, other, f.Name, f.Ordinal)
		}
		seen[f.Ordinal] = f.Name
	}
	if keys > 1 {
		return fmt.Errorf("table %s: %d primary key fields, at most one allowed", t.Name, keys)
	}
	for i := 1; i <= len(t.Fields); i++ {
		if _, ok := seen[i]; !ok {
			return fmt.Errorf("table %s: field ordinals are not dense, missing %d", t.Name, i)
		}
	}
	return nil
}

// Label returns the caption, falling back to the field name.
func (f Field) Label() string {
	if f.Caption != "" {
		return f.Caption
	}
	return f.Name
}
