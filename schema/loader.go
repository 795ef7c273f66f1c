package schema

import (
	"fmt"
	"sort"
)

// Normalize returns a copy of tables with fields sorted by ordinal, missing
// ordinals filled from position and table ordinals made dense in input
// order. Every table is validated afterwards.
func Normalize(tables []Table) ([]Table, error) {
	result := make([]Table, 0, len(tables))
	names := make(map[string]bool, len(tables))

	for i, t := range tables {
		if t.Name == "" {
			return nil, fmt.Errorf("table #%d has no name", i+1)
		}
		if names[t.Name] {
			return nil, fmt.Errorf("duplicate table %s", t.Name)
		}
		names[t.Name] = true

		fields := make([]Field, len(t.Fields))
		copy(fields, t.Fields)
		if needsOrdinals(fields) {
			for j := range fields {
				fields[j].Ordinal = j + 1
			}
		}
		sort.SliceStable(fields, func(a, b int) bool {
			return fields[a].Ordinal < fields[b].Ordinal
		})

		t.Fields = fields
		t.Ordinal = i + 1
		if err := t.Validate(); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	return result, nil
}

func needsOrdinals(fields []Field) bool {
	for _, f := range fields {
		if f.Ordinal == 0 {
			return true
		}
	}
	return false
}
