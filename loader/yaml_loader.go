package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/tplgen/schema"
)

type yamlFile struct {
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name        string      `yaml:"name"`
	Caption     string      `yaml:"caption"`
	Description string      `yaml:"description"`
	Fields      []yamlField `yaml:"fields"`
	Columns     []yamlField `yaml:"columns"`
}

type yamlField struct {
	Name       string `yaml:"name"`
	Caption    string `yaml:"caption"`
	Type       string `yaml:"type"`
	TypeCode   int    `yaml:"type_code"`
	Primary    bool   `yaml:"primary"`
	Searchable bool   `yaml:"searchable"`
	Ordinal    int    `yaml:"ordinal"`
}

// LoadTablesFromYAML reads a schema file. Each field takes either a SQL
// type name (type) or an explicit type_code; type_code wins when both are
// present. "columns" is accepted as an alias of "fields".
func LoadTablesFromYAML(filename string) ([]schema.Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return ParseTablesYAML(data)
}

// ParseTablesYAML decodes schema YAML already in memory.
func ParseTablesYAML(data []byte) ([]schema.Table, error) {
	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}

	tables := make([]schema.Table, 0, len(yf.Tables))
	for _, t := range yf.Tables {
		table := schema.Table{
			Name:        t.Name,
			Caption:     t.Caption,
			Description: t.Description,
		}
		for _, f := range append(t.Fields, t.Columns...) {
			if f.Name == "" {
				return nil, fmt.Errorf("table %s: field without name", t.Name)
			}
			table.Fields = append(table.Fields, schema.Field{
				Name:       f.Name,
				Caption:    f.Caption,
				Type:       fieldType(f),
				SQLType:    f.Type,
				PrimaryKey: f.Primary,
				Searchable: f.Searchable,
				Ordinal:    f.Ordinal,
			})
		}
		tables = append(tables, table)
	}

	return schema.Normalize(tables)
}

func fieldType(f yamlField) schema.TypeCode {
	if f.TypeCode != 0 {
		return schema.TypeCode(f.TypeCode)
	}
	return schema.TypeCodeFromSQL(f.Type)
}
