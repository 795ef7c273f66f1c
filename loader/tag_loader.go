package loader

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/ridoystarlord/tplgen/schema"
)

// TagLoader loads the schema from Go structs annotated with tplgen tags:
//
//	type Customer struct {
//		_     struct{} `tplgen:"table:customers;caption:Customers"`
//		ID    int      `tplgen:"column:id;primary"`
//		Email string   `tplgen:"searchable;caption:E-mail"`
//	}
//
// Fields without a tplgen tag, or tagged "-", are ignored. Structs without
// any tagged field are not tables.
type TagLoader struct {
	modelsDir string
}

// NewTagLoader creates a new tag loader
func NewTagLoader(modelsDir string) *TagLoader {
	return &TagLoader{
		modelsDir: modelsDir,
	}
}

// LoadTablesFromTags loads the schema from the Go files of modelsDir.
func LoadTablesFromTags(modelsDir string) ([]schema.Table, error) {
	return NewTagLoader(modelsDir).Load()
}

// Load parses every .go file below the models directory, in lexical order.
func (tl *TagLoader) Load() ([]schema.Table, error) {
	if _, err := os.Stat(tl.modelsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("models directory '%s' does not exist. Run 'tplgen init' first", tl.modelsDir)
	}

	var files []string
	err := filepath.Walk(tl.modelsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %v", err)
	}
	sort.Strings(files)

	var tables []schema.Table
	for _, path := range files {
		fileTables, err := tl.parseGoFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
		tables = append(tables, fileTables...)
	}

	return schema.Normalize(tables)
}

func (tl *TagLoader) parseGoFile(filePath string) ([]schema.Table, error) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go file: %v", err)
	}

	var tables []schema.Table
	var tagErr error
	ast.Inspect(node, func(n ast.Node) bool {
		if tagErr != nil {
			return false
		}
		spec, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		st, ok := spec.Type.(*ast.StructType)
		if !ok {
			return true
		}
		table, err := tl.parseStruct(spec.Name.Name, st)
		if err != nil {
			tagErr = fmt.Errorf("struct %s: %w", spec.Name.Name, err)
			return false
		}
		if table != nil {
			tables = append(tables, *table)
		}
		return true
	})

	return tables, tagErr
}

// parseStruct returns nil when the struct carries no tplgen tags.
func (tl *TagLoader) parseStruct(structName string, st *ast.StructType) (*schema.Table, error) {
	table := &schema.Table{Name: tableName(structName)}
	tagged := false

	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue // embedded
		}
		tag, ok := lookupTag(field.Tag)
		if !ok || tag == "-" {
			continue
		}
		name := field.Names[0].Name

		if name == "_" {
			if err := applyTableTag(table, tag); err != nil {
				return nil, err
			}
			tagged = true
			continue
		}
		if !ast.IsExported(name) {
			continue
		}

		f, err := parseFieldTag(name, goType(field.Type), tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		f.Ordinal = len(table.Fields) + 1
		table.Fields = append(table.Fields, f)
		tagged = true
	}

	if !tagged {
		return nil, nil
	}
	return table, nil
}

func lookupTag(lit *ast.BasicLit) (string, bool) {
	if lit == nil {
		return "", false
	}
	return reflect.StructTag(strings.Trim(lit.Value, "`")).Lookup("tplgen")
}

// splitTag yields the parts of "column:x;type:text;primary" as key/value
// pairs; flags have an empty value.
func splitTag(tag string, fn func(key, value string) error) error {
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, ":")
		if err := fn(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

func applyTableTag(table *schema.Table, tag string) error {
	return splitTag(tag, func(key, value string) error {
		switch key {
		case "table":
			table.Name = value
		case "caption":
			table.Caption = value
		case "description":
			table.Description = value
		default:
			return fmt.Errorf("unknown table tag %q", key)
		}
		return nil
	})
}

func parseFieldTag(fieldName, goTypeName, tag string) (schema.Field, error) {
	f := schema.Field{Name: strcase.ToSnake(fieldName)}
	err := splitTag(tag, func(key, value string) error {
		switch key {
		case "column":
			f.Name = value
		case "type":
			f.SQLType = value
		case "caption":
			f.Caption = value
		case "primary":
			f.PrimaryKey = true
		case "searchable":
			f.Searchable = true
		default:
			return fmt.Errorf("unknown tag %q", key)
		}
		return nil
	})
	if err != nil {
		return schema.Field{}, err
	}

	if f.SQLType == "" {
		f.SQLType = inferDataType(goTypeName)
	}
	f.Type = schema.TypeCodeFromSQL(f.SQLType)
	return f, nil
}

func goType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return goType(t.X)
	case *ast.ArrayType:
		return "[]" + goType(t.Elt)
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			return x.Name + "." + t.Sel.Name
		}
	}
	return ""
}

// tableName converts a struct name to a plural snake_case table name.
func tableName(structName string) string {
	name := strcase.ToSnake(structName)

	switch {
	case strings.HasSuffix(name, "y") && !strings.HasSuffix(name, "ey"):
		return strings.TrimSuffix(name, "y") + "ies"
	case strings.HasSuffix(name, "s"):
		return name
	default:
		return name + "s"
	}
}

// inferDataType maps a Go type to the SQL type name used for TypeCode
// lookup.
func inferDataType(goType string) string {
	switch goType {
	case "bool":
		return "boolean"
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return "integer"
	case "float32", "float64", "decimal.Decimal":
		return "numeric"
	case "string":
		return "varchar"
	case "time.Time":
		return "timestamp"
	case "[]byte":
		return "bytea"
	case "uuid.UUID":
		return "uuid"
	}
	if strings.HasPrefix(goType, "[]") {
		return "jsonb"
	}
	return "text"
}
