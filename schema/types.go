package schema

import (
	"strings"
)

// TypeCode is the small integer tag that selects how a field is rendered
// and cast in generated code.
type TypeCode int

const (
	TypeBoolean  TypeCode = 1
	TypeInteger  TypeCode = 2
	TypeDecimal  TypeCode = 3
	TypeString   TypeCode = 4
	TypeText     TypeCode = 5
	TypeDate     TypeCode = 6
	TypeDateTime TypeCode = 7
	TypeBinary   TypeCode = 8
	TypeImage    TypeCode = 9
)

// Category groups type codes for casting and search heuristics.
type Category string

const (
	CategoryBoolean Category = "boolean"
	CategoryNumeric Category = "numeric"
	CategoryBinary  Category = "binary"
	CategoryText    Category = "text"
)

func (c TypeCode) Category() Category {
	switch c {
	case TypeBoolean:
		return CategoryBoolean
	case TypeInteger, TypeDecimal:
		return CategoryNumeric
	case TypeBinary, TypeImage:
		return CategoryBinary
	default:
		return CategoryText
	}
}

// Typecast returns the cast prefix emitted for {item.typecast}. The table is
// fixed and independent of the schema the field belongs to.
func (c TypeCode) Typecast() string {
	switch c {
	case TypeBoolean:
		return "(bool)"
	case TypeInteger:
		return "(int)"
	case TypeDecimal:
		return "(float)"
	case TypeBinary, TypeImage:
		return ""
	default:
		return "(string)"
	}
}

func (c TypeCode) String() string {
	switch c {
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeBinary:
		return "binary"
	case TypeImage:
		return "image"
	default:
		return "unknown"
	}
}

// TypeCodeFromSQL maps a column type as spelled by postgres, mysql or sqlite
// to a TypeCode. Unknown types map to TypeString.
func TypeCodeFromSQL(sqlType string) TypeCode {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	// drop length/precision: varchar(255), decimal(10,2)
	if i := strings.IndexByte(t, '('); i >= 0 {
		if t[:i] == "tinyint" && strings.HasPrefix(t[i:], "(1)") {
			return TypeBoolean
		}
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " unsigned")

	switch t {
	case "bool", "boolean", "bit":
		return TypeBoolean
	case "int", "integer", "int2", "int4", "int8", "smallint", "bigint", "tinyint", "mediumint",
		"serial", "bigserial", "smallserial", "year":
		return TypeInteger
	case "decimal", "numeric", "real", "float", "float4", "float8", "double", "double precision", "money":
		return TypeDecimal
	case "char", "varchar", "character", "character varying", "uuid", "enum", "set", "citext":
		return TypeString
	case "text", "tinytext", "mediumtext", "longtext", "json", "jsonb", "xml", "clob":
		return TypeText
	case "date":
		return TypeDate
	case "datetime", "timestamp", "timestamptz", "timestamp without time zone",
		"timestamp with time zone", "time", "timetz", "time without time zone":
		return TypeDateTime
	case "blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary", "bytea":
		return TypeBinary
	case "image":
		return TypeImage
	}
	return TypeString
}
