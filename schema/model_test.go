package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customers() Table {
	return Table{
		Name: "customers",
		Fields: []Field{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, Ordinal: 1},
			{Name: "name", Type: TypeString, Searchable: true, Ordinal: 2},
			{Name: "active", Type: TypeBoolean, Ordinal: 3},
			{Name: "email", Type: TypeString, Searchable: true, Ordinal: 4},
		},
	}
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func TestTable_Views(t *testing.T) {
	table := customers()

	pk, ok := table.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)

	assert.Equal(t, []string{"name", "active", "email"}, fieldNames(table.NonKeyFields()))
	assert.Equal(t, []string{"name", "email"}, fieldNames(table.SearchableFields()))
}

func TestTable_NoPrimaryKey(t *testing.T) {
	table := Table{Name: "log", Fields: []Field{{Name: "line", Ordinal: 1}}}

	_, ok := table.PrimaryKey()
	assert.False(t, ok)
	assert.Len(t, table.NonKeyFields(), 1)
	assert.Empty(t, table.SearchableFields())
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		wantErr string
	}{
		{
			name:   "valid",
			fields: customers().Fields,
		},
		{
			name: "two primary keys",
			fields: []Field{
				{Name: "a", PrimaryKey: true, Ordinal: 1},
				{Name: "b", PrimaryKey: true, Ordinal: 2},
			},
			wantErr: "2 primary key fields",
		},
		{
			name: "duplicate ordinal",
			fields: []Field{
				{Name: "a", Ordinal: 1},
				{Name: "b", Ordinal: 1},
			},
			wantErr: "share ordinal 1",
		},
		{
			name: "gap in ordinals",
			fields: []Field{
				{Name: "a", Ordinal: 1},
				{Name: "b", Ordinal: 3},
			},
			wantErr: "missing 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Table{Name: "t", Fields: tt.fields}.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalize(t *testing.T) {
	tables := []Table{
		{Name: "orders", Fields: []Field{{Name: "b", Ordinal: 2}, {Name: "a", Ordinal: 1}}},
		{Name: "lines", Fields: []Field{{Name: "x"}, {Name: "y"}}},
	}

	got, err := Normalize(tables)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Ordinal)
	assert.Equal(t, []string{"a", "b"}, fieldNames(got[0].Fields))
	assert.Equal(t, 2, got[1].Ordinal)
	assert.Equal(t, 1, got[1].Fields[0].Ordinal)
	assert.Equal(t, 2, got[1].Fields[1].Ordinal)

	// input is left untouched
	assert.Equal(t, "b", tables[0].Fields[0].Name)
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize([]Table{{Name: "a"}, {Name: "a"}})
	assert.ErrorContains(t, err, "duplicate table a")

	_, err = Normalize([]Table{{}})
	assert.ErrorContains(t, err, "has no name")
}

func TestTypeCodeFromSQL(t *testing.T) {
	tests := map[string]TypeCode{
		"integer":                     TypeInteger,
		"INT(11) unsigned":            TypeInteger,
		"tinyint(1)":                  TypeBoolean,
		"boolean":                     TypeBoolean,
		"decimal(10,2)":               TypeDecimal,
		"double precision":            TypeDecimal,
		"varchar(255)":                TypeString,
		"character varying":           TypeString,
		"longtext":                    TypeText,
		"date":                        TypeDate,
		"timestamp without time zone": TypeDateTime,
		"bytea":                       TypeBinary,
		"image":                       TypeImage,
		"geometry":                    TypeString,
	}
	for sqlType, want := range tests {
		assert.Equal(t, want, TypeCodeFromSQL(sqlType), sqlType)
	}
}

func TestTypecast_IsFixed(t *testing.T) {
	assert.Equal(t, "(bool)", TypeBoolean.Typecast())
	assert.Equal(t, "(int)", TypeInteger.Typecast())
	assert.Equal(t, "(float)", TypeDecimal.Typecast())
	assert.Equal(t, "", TypeBinary.Typecast())
	assert.Equal(t, "", TypeImage.Typecast())
	assert.Equal(t, "(string)", TypeText.Typecast())
	assert.Equal(t, "(string)", TypeCode(99).Typecast())
	assert.Equal(t, CategoryText, TypeCode(99).Category())
}
