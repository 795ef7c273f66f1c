package validator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/tplgen/generator"
	"github.com/ridoystarlord/tplgen/schema"
)

func customer() schema.Table {
	return schema.Table{
		Name: "customer",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInteger, PrimaryKey: true, Ordinal: 1},
			{Name: "name", Type: schema.TypeString, Searchable: true, Ordinal: 2},
		},
	}
}

func types(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Type)
	}
	return out
}

func TestValidateSchema_Valid(t *testing.T) {
	result := ValidateSchema([]schema.Table{customer()})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Info, 1)
	assert.Equal(t, "1 tables, 2 fields", result.Info[0].Message)
}

func TestValidateSchema_Problems(t *testing.T) {
	noKey := schema.Table{
		Name:   "audit_log",
		Fields: []schema.Field{{Name: "entry", Type: schema.TypeText, Ordinal: 1}},
	}
	badNames := schema.Table{
		Name: "order-lines",
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeInteger, PrimaryKey: true, Ordinal: 1},
			{Name: "2nd", Type: schema.TypeInteger, Searchable: true, Ordinal: 2},
			{Name: "code", Type: schema.TypeCode(42), Searchable: true, Ordinal: 3},
		},
	}
	twoKeys := schema.Table{
		Name: "pair",
		Fields: []schema.Field{
			{Name: "a", Type: schema.TypeInteger, PrimaryKey: true, Ordinal: 1},
			{Name: "b", Type: schema.TypeInteger, PrimaryKey: true, Searchable: true, Ordinal: 2},
		},
	}
	empty := schema.Table{Name: "empty"}

	result := ValidateSchema([]schema.Table{customer(), noKey, badNames, twoKeys, empty, customer()})

	assert.False(t, result.Valid)
	assert.ElementsMatch(t, []string{
		"table_name", "field_name", "type_code", "table_invariant", "no_fields", "duplicate_table",
	}, types(result.Errors))
	assert.ElementsMatch(t, []string{"no_primary_key", "no_searchable_fields"}, types(result.Warnings))
	assert.Contains(t, types(result.Info), "searchable_key")

	for _, e := range result.Warnings {
		assert.Equal(t, "audit_log", e.Table)
	}
}

func TestValidateSchema_NoTables(t *testing.T) {
	result := ValidateSchema(nil)
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"no_tables"}, types(result.Warnings))
}

func TestValidateTemplates(t *testing.T) {
	templates := []generator.TemplateFile{
		{FileName: "list.php", Type: generator.TableFile, Content: "{for {nmaxitems}}{item.name}{endfor}"},
		{FileName: "menu.php", Type: generator.ProjectFile, Content: "{for {nmaxtables}}{item.caption}{endfor}"},
		{FileName: "broken.php", Type: generator.TableFile, Content: "line\n{for 1}\n{if 1}x{endfor}"},
		{FileName: "open.php", Type: generator.TableFile, Content: "{for 1"},
		{FileName: "named.php", Type: generator.TableFile, Content: "x", OutputName: "{fileclass}/{endif}"},
		{FileName: "assets", Type: generator.StaticDirectory, SourcePath: "assets", Content: "{not parsed"},
		{FileName: "weird", Type: generator.FileType("macro_file")},
		{FileName: "list.php", Type: generator.TableFile},
	}

	result := ValidateTemplates(templates)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 5)

	byTemplate := map[string]ValidationError{}
	for _, e := range result.Errors {
		byTemplate[e.Template+"/"+e.Type] = e
	}

	broken := byTemplate["broken.php/mismatched_close"]
	assert.Equal(t, 3, broken.Line)
	assert.Contains(t, broken.Message, "endif")

	assert.Contains(t, byTemplate, "open.php/unterminated_directive")
	assert.Contains(t, byTemplate, "named.php/mismatched_close")
	assert.Contains(t, byTemplate, "weird/file_type")
	assert.Contains(t, byTemplate, "list.php/duplicate_template")
	assert.Empty(t, result.Warnings)
}

func TestValidateTemplates_NoTableTemplates(t *testing.T) {
	result := ValidateTemplates([]generator.TemplateFile{
		{FileName: "menu.php", Type: generator.ProjectFile, Content: "menu"},
	})
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"no_table_templates"}, types(result.Warnings))
	require.Len(t, result.Info, 1)
	assert.Equal(t, "1 templates, 0 per table", result.Info[0].Message)
}

func TestValidationResult_MergeAndJSON(t *testing.T) {
	result := ValidateSchema([]schema.Table{customer()})
	result.Merge(ValidateTemplates([]generator.TemplateFile{
		{FileName: "bad.php", Type: generator.TableFile, Content: "{endfor}"},
	}))

	assert.False(t, result.Valid)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"valid":false`)
	assert.Contains(t, string(data), `"template":"bad.php"`)
	assert.Contains(t, string(data), `"severity":"error"`)
	assert.NotContains(t, string(data), `"field"`)
}
