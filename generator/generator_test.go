package generator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/tplgen/macro"
	"github.com/ridoystarlord/tplgen/schema"
)

func testTables() []schema.Table {
	return []schema.Table{
		{
			Name: "customer", Caption: "Customers", Ordinal: 1,
			Fields: []schema.Field{
				{Name: "id", Type: schema.TypeInteger, PrimaryKey: true, Ordinal: 1},
				{Name: "name", Type: schema.TypeString, Searchable: true, Ordinal: 2},
				{Name: "email", Type: schema.TypeString, Searchable: true, Ordinal: 3},
			},
		},
		{
			Name: "invoice", Ordinal: 2,
			Fields: []schema.Field{
				{Name: "id", Type: schema.TypeInteger, PrimaryKey: true, Ordinal: 1},
				{Name: "total", Type: schema.TypeDecimal, Ordinal: 2},
			},
		},
	}
}

func TestGenerate_TableAndProjectFiles(t *testing.T) {
	req := Request{
		Templates: []TemplateFile{
			{FileName: "list.php", Type: TableFile, Order: 2, Content: "{filename}:{for {nmaxitems}}{item.name}{if nCount<{nmaxitems}},{endif}{endfor}"},
			{FileName: "menu.php", Type: ProjectFile, Order: 1, Content: "{projectname}:{for {nmaxtables}}{item.name} {endfor}"},
			{FileName: "style.css", Type: StaticFile, Order: 3, Content: "body{}"},
		},
		Tables:  testTables(),
		Scalars: macro.Scalars{"projectname": "Shop"},
		Workers: 2,
	}

	result, err := Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status())
	assert.Empty(t, result.Failures)

	require.Len(t, result.Outputs, 3)
	assert.Equal(t, "menu.php", result.Outputs[0].Path)
	assert.Equal(t, "Shop:customer invoice ", result.Outputs[0].Content)
	assert.Equal(t, "customer_list.php", result.Outputs[1].Path)
	assert.Equal(t, "customer:id,name,email", result.Outputs[1].Content)
	assert.Equal(t, "invoice_list.php", result.Outputs[2].Path)
	assert.Equal(t, "invoice:id,total", result.Outputs[2].Content)

	require.Len(t, result.Static, 1)
	assert.Equal(t, []byte("body{}"), result.Static[0].Content)

	out, ok := result.Lookup("list.php", "invoice")
	require.True(t, ok)
	assert.Equal(t, "invoice_list.php", out.Path)
	_, ok = result.Lookup("menu.php", "customer")
	assert.False(t, ok)
}

func TestGenerate_OrderIsIndependentOfWorkers(t *testing.T) {
	tables := make([]schema.Table, 0, 30)
	for i := 0; i < 30; i++ {
		tables = append(tables, schema.Table{
			Name:    "t" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Ordinal: 30 - i,
			Fields:  []schema.Field{{Name: "id", Ordinal: 1, PrimaryKey: true}},
		})
	}
	req := Request{
		Templates: []TemplateFile{
			{FileName: "b.php", Type: TableFile, Order: 1, Content: "{filename}"},
			{FileName: "a.php", Type: TableFile, Order: 1, Content: "{filename}"},
		},
		Tables: tables,
	}

	req.Workers = 1
	serial, err := Generate(context.Background(), req)
	require.NoError(t, err)
	req.Workers = 8
	parallel, err := Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, serial.Outputs, 60)
	assert.Equal(t, serial.Outputs, parallel.Outputs)
	assert.Equal(t, "a.php", serial.Outputs[0].Template)
	assert.Equal(t, tables[29].Name, serial.Outputs[0].Table)
	assert.Equal(t, "b.php", serial.Outputs[59].Template)
	assert.Equal(t, tables[0].Name, serial.Outputs[59].Table)
}

func TestGenerate_ZeroTables(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{{FileName: "list.php", Type: TableFile, Content: "{for {nmaxitems}}{item.name}{endfor}"}},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Outputs)
	assert.Empty(t, result.Failures)
	assert.Equal(t, StatusSuccess, result.Status())
}

func TestGenerate_ParseFailureFailsEveryTable(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "broken.php", Type: TableFile, Order: 1, Content: "{for {nmaxitems}}{switch {item.type}}{case 1}x{endfor}"},
			{FileName: "ok.php", Type: TableFile, Order: 2, Content: "{filename}"},
		},
		Tables: testTables(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Status())
	require.Len(t, result.Failures, 2)
	for i, table := range []string{"customer", "invoice"} {
		f := result.Failures[i]
		assert.Equal(t, "broken.php", f.Template)
		assert.Equal(t, table, f.Table)
		assert.Equal(t, StageParse, f.Stage)

		var parseErr *macro.ParseError
		require.True(t, errors.As(f, &parseErr))
		assert.Equal(t, "endswitch", parseErr.Expected)
	}
	assert.Len(t, result.Outputs, 2)
}

func TestGenerate_EvalFailureIsIsolated(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "detail.php", Type: TableFile, Content: "{fileprimarykey}"},
		},
		Tables: []schema.Table{
			{Name: "audit", Ordinal: 1, Fields: []schema.Field{{Name: "line", Ordinal: 1}}},
			{Name: "customer", Ordinal: 2, Fields: []schema.Field{{Name: "id", Ordinal: 1, PrimaryKey: true}}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Status())
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, "id", result.Outputs[0].Content)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "audit", result.Failures[0].Table)
	assert.Equal(t, StageExpand, result.Failures[0].Stage)
	var evalErr *macro.EvalError
	require.True(t, errors.As(result.Failures[0], &evalErr))
	assert.Equal(t, macro.UnboundPlaceholder, evalErr.Kind)
	assert.Contains(t, result.Failures[0].Error(), "detail.php × audit")
}

func TestGenerate_ProjectParseFailure(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{{FileName: "menu.php", Type: ProjectFile, Content: "{for 1}"}},
		Tables:    testTables(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "", result.Failures[0].Table)
	assert.True(t, macro.IsTemplateError(result.Failures[0].Err))
}

func TestGenerate_OutputNamePattern(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "bo.php", Type: TableFile, Content: "x", OutputName: "classes/{fileclass}.php"},
			{FileName: "evil.php", Type: TableFile, Content: "x", OutputName: "../{filename}.php"},
		},
		Tables: testTables()[:1],
	})
	require.NoError(t, err)

	require.Len(t, result.Outputs, 1)
	assert.Equal(t, "classes/Customer.php", result.Outputs[0].Path)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, StageOutput, result.Failures[0].Stage)
}

func TestGenerate_DuplicateOutputPath(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "a.php", Type: TableFile, Order: 1, Content: "a", OutputName: "{filename}.php"},
			{FileName: "b.php", Type: TableFile, Order: 2, Content: "b", OutputName: "{filename}.php"},
		},
		Tables: testTables()[:1],
	})
	require.NoError(t, err)

	require.Len(t, result.Outputs, 1)
	assert.Equal(t, "a", result.Outputs[0].Content)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "b.php", result.Failures[0].Template)
	assert.Contains(t, result.Failures[0].Err.Error(), "already produced by a.php × customer")
}

func TestGenerate_StaticPathCollision(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "list.php", Type: TableFile, Order: 1, Content: "{filename}"},
			{FileName: "customer_list.php", Type: StaticFile, Order: 2, Content: "STATIC"},
		},
		Tables: testTables(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Status())
	require.Len(t, result.Static, 1)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, "invoice_list.php", result.Outputs[0].Path)

	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, "list.php", f.Template)
	assert.Equal(t, "customer", f.Table)
	assert.Equal(t, StageOutput, f.Stage)
	assert.Contains(t, f.Err.Error(), "already produced by static customer_list.php")

	dir := t.TempDir()
	written, err := WriteTree(dir, result, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_list.php", "invoice_list.php"}, written)
}

func TestGenerate_StaticDirectoryCollision(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pages"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pages", "menu.php"), []byte("static menu"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "robots.txt"), []byte("robots"), 0644))

	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "menu.php", Type: ProjectFile, Order: 1, Content: "menu", OutputName: "site/menu.php"},
			{FileName: "pages", Type: StaticDirectory, Order: 2, SourcePath: "pages", OutputName: "site"},
			{FileName: "robots.txt", Type: StaticFile, Order: 3, SourcePath: "robots.txt", OutputName: "site/menu.php"},
		},
		StaticRoot: root,
	})
	require.NoError(t, err)

	require.Len(t, result.Static, 1)
	assert.Equal(t, []string{"site/menu.php"}, result.Static[0].Files)
	assert.Empty(t, result.Outputs)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, "menu.php", result.Failures[0].Template)
	assert.Equal(t, "robots.txt", result.Failures[1].Template)
	for _, f := range result.Failures {
		assert.Equal(t, StageOutput, f.Stage)
		assert.Contains(t, f.Err.Error(), "already produced by static pages")
	}
}

func TestGenerate_StaticPathEscapes(t *testing.T) {
	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "../escaped.txt", Type: StaticFile, Order: 1, Content: "x"},
			{FileName: "robots.txt", Type: StaticFile, Order: 2, Content: "x", OutputName: "../x"},
			{FileName: "secrets", Type: StaticDirectory, Order: 3, SourcePath: "../../etc"},
			{FileName: "style.css", Type: StaticFile, Order: 4, Content: "ok"},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Static, 1)
	assert.Equal(t, "style.css", result.Static[0].Path)
	require.Len(t, result.Failures, 3)
	for _, f := range result.Failures {
		assert.Equal(t, StageOutput, f.Stage)
		assert.Contains(t, f.Err.Error(), "escapes the")
	}

	root := t.TempDir()
	out := filepath.Join(root, "out")
	_, err = WriteTree(out, result, root)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "escaped.txt"))
	assert.NoFileExists(t, filepath.Join(root, "x"))
	assert.FileExists(t, filepath.Join(out, "style.css"))
}

func TestGenerate_LogsProjectParseFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	_, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{{FileName: "menu.php", Type: ProjectFile, Content: "{for 1}"}},
		Logger:    logger,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "template does not parse")
	assert.Contains(t, buf.String(), "template=menu.php")
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Generate(ctx, Request{
		Templates: []TemplateFile{{FileName: "list.php", Type: TableFile, Content: "{filename}"}},
		Tables:    testTables(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result)
	assert.Empty(t, result.Outputs)
	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		assert.Equal(t, StageCancelled, f.Stage)
	}
	assert.Equal(t, StatusFailed, result.Status())
}

func TestGenerate_RejectsMalformedRequest(t *testing.T) {
	tests := []struct {
		name      string
		templates []TemplateFile
	}{
		{"no name", []TemplateFile{{Type: TableFile}}},
		{"unknown type", []TemplateFile{{FileName: "a", Type: "partial"}}},
		{"duplicate", []TemplateFile{{FileName: "a", Type: TableFile}, {FileName: "a", Type: ProjectFile}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(context.Background(), Request{Templates: tt.templates})
			assert.Error(t, err)
		})
	}
}

func TestGenerate_UsesCache(t *testing.T) {
	cache := macro.NewCache(4)
	req := Request{
		Templates: []TemplateFile{{FileName: "list.php", Type: TableFile, Content: "{filename}"}},
		Tables:    testTables(),
		Cache:     cache,
	}

	_, err := Generate(context.Background(), req)
	require.NoError(t, err)
	_, err = Generate(context.Background(), req)
	require.NoError(t, err)

	hits, misses := cache.Stats()
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, hits)
}
