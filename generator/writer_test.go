package generator

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writerResult(t *testing.T, staticRoot string) *Result {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(staticRoot, "assets", "img"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staticRoot, "assets", "app.js"), []byte("js"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(staticRoot, "assets", "img", "logo.svg"), []byte("svg"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(staticRoot, "robots.txt"), []byte("robots"), 0644))

	result, err := Generate(context.Background(), Request{
		Templates: []TemplateFile{
			{FileName: "list.php", Type: TableFile, Order: 1, Content: "{filename}", OutputName: "pages/{filename}_list.php"},
			{FileName: "broken.php", Type: ProjectFile, Order: 2, Content: "{nope}"},
			{FileName: "assets", Type: StaticDirectory, Order: 3, SourcePath: "assets", OutputName: "public"},
			{FileName: "robots.txt", Type: StaticFile, Order: 4, SourcePath: "robots.txt"},
			{FileName: "inline.css", Type: StaticFile, Order: 5, Content: "p{}"},
		},
		Tables:     testTables(),
		StaticRoot: staticRoot,
	})
	require.NoError(t, err)
	return result
}

func TestWriteTree(t *testing.T) {
	staticRoot := t.TempDir()
	result := writerResult(t, staticRoot)
	dir := filepath.Join(t.TempDir(), "out")

	written, err := WriteTree(dir, result, staticRoot)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"inline.css",
		"pages/customer_list.php",
		"pages/invoice_list.php",
		"public/app.js",
		"public/img/logo.svg",
		"robots.txt",
	}, written)

	data, err := os.ReadFile(filepath.Join(dir, "pages", "invoice_list.php"))
	require.NoError(t, err)
	assert.Equal(t, "invoice", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "public", "img", "logo.svg"))
	require.NoError(t, err)
	assert.Equal(t, "svg", string(data))
}

func TestWriteTree_MissingStaticSource(t *testing.T) {
	result := &Result{Static: []StaticAsset{{Template: "gone.txt", Path: "gone.txt", Source: "gone.txt"}}}

	_, err := WriteTree(t.TempDir(), result, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "static file gone.txt")
}

func TestWriteTree_RejectsUnsafeEntries(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		msg    string
	}{
		{
			name: "same path twice",
			result: &Result{
				Outputs: []Output{{Template: "list.php", Table: "customer", Path: "customer_list.php", Content: "generated"}},
				Static:  []StaticAsset{{Template: "customer_list.php", Path: "customer_list.php", Content: []byte("static")}},
			},
			msg: "customer_list.php would be written twice",
		},
		{
			name:   "outside the output folder",
			result: &Result{Static: []StaticAsset{{Template: "x", Path: "../escaped.txt", Content: []byte("x")}}},
			msg:    "escapes the output directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			out := filepath.Join(root, "out")

			written, err := WriteTree(out, tt.result, root)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Empty(t, written)
			assert.NoFileExists(t, filepath.Join(root, "escaped.txt"))
			assert.NoFileExists(t, filepath.Join(out, "customer_list.php"))
		})
	}
}

func TestWriteArchive(t *testing.T) {
	staticRoot := t.TempDir()
	result := writerResult(t, staticRoot)

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, result, staticRoot))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(data)
	}

	assert.Equal(t, map[string]string{
		"pages/customer_list.php": "customer",
		"pages/invoice_list.php":  "invoice",
		"public/app.js":           "js",
		"public/img/logo.svg":     "svg",
		"robots.txt":              "robots",
		"inline.css":              "p{}",
	}, files)
}

func TestWriteManifest(t *testing.T) {
	staticRoot := t.TempDir()
	result := writerResult(t, staticRoot)
	path := filepath.Join(t.TempDir(), "reports", "manifest.yaml")

	require.NoError(t, WriteManifest(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))

	assert.Equal(t, StatusPartial, m.Status)
	require.Len(t, m.Outputs, 2)
	assert.Equal(t, "customer", m.Outputs[0].Table)
	assert.Equal(t, "pages/customer_list.php", m.Outputs[0].Path)
	assert.Equal(t, len("customer"), m.Outputs[0].Bytes)
	assert.Equal(t, result.Outputs[0].Checksum(), m.Outputs[0].Checksum)
	assert.Len(t, m.Outputs[0].Checksum, 64)

	require.Len(t, m.Failures, 1)
	assert.Equal(t, "broken.php", m.Failures[0].Template)
	assert.Equal(t, StageExpand, m.Failures[0].Stage)
	assert.Contains(t, m.Failures[0].Error, "nope")

	assert.Len(t, m.Static, 3)
}
