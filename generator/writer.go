package generator

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// entry is one file of the delivered tree, relative to its root.
type entry struct {
	path string
	data []byte
}

// entries lists every output and static file of result in delivery order.
// Static sources are read from staticRoot.
func entries(result *Result, staticRoot string) ([]entry, error) {
	list := make([]entry, 0, len(result.Outputs)+len(result.Static))
	for _, o := range result.Outputs {
		list = append(list, entry{path: o.Path, data: []byte(o.Content)})
	}

	for _, asset := range result.Static {
		switch {
		case asset.Content != nil:
			list = append(list, entry{path: asset.Path, data: asset.Content})

		case asset.Directory:
			files, err := readStaticDir(filepath.Join(staticRoot, asset.Source), asset.Path)
			if err != nil {
				return nil, fmt.Errorf("static directory %s: %w", asset.Template, err)
			}
			list = append(list, files...)

		default:
			data, err := os.ReadFile(filepath.Join(staticRoot, asset.Source))
			if err != nil {
				return nil, fmt.Errorf("static file %s: %w", asset.Template, err)
			}
			list = append(list, entry{path: asset.Path, data: data})
		}
	}

	seen := make(map[string]bool, len(list))
	for _, e := range list {
		if !filepath.IsLocal(filepath.FromSlash(e.path)) {
			return nil, fmt.Errorf("%s escapes the output directory", e.path)
		}
		if seen[e.path] {
			return nil, fmt.Errorf("%s would be written twice", e.path)
		}
		seen[e.path] = true
	}
	return list, nil
}

// walkStaticDir calls fn for every file below src with its output path
// below dest.
func walkStaticDir(src, dest string, fn func(file, out string) error) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		return fn(p, path.Join(dest, filepath.ToSlash(rel)))
	})
}

func listStaticDir(src, dest string) ([]string, error) {
	var paths []string
	err := walkStaticDir(src, dest, func(_, out string) error {
		paths = append(paths, out)
		return nil
	})
	return paths, err
}

func readStaticDir(src, dest string) ([]entry, error) {
	var files []entry
	err := walkStaticDir(src, dest, func(file, out string) error {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		files = append(files, entry{path: out, data: data})
		return nil
	})
	return files, err
}

// WriteTree writes every output and static asset below dir and returns the
// written paths relative to dir.
func WriteTree(dir string, result *Result, staticRoot string) ([]string, error) {
	list, err := entries(result, staticRoot)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output folder: %v", err)
	}

	written := make([]string, 0, len(list))
	for _, e := range list {
		target := filepath.Join(dir, filepath.FromSlash(e.path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, fmt.Errorf("creating folder for %s: %v", e.path, err)
		}
		if err := os.WriteFile(target, e.data, 0644); err != nil {
			return written, fmt.Errorf("writing %s: %v", e.path, err)
		}
		written = append(written, e.path)
	}
	sort.Strings(written)
	return written, nil
}

// WriteArchive writes the same tree as WriteTree into a zip archive.
func WriteArchive(w io.Writer, result *Result, staticRoot string) error {
	list, err := entries(result, staticRoot)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, e := range list {
		f, err := zw.Create(e.path)
		if err != nil {
			return fmt.Errorf("adding %s to archive: %w", e.path, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return fmt.Errorf("adding %s to archive: %w", e.path, err)
		}
	}
	return zw.Close()
}

// Manifest is the YAML report of a run.
type Manifest struct {
	Status   Status            `yaml:"status"`
	Outputs  []ManifestOutput  `yaml:"outputs"`
	Static   []ManifestStatic  `yaml:"static,omitempty"`
	Failures []ManifestFailure `yaml:"failures,omitempty"`
}

type ManifestOutput struct {
	Template string `yaml:"template"`
	Table    string `yaml:"table,omitempty"`
	Path     string `yaml:"path"`
	Bytes    int    `yaml:"bytes"`
	Checksum string `yaml:"sha256"`
}

type ManifestStatic struct {
	Template  string `yaml:"template"`
	Path      string `yaml:"path"`
	Directory bool   `yaml:"directory,omitempty"`
}

type ManifestFailure struct {
	Template string `yaml:"template"`
	Table    string `yaml:"table,omitempty"`
	Stage    string `yaml:"stage"`
	Error    string `yaml:"error"`
}

// BuildManifest summarizes result without touching the filesystem.
func BuildManifest(result *Result) Manifest {
	m := Manifest{Status: result.Status(), Outputs: []ManifestOutput{}}
	for _, o := range result.Outputs {
		m.Outputs = append(m.Outputs, ManifestOutput{
			Template: o.Template,
			Table:    o.Table,
			Path:     o.Path,
			Bytes:    len(o.Content),
			Checksum: o.Checksum(),
		})
	}
	for _, s := range result.Static {
		m.Static = append(m.Static, ManifestStatic{Template: s.Template, Path: s.Path, Directory: s.Directory})
	}
	for _, f := range result.Failures {
		m.Failures = append(m.Failures, ManifestFailure{
			Template: f.Template,
			Table:    f.Table,
			Stage:    f.Stage,
			Error:    f.Err.Error(),
		})
	}
	return m
}

// WriteManifest writes the YAML manifest of result to path.
func WriteManifest(path string, result *Result) error {
	data, err := yaml.Marshal(BuildManifest(result))
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating manifest folder: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %v", err)
	}
	return nil
}
