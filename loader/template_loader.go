package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/tplgen/generator"
)

// TemplateSet is a loaded templates.yaml: the template files in manifest
// order and the directory static sources are read from.
type TemplateSet struct {
	Files      []generator.TemplateFile
	StaticRoot string
}

type templateManifest struct {
	StaticRoot string          `yaml:"static_root"`
	Templates  []templateEntry `yaml:"templates"`
}

type templateEntry struct {
	File   string `yaml:"file"`
	Type   string `yaml:"type"`
	Order  int    `yaml:"order"`
	Path   string `yaml:"path"`
	Source string `yaml:"source"`
	Output string `yaml:"output"`
}

// LoadTemplates reads a template manifest. Paths inside it are relative to
// the manifest's directory. Expanded templates are read from path (default:
// the file name); static entries keep their source (default: the file name)
// for the writer to copy.
func LoadTemplates(manifestPath string) (*TemplateSet, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading template manifest: %w", err)
	}

	var m templateManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}

	base := filepath.Dir(manifestPath)
	set := &TemplateSet{StaticRoot: base}
	if m.StaticRoot != "" {
		set.StaticRoot = filepath.Join(base, m.StaticRoot)
	}

	for i, e := range m.Templates {
		if e.File == "" {
			return nil, fmt.Errorf("template #%d has no file name", i+1)
		}
		ft := generator.FileType(e.Type)
		if !ft.Valid() {
			return nil, fmt.Errorf("template %s: unknown type %q (want static_file, static_directory, project_file or db_table_file)", e.File, e.Type)
		}

		tf := generator.TemplateFile{
			FileName:   e.File,
			Type:       ft,
			Order:      e.Order,
			OutputName: e.Output,
		}

		if ft.Expanded() {
			path := e.Path
			if path == "" {
				path = e.File
			}
			content, err := os.ReadFile(filepath.Join(base, path))
			if err != nil {
				return nil, fmt.Errorf("template %s: %w", e.File, err)
			}
			tf.Content = string(content)
		} else {
			tf.SourcePath = e.Source
			if tf.SourcePath == "" {
				tf.SourcePath = e.File
			}
		}

		set.Files = append(set.Files, tf)
	}

	return set, nil
}
