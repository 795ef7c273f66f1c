package diff

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ridoystarlord/tplgen/generator"
)

type OperationType string

const (
	CreateFile    OperationType = "CREATE"
	UpdateFile    OperationType = "UPDATE"
	UnchangedFile OperationType = "UNCHANGED"
	StaleFile     OperationType = "STALE" // on disk, not produced by this run
)

// Operation is the effect writing one path would have. Template and Table
// are empty for STALE; line counts and Unified are set for UPDATE.
type Operation struct {
	Type     OperationType
	Path     string
	Template string
	Table    string
	Added    int
	Removed  int
	Unified  string
}

// DiffOutputs compares the outputs of result with the files below dir.
// Operations are sorted by path. A missing dir means every output is new.
func DiffOutputs(result *generator.Result, dir string) ([]Operation, error) {
	var ops []Operation
	produced := make(map[string]bool, len(result.Outputs))

	for _, o := range result.Outputs {
		produced[o.Path] = true
		op := Operation{Path: o.Path, Template: o.Template, Table: o.Table}

		current, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(o.Path)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			op.Type = CreateFile
			op.Added = countLines(o.Content)
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", o.Path, err)
		case string(current) == o.Content:
			op.Type = UnchangedFile
		default:
			op.Type = UpdateFile
			op.Unified, op.Added, op.Removed, err = unified(o.Path, string(current), o.Content)
			if err != nil {
				return nil, err
			}
		}
		ops = append(ops, op)
	}

	stale, err := staleFiles(dir, produced, result.Static)
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		ops = append(ops, Operation{Type: StaleFile, Path: p})
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
	return ops, nil
}

// HasChanges reports whether applying ops would change the output tree.
func HasChanges(ops []Operation) bool {
	for _, op := range ops {
		if op.Type == CreateFile || op.Type == UpdateFile {
			return true
		}
	}
	return false
}

// Summary counts operations by type.
func Summary(ops []Operation) map[OperationType]int {
	counts := make(map[OperationType]int)
	for _, op := range ops {
		counts[op.Type]++
	}
	return counts
}

func unified(path, before, after string) (string, int, int, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  2,
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("diffing %s: %w", path, err)
	}

	added, removed := 0, 0
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return text, added, removed, nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func staleFiles(dir string, produced map[string]bool, static []generator.StaticAsset) ([]string, error) {
	var stale []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if produced[rel] || coveredByStatic(rel, static) {
			return nil
		}
		stale = append(stale, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return stale, nil
}

func coveredByStatic(rel string, static []generator.StaticAsset) bool {
	for _, s := range static {
		if rel == s.Path || (s.Directory && strings.HasPrefix(rel, s.Path+"/")) {
			return true
		}
	}
	return false
}
