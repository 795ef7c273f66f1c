package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ridoystarlord/tplgen/macro"
	"github.com/ridoystarlord/tplgen/schema"
)

// FileType decides how a template file takes part in a run.
type FileType string

const (
	StaticFile      FileType = "static_file"
	StaticDirectory FileType = "static_directory"
	ProjectFile     FileType = "project_file"
	TableFile       FileType = "db_table_file"
)

func (t FileType) Valid() bool {
	switch t {
	case StaticFile, StaticDirectory, ProjectFile, TableFile:
		return true
	}
	return false
}

// Expanded reports whether files of this type go through the macro engine.
func (t FileType) Expanded() bool {
	return t == ProjectFile || t == TableFile
}

// TemplateFile is one entry of the template set.
type TemplateFile struct {
	FileName   string
	Content    string
	Type       FileType
	Order      int
	SourcePath string // static files and directories, relative to the static root
	OutputName string // optional output path pattern, expanded like a template
}

// Request is the input of one generation run.
type Request struct {
	Templates []TemplateFile
	Tables    []schema.Table
	Scalars   macro.Scalars
	Workers   int
	Cache     *macro.Cache
	Logger    *slog.Logger

	// StaticRoot is where static sources live. When set, the files of static
	// directories are listed so their paths take part in collision checks.
	StaticRoot string
}

// Output is the expansion of one template, for one table or for the project.
type Output struct {
	Template string
	Table    string // empty for project files
	Path     string
	Content  string

	order        int
	tableOrdinal int
}

// Checksum returns the hex sha256 of the content.
func (o Output) Checksum() string {
	sum := sha256.Sum256([]byte(o.Content))
	return hex.EncodeToString(sum[:])
}

// StaticAsset is a static template passed through without expansion.
type StaticAsset struct {
	Template  string
	Path      string
	Source    string
	Directory bool
	Content   []byte
	Files     []string // output paths below a static directory, when listed

	order int
}

// paths lists the output paths the asset claims.
func (s StaticAsset) paths() []string {
	if s.Directory {
		return s.Files
	}
	return []string{s.Path}
}

// Failure stages.
const (
	StageParse     = "parse"
	StageExpand    = "expand"
	StageOutput    = "output"
	StageCancelled = "cancelled"
)

// Failure records one (template, table) pair that produced no output.
type Failure struct {
	Template string
	Table    string
	Stage    string
	Err      error

	order        int
	tableOrdinal int
}

func (f Failure) Error() string {
	if f.Table == "" {
		return fmt.Sprintf("%s [%s]: %v", f.Template, f.Stage, f.Err)
	}
	return fmt.Sprintf("%s × %s [%s]: %v", f.Template, f.Table, f.Stage, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Status summarizes a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result holds every output, static asset and failure of a run, in
// deterministic order.
type Result struct {
	Outputs  []Output
	Static   []StaticAsset
	Failures []Failure
	Duration time.Duration
}

func (r *Result) Status() Status {
	switch {
	case len(r.Failures) == 0:
		return StatusSuccess
	case len(r.Outputs) == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Lookup finds the output for a template and table ("" for project files).
func (r *Result) Lookup(template, table string) (Output, bool) {
	for _, o := range r.Outputs {
		if o.Template == template && o.Table == table {
			return o, true
		}
	}
	return Output{}, false
}

type outputKey struct {
	template string
	table    string
}

type task struct {
	file    TemplateFile
	order   int
	nodes   []macro.Node
	pattern []macro.Node
	table   *schema.Table
}

func (t task) key() outputKey {
	if t.table == nil {
		return outputKey{template: t.file.FileName}
	}
	return outputKey{template: t.file.FileName, table: t.table.Name}
}

func (t task) failure(stage string, err error) Failure {
	f := Failure{Template: t.file.FileName, Stage: stage, Err: err, order: t.order}
	if t.table != nil {
		f.Table = t.table.Name
		f.tableOrdinal = t.table.Ordinal
	}
	return f
}

type collector struct {
	mu       sync.Mutex
	outputs  map[outputKey]Output
	failures []Failure
}

func (c *collector) put(t task, out Output) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := t.key()
	if _, exists := c.outputs[k]; exists {
		c.failures = append(c.failures, t.failure(StageOutput, fmt.Errorf("output for %s already collected", k.template)))
		return
	}
	c.outputs[k] = out
}

func (c *collector) fail(f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}

// Generate expands every project and table template of req. Templates are
// parsed once; table templates are then expanded for every table on a
// bounded worker pool. A failure of one pair never stops the others.
//
// The returned error is non-nil only for a malformed request or when ctx is
// cancelled; in the latter case the result is still returned and lists the
// pairs that did not run as cancelled failures.
func Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	templates, err := sortedTemplates(req.Templates)
	if err != nil {
		return nil, err
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	result := &Result{}
	col := &collector{outputs: make(map[outputKey]Output)}
	var tasks []task

	for order, tf := range templates {
		if !tf.Type.Expanded() {
			asset, err := staticAsset(tf, req.StaticRoot)
			if err != nil {
				logger.Warn("static template skipped", "template", tf.FileName, "error", err)
				col.fail(Failure{Template: tf.FileName, Stage: StageOutput, Err: err, order: order})
				continue
			}
			asset.order = order
			result.Static = append(result.Static, asset)
			continue
		}

		nodes, pattern, err := parseTemplate(req.Cache, tf)
		if err != nil {
			logger.Warn("template does not parse", "template", tf.FileName, "error", err)
		}
		if tf.Type == ProjectFile {
			t := task{file: tf, order: order, nodes: nodes, pattern: pattern}
			if err != nil {
				col.fail(t.failure(StageParse, err))
				continue
			}
			tasks = append(tasks, t)
			continue
		}

		for i := range req.Tables {
			t := task{file: tf, order: order, nodes: nodes, pattern: pattern, table: &req.Tables[i]}
			if err != nil {
				col.fail(t.failure(StageParse, err))
				continue
			}
			tasks = append(tasks, t)
		}
	}

	logger.Debug("generation started", "templates", len(templates), "tables", len(req.Tables), "tasks", len(tasks), "workers", workers)

	var g errgroup.Group
	g.SetLimit(workers)

	for _, t := range tasks {
		if ctx.Err() != nil {
			col.fail(t.failure(StageCancelled, ctx.Err()))
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				col.fail(t.failure(StageCancelled, ctx.Err()))
				return nil
			}
			out, stage, err := run(t, req.Tables, req.Scalars)
			if err != nil {
				logger.Debug("expansion failed", "template", t.file.FileName, "table", t.key().table, "error", err)
				col.fail(t.failure(stage, err))
				return nil
			}
			col.put(t, out)
			return nil
		})
	}
	_ = g.Wait()

	result.Outputs = make([]Output, 0, len(col.outputs))
	for _, o := range col.outputs {
		result.Outputs = append(result.Outputs, o)
	}
	sortOutputs(result.Outputs)
	result.Failures = col.failures
	result.Static, result.Outputs, result.Failures = claimPaths(result.Static, result.Outputs, result.Failures)
	sortFailures(result.Failures)

	result.Duration = time.Since(start)
	logger.Info("generation finished",
		"outputs", len(result.Outputs),
		"static", len(result.Static),
		"failures", len(result.Failures),
		"status", result.Status(),
		"duration", result.Duration)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("generation cancelled: %w", err)
	}
	return result, nil
}

func sortedTemplates(in []TemplateFile) ([]TemplateFile, error) {
	seen := make(map[string]bool, len(in))
	out := make([]TemplateFile, len(in))
	copy(out, in)

	for _, tf := range out {
		if tf.FileName == "" {
			return nil, fmt.Errorf("template without file name")
		}
		if !tf.Type.Valid() {
			return nil, fmt.Errorf("template %s: unknown file type %q", tf.FileName, tf.Type)
		}
		if seen[tf.FileName] {
			return nil, fmt.Errorf("duplicate template %s", tf.FileName)
		}
		seen[tf.FileName] = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].FileName < out[j].FileName
	})
	return out, nil
}

func parseTemplate(cache *macro.Cache, tf TemplateFile) ([]macro.Node, []macro.Node, error) {
	nodes, err := cache.Parse(tf.FileName, tf.Content)
	if err != nil {
		return nil, nil, err
	}
	if tf.OutputName == "" {
		return nodes, nil, nil
	}
	pattern, err := cache.Parse(tf.FileName+" (output name)", tf.OutputName)
	if err != nil {
		return nil, nil, err
	}
	return nodes, pattern, nil
}

func staticAsset(tf TemplateFile, staticRoot string) (StaticAsset, error) {
	path := tf.OutputName
	if path == "" {
		path = tf.FileName
	}
	if !filepath.IsLocal(path) {
		return StaticAsset{}, fmt.Errorf("output path %q escapes the output directory", path)
	}
	if tf.SourcePath != "" && !filepath.IsLocal(tf.SourcePath) {
		return StaticAsset{}, fmt.Errorf("source %q escapes the static root", tf.SourcePath)
	}

	asset := StaticAsset{
		Template:  tf.FileName,
		Path:      filepath.ToSlash(filepath.Clean(path)),
		Source:    tf.SourcePath,
		Directory: tf.Type == StaticDirectory,
	}
	if tf.SourcePath == "" && tf.Type == StaticFile {
		asset.Content = []byte(tf.Content)
	}
	if asset.Directory && staticRoot != "" {
		files, err := listStaticDir(filepath.Join(staticRoot, asset.Source), asset.Path)
		if err != nil {
			return StaticAsset{}, fmt.Errorf("static directory %s: %w", tf.FileName, err)
		}
		asset.Files = files
	}
	return asset, nil
}

// run expands one task. The returned stage names what failed.
func run(t task, tables []schema.Table, scalars macro.Scalars) (Output, string, error) {
	var env *macro.Env
	if t.table == nil {
		env = macro.NewProjectEnv(tables, scalars)
	} else {
		env = macro.NewTableEnv(*t.table, scalars)
	}

	content, err := macro.Expand(t.nodes, env)
	if err != nil {
		return Output{}, StageExpand, fmt.Errorf("%s: %w", t.file.FileName, err)
	}

	path, err := outputPath(t, env)
	if err != nil {
		return Output{}, StageOutput, err
	}

	out := Output{
		Template: t.file.FileName,
		Path:     path,
		Content:  content,
		order:    t.order,
	}
	if t.table != nil {
		out.Table = t.table.Name
		out.tableOrdinal = t.table.Ordinal
	}
	return out, "", nil
}

// outputPath expands the output name pattern, or falls back to
// <table>_<file> for table files and <file> for project files.
func outputPath(t task, env *macro.Env) (string, error) {
	var path string
	switch {
	case t.pattern != nil:
		p, err := macro.Expand(t.pattern, env)
		if err != nil {
			return "", fmt.Errorf("output name %q: %w", t.file.OutputName, err)
		}
		path = strings.TrimSpace(p)
	case t.table != nil:
		dir, base := filepath.Split(t.file.FileName)
		path = dir + t.table.Name + "_" + base
	default:
		path = t.file.FileName
	}

	if path == "" || !filepath.IsLocal(path) {
		return "", fmt.Errorf("output path %q escapes the output directory", path)
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}

func sortOutputs(outputs []Output) {
	sort.Slice(outputs, func(i, j int) bool {
		a, b := outputs[i], outputs[j]
		if a.order != b.order {
			return a.order < b.order
		}
		if a.tableOrdinal != b.tableOrdinal {
			return a.tableOrdinal < b.tableOrdinal
		}
		return a.Table < b.Table
	})
}

func sortFailures(failures []Failure) {
	sort.SliceStable(failures, func(i, j int) bool {
		a, b := failures[i], failures[j]
		if a.order != b.order {
			return a.order < b.order
		}
		if a.tableOrdinal != b.tableOrdinal {
			return a.tableOrdinal < b.tableOrdinal
		}
		return a.Table < b.Table
	})
}

// claimPaths gives each output path to its first claimant: static assets in
// template order, then outputs in output order. Later claimants become
// failures. outputs must already be sorted.
func claimPaths(static []StaticAsset, outputs []Output, failures []Failure) ([]StaticAsset, []Output, []Failure) {
	owner := make(map[string]string, len(static)+len(outputs))

	keptStatic := static[:0]
	for _, s := range static {
		if p, first, taken := claimed(owner, s.paths()); taken {
			failures = append(failures, Failure{
				Template: s.Template,
				Stage:    StageOutput,
				Err:      fmt.Errorf("output path %s already produced by %s", p, first),
				order:    s.order,
			})
			continue
		}
		for _, p := range s.paths() {
			owner[p] = "static " + s.Template
		}
		keptStatic = append(keptStatic, s)
	}

	kept := outputs[:0]
	for _, o := range outputs {
		if first, ok := owner[o.Path]; ok {
			failures = append(failures, Failure{
				Template:     o.Template,
				Table:        o.Table,
				Stage:        StageOutput,
				Err:          fmt.Errorf("output path %s already produced by %s", o.Path, first),
				order:        o.order,
				tableOrdinal: o.tableOrdinal,
			})
			continue
		}
		owner[o.Path] = describe(o)
		kept = append(kept, o)
	}
	return keptStatic, kept, failures
}

func claimed(owner map[string]string, paths []string) (string, string, bool) {
	for _, p := range paths {
		if first, ok := owner[p]; ok {
			return p, first, true
		}
	}
	return "", "", false
}

func describe(o Output) string {
	if o.Table == "" {
		return o.Template
	}
	return o.Template + " × " + o.Table
}
