package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/generator"
	"github.com/ridoystarlord/tplgen/history"
	"github.com/ridoystarlord/tplgen/validator"
)

var (
	dryRunGenerate   bool
	generateArchive  string
	generateManifest string
	generateWorkers  int
	skipHistory      bool
)

func init() {
	generateCmd.Flags().BoolVar(&dryRunGenerate, "dry-run", false, "Print what would be generated without writing files")
	generateCmd.Flags().StringVar(&generateArchive, "archive", "", "Also write the generated tree into this zip file")
	generateCmd.Flags().StringVar(&generateManifest, "manifest", "", "Write a YAML manifest of outputs and failures")
	generateCmd.Flags().IntVarP(&generateWorkers, "workers", "w", 0, "Worker count (default from config, 0 = one per CPU)")
	generateCmd.Flags().BoolVar(&skipHistory, "no-history", false, "Do not record this run in the history database")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate files from the templates and the schema",
	Long: `Expand every template against the schema and write the results.

Table templates (db_table_file) produce one file per table, project
templates one file, and static files and directories are copied as they are.
A template that fails for one table does not stop the others; failures are
listed at the end and the command exits with status 2.

Examples:
  tplgen generate                        # Write into output.dir
  tplgen generate --dry-run              # Only list what would be written
  tplgen generate --archive app.zip      # Also pack the tree into a zip
  tplgen generate --manifest run.yaml    # Write a manifest with checksums
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if generateWorkers > 0 {
			cfg.Generate.Workers = generateWorkers
		}

		tables, set, err := loadProject(ctx)
		if err != nil {
			fmt.Println("❌", err)
			os.Exit(1)
		}

		schemaCheck := validator.ValidateSchema(tables)
		for _, w := range schemaCheck.Warnings {
			logger.Warn(w.Message, "table", w.Table)
		}
		if !schemaCheck.Valid {
			for _, e := range schemaCheck.Errors {
				fmt.Printf("❌ [%s] %s\n", e.Table, e.Message)
			}
			os.Exit(1)
		}

		result, err := expandProject(ctx, tables, set)
		if result == nil {
			fmt.Println("❌ Generating:", err)
			os.Exit(1)
		}
		if err != nil {
			color.Yellow("⚠️  %v", err)
		}

		printResult(result)

		if dryRunGenerate {
			fmt.Println("(Dry run only. No files were written.)")
			exitForStatus(result.Status())
			return
		}

		written, err := generator.WriteTree(cfg.Output.Dir, result, set.StaticRoot)
		if err != nil {
			fmt.Println("❌ Writing output:", err)
			os.Exit(1)
		}
		fmt.Printf("📁 Wrote %d files to %s\n", len(written), cfg.Output.Dir)

		archive := firstNonEmpty(generateArchive, cfg.Output.Archive)
		if archive != "" {
			if err := writeArchive(archive, result, set.StaticRoot); err != nil {
				fmt.Println("❌ Writing archive:", err)
				os.Exit(1)
			}
			fmt.Println("📦 Archive written:", archive)
		}

		manifest := firstNonEmpty(generateManifest, cfg.Output.Manifest)
		if manifest != "" {
			if err := generator.WriteManifest(manifest, result); err != nil {
				fmt.Println("❌ Writing manifest:", err)
				os.Exit(1)
			}
			fmt.Println("📝 Manifest written:", manifest)
		}

		if cfg.History.Path != "" && !skipHistory {
			if err := recordRun(context.Background(), len(tables), len(set.Files), result); err != nil {
				color.Yellow("⚠️  Recording history: %v", err)
			}
		}

		exitForStatus(result.Status())
	},
}

func printResult(result *generator.Result) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, o := range result.Outputs {
		green.Printf("  ✅ %s", o.Path)
		fmt.Printf("  (%s)\n", outputLabel(o))
	}
	for _, s := range result.Static {
		fmt.Printf("  📄 %s (static)\n", s.Path)
	}
	for _, f := range result.Failures {
		red.Printf("  ❌ %s\n", f.Error())
	}

	fmt.Printf("\n%d generated, %d static, %d failed in %v\n",
		len(result.Outputs), len(result.Static), len(result.Failures), result.Duration.Round(time.Millisecond))
}

func outputLabel(o generator.Output) string {
	if o.Table == "" {
		return o.Template
	}
	return o.Template + " × " + o.Table
}

func writeArchive(path string, result *generator.Result, staticRoot string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := generator.WriteArchive(f, result, staticRoot); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRun(ctx context.Context, tables, templates int, result *generator.Result) error {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Record(ctx, history.NewRun(cfg.Project.Name, cfg.Schema.Source, tables, templates, result))
	if err != nil {
		return err
	}
	logger.Info("run recorded", "run_id", id, "path", cfg.History.Path)

	changed, err := store.Changed(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("🕘 Run #%d recorded, %d files changed since the previous run\n", id, len(changed))
	return nil
}

// exitForStatus exits 1 when nothing was generated and 2 on partial success.
func exitForStatus(status generator.Status) {
	switch status {
	case generator.StatusFailed:
		os.Exit(1)
	case generator.StatusPartial:
		os.Exit(2)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
