package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/diff"
)

var (
	diffVisual   bool
	diffShowSame bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show what generate would change in the output directory",
	Long: `Generate in memory and compare the result with the files in output.dir.

Examples:
  tplgen diff                    # List created, updated and stale files
  tplgen diff --visual           # Also print unified diffs of updated files
  tplgen diff --all              # Include unchanged files
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		tables, set, err := loadProject(ctx)
		if err != nil {
			fmt.Println("❌", err)
			os.Exit(1)
		}

		result, err := expandProject(ctx, tables, set)
		if err != nil {
			fmt.Println("❌ Generating:", err)
			os.Exit(1)
		}
		for _, f := range result.Failures {
			color.Yellow("⚠️  %s", f.Error())
		}

		operations, err := diff.DiffOutputs(result, cfg.Output.Dir)
		if err != nil {
			fmt.Println("❌ Comparing output:", err)
			os.Exit(1)
		}

		if !diff.HasChanges(operations) {
			fmt.Println("✅ Output directory is up to date")
		}
		showTextDiff(operations)
	},
}

func init() {
	diffCmd.Flags().BoolVarP(&diffVisual, "visual", "v", false, "Print unified diffs of updated files")
	diffCmd.Flags().BoolVar(&diffShowSame, "all", false, "Also list unchanged files")
}

func showTextDiff(operations []diff.Operation) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for _, op := range operations {
		switch op.Type {
		case diff.CreateFile:
			green.Printf("+ %s", op.Path)
			fmt.Printf(" (+%d)\n", op.Added)
		case diff.UpdateFile:
			yellow.Printf("~ %s", op.Path)
			fmt.Printf(" (+%d -%d)\n", op.Added, op.Removed)
			if diffVisual {
				printUnified(op.Unified)
			}
		case diff.StaleFile:
			red.Printf("- %s", op.Path)
			fmt.Println(" (not generated anymore)")
		case diff.UnchangedFile:
			if diffShowSame {
				fmt.Printf("  %s\n", op.Path)
			}
		}
	}

	counts := diff.Summary(operations)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("📊 %d new, %d updated, %d unchanged, %d stale\n",
		counts[diff.CreateFile], counts[diff.UpdateFile], counts[diff.UnchangedFile], counts[diff.StaleFile])
}

func printUnified(text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			color.New(color.Bold).Println("    " + line)
		case strings.HasPrefix(line, "+"):
			color.Green("    %s", line)
		case strings.HasPrefix(line, "-"):
			color.Red("    %s", line)
		case strings.HasPrefix(line, "@@"):
			color.Cyan("    %s", line)
		default:
			fmt.Println("    " + line)
		}
	}
}
