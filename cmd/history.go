package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/generator"
	"github.com/ridoystarlord/tplgen/history"
)

var (
	historyLimit int
	historyRun   int64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded generation runs",
	Long: `Show generation runs recorded in history.path with their status,
duration and user, or the outputs and checksums of one run.

Examples:
  tplgen history                 # Show the last 20 runs
  tplgen history --limit 0       # Show every run
  tplgen history --run 12        # Show the outputs of run 12
`,
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.History.Path == "" {
			fmt.Println("📋 Run history is disabled (history.path is empty)")
			return
		}
		if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
			fmt.Println("📋 No generation history found")
			return
		}

		store, err := history.Open(cfg.History.Path)
		if err != nil {
			fmt.Printf("❌ Error opening history: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		if historyRun > 0 {
			err = showRunOutputs(ctx, store, historyRun)
		} else {
			err = showRuns(ctx, store, historyLimit)
		}
		if err != nil {
			fmt.Printf("❌ Error reading history: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to show (0 = all)")
	historyCmd.Flags().Int64VarP(&historyRun, "run", "r", 0, "Show the outputs of this run")
}

func showRuns(ctx context.Context, store *history.Store, limit int) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("📋 No generation history found")
		return nil
	}

	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Println("📋 Generation History")
	fmt.Println(strings.Repeat("=", 60))
	for _, run := range runs {
		switch run.Status {
		case generator.StatusSuccess:
			green.Printf("✅ #%d ", run.ID)
		case generator.StatusPartial:
			yellow.Printf("⚠️ #%d ", run.ID)
		default:
			red.Printf("❌ #%d ", run.ID)
		}
		fmt.Printf("%s  %s from %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Project, run.Source)
		cyan.Printf("   %d tables × %d templates, %d failures, %v", run.Tables, run.Templates, run.Failures, run.Duration)
		if run.ExecutedBy != "" {
			cyan.Printf(", by %s", run.ExecutedBy)
		}
		fmt.Println()
	}
	return nil
}

func showRunOutputs(ctx context.Context, store *history.Store, runID int64) error {
	outputs, err := store.Outputs(ctx, runID)
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		fmt.Printf("📋 Run #%d has no recorded outputs\n", runID)
		return nil
	}

	changed, err := store.Changed(ctx, runID)
	if err != nil {
		return err
	}
	isChanged := make(map[string]bool, len(changed))
	for _, p := range changed {
		isChanged[p] = true
	}

	fmt.Printf("📋 Outputs of run #%d\n", runID)
	fmt.Println(strings.Repeat("=", 60))
	for _, o := range outputs {
		marker := " "
		if isChanged[o.Path] {
			marker = "*"
		}
		fmt.Printf("%s %-40s %8d  %s\n", marker, o.Path, o.Bytes, o.Checksum[:12])
	}
	fmt.Printf("\n* changed since the previous run (%d of %d)\n", len(changed), len(outputs))
	return nil
}
