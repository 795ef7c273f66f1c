package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/config"
)

var (
	configFile string
	cfg        config.Config
	logger     = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   "tplgen",
	Short: "Schema-driven code generation from macro templates",
	Long: `tplgen expands directive templates against a database schema and
writes one file per template and table.

Examples:

  tplgen init
  tplgen validate
  tplgen generate
  tplgen diff
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd == initCmd {
			return
		}
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			fmt.Println("❌ Loading configuration:", err)
			os.Exit(1)
		}
		cfg = loaded
		logger = cfg.Logging.NewLogger(os.Stderr)
		logger.Debug("configuration loaded", "source", cfg.Schema.Source, "templates", cfg.Templates.Manifest)
	},
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (default ./tplgen.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(historyCmd)
}
