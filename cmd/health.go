package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/database"
	"github.com/ridoystarlord/tplgen/introspect"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity",
	Long: `Check that the database schema source is accessible and can be introspected.

Examples:
  tplgen health                    # Check the configured database
  tplgen health --timeout 10s      # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		if !cfg.Schema.IsDatabase() {
			fmt.Printf("ℹ️  Schema source is %s, no database to check\n", cfg.Schema.Source)
			return
		}
		if err := checkDatabaseHealth(); err != nil {
			fmt.Printf("❌ Database health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Database is healthy and accessible")
	},
}

var healthTimeout time.Duration

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "Timeout for health check")
}

func checkDatabaseHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	start := time.Now()
	h, err := database.Open(ctx, cfg.Schema.Source, cfg.Schema.DSN)
	if err != nil {
		return err
	}
	defer h.Close()
	fmt.Printf("🔌 Connected to %s in %v\n", cfg.Schema.Source, time.Since(start).Round(time.Millisecond))

	name := cfg.Schema.Name
	if name == "" && cfg.Schema.Source == database.MySQL {
		if name, err = database.MySQLDatabase(cfg.Schema.DSN); err != nil {
			return err
		}
	}

	tables, err := introspect.Load(ctx, h, name)
	if err != nil {
		return fmt.Errorf("failed to introspect schema: %v", err)
	}

	fmt.Printf("📊 Found %d tables\n", len(tables))
	return nil
}
