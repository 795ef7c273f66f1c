package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the schema and the templates",
	Long: `Validate the configured schema and every template before generating.

This command checks:
- Table and field names, type codes and primary keys
- Tables without a primary key or without searchable fields
- Template directives: unterminated directives, mismatched or unclosed
  blocks, unknown directives and bad arguments, with line and column

Examples:
  tplgen validate                    # Human readable report
  tplgen validate --format json      # Output validation results as JSON
`,
	Run: func(cmd *cobra.Command, args []string) {
		tables, set, err := loadProject(context.Background())
		if err != nil {
			fmt.Println("❌", err)
			os.Exit(1)
		}

		result := validator.ValidateSchema(tables)
		result.Merge(validator.ValidateTemplates(set.Files))

		if validateFormat == "json" {
			err = outputJSON(result)
		} else {
			outputText(result)
		}
		if err != nil {
			fmt.Println("❌ Writing report:", err)
			os.Exit(1)
		}
		if !result.Valid {
			os.Exit(1)
		}
	},
}

var validateFormat string

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

func outputJSON(result *validator.ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(result *validator.ValidationResult) {
	if result.Valid {
		color.Green("✅ Validation passed!")
	} else {
		color.Red("❌ Validation failed!")
	}

	printIssues("🔴 Errors", result.Errors)
	printIssues("🟡 Warnings", result.Warnings)
	printIssues("🔵 Info", result.Info)

	fmt.Printf("\n📊 Summary:\n")
	fmt.Printf("  • Errors: %d\n", len(result.Errors))
	fmt.Printf("  • Warnings: %d\n", len(result.Warnings))
	fmt.Printf("  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Printf("\n🎉 Schema and templates are ready for generation!\n")
	} else {
		fmt.Printf("\n💡 Fix the errors above before generating.\n")
	}
}

func printIssues(title string, issues []validator.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(issues))
	for i, issue := range issues {
		fmt.Printf("  %d. ", i+1)
		if issue.Template != "" {
			fmt.Printf("[%s]", issue.Template)
			if issue.Line > 0 {
				fmt.Printf(":%d:%d", issue.Line, issue.Column)
			}
		}
		if issue.Table != "" {
			fmt.Printf("[%s]", issue.Table)
		}
		if issue.Field != "" {
			fmt.Printf(".%s", issue.Field)
		}
		fmt.Printf(": %s\n", issue.Message)
	}
}
