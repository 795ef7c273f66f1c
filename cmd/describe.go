package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/schema"
)

var (
	describeFormat string
	describeOutput string
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show how templates see each table",
	Long: `Print each table of the configured schema the way the template engine
binds it: the file scalars, the three field views and their counters.

Supported formats:
  - text: field views per table (default)
  - mermaid: Mermaid ER diagram of the schema

Examples:
  tplgen describe
  tplgen describe --format mermaid --output erd.md
`,
	Run: func(cmd *cobra.Command, args []string) {
		tables, err := loadTables(context.Background())
		if err != nil {
			fmt.Printf("❌ Error loading schema: %v\n", err)
			os.Exit(1)
		}

		if len(tables) == 0 {
			fmt.Println("❌ No tables found in schema")
			os.Exit(1)
		}

		var content string
		switch describeFormat {
		case "text":
			if describeOutput == "" {
				printTables(tables)
				return
			}
			content = tablesText(tables)
		case "mermaid":
			content = generateMermaidContent(tables)
		default:
			fmt.Printf("❌ Unsupported format: %s\n", describeFormat)
			fmt.Println("Supported formats: text, mermaid")
			os.Exit(1)
		}

		if describeOutput == "" {
			fmt.Print(content)
			return
		}
		if err := os.WriteFile(describeOutput, []byte(content), 0644); err != nil {
			fmt.Printf("❌ Error writing %s: %v\n", describeOutput, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Description saved to: %s\n", describeOutput)
	},
}

func init() {
	describeCmd.Flags().StringVarP(&describeFormat, "format", "f", "text", "Output format (text, mermaid)")
	describeCmd.Flags().StringVarP(&describeOutput, "output", "o", "", "Write to this file instead of stdout")
}

func printTables(tables []schema.Table) {
	blue := color.New(color.FgBlue, color.Bold)
	for _, t := range tables {
		blue.Printf("📋 %s", t.Name)
		fmt.Print(strings.TrimPrefix(tableText(t), t.Name))
	}
}

func tablesText(tables []schema.Table) string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(tableText(t))
	}
	return b.String()
}

func tableText(t schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", t.Name, t.DisplayName())
	if t.Description != "" {
		fmt.Fprintf(&b, "  %s\n", t.Description)
	}
	if pk, ok := t.PrimaryKey(); ok {
		fmt.Fprintf(&b, "  key: %s (%s)\n", pk.Name, pk.Label())
	} else {
		b.WriteString("  key: none\n")
	}

	views := []struct {
		counter string
		fields  []schema.Field
	}{
		{"nmaxitems", t.Fields},
		{"nmaxitemsnokey", t.NonKeyFields()},
		{"nmaxsearchkeys", t.SearchableFields()},
	}
	for _, v := range views {
		names := make([]string, 0, len(v.fields))
		for _, f := range v.fields {
			names = append(names, f.Name)
		}
		fmt.Fprintf(&b, "  %-15s %2d  %s\n", v.counter, len(v.fields), strings.Join(names, ", "))
	}

	for _, f := range t.Fields {
		flags := ""
		if f.PrimaryKey {
			flags += " PK"
		}
		if f.Searchable {
			flags += " search"
		}
		fmt.Fprintf(&b, "    %d. %-20s type %d %-9s %s%s\n", f.Ordinal, f.Name, int(f.Type), f.Type.Typecast(), f.Label(), flags)
	}
	return b.String()
}

func generateMermaidContent(tables []schema.Table) string {
	var content strings.Builder

	content.WriteString("# Schema\n\n")
	content.WriteString("```mermaid\nerDiagram\n")

	for _, t := range tables {
		content.WriteString(fmt.Sprintf("    %s {\n", t.Name))
		for _, f := range t.Fields {
			line := fmt.Sprintf("        %s %s", strings.ToUpper(string(f.Type.Category())), f.Name)
			if f.PrimaryKey {
				line += " PK"
			}
			if f.Caption != "" {
				line += fmt.Sprintf(" \"%s\"", f.Caption)
			}
			content.WriteString(line + "\n")
		}
		content.WriteString("    }\n")
	}

	content.WriteString("```\n")
	return content.String()
}
