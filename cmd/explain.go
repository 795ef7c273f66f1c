package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/tplgen/loader"
	"github.com/ridoystarlord/tplgen/macro"
)

var explainCmd = &cobra.Command{
	Use:   "explain <template>",
	Short: "Print the parsed directive tree of a template",
	Long: `Parse one template of the manifest (or any file path) and print its
directive tree, one node per line.

Examples:
  tplgen explain list.php
  tplgen explain templates/form.php
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, content, err := explainSource(args[0])
		if err != nil {
			fmt.Println("❌", err)
			os.Exit(1)
		}

		nodes, err := macro.Parse(name, content)
		if err != nil {
			fmt.Println("❌ Parsing template:", err)
			os.Exit(1)
		}
		fmt.Print(macro.Dump(nodes))
	},
}

// explainSource looks the name up in the template manifest first and falls
// back to reading it as a file.
func explainSource(name string) (string, string, error) {
	if set, err := loader.LoadTemplates(cfg.Templates.Manifest); err == nil {
		for _, tf := range set.Files {
			if tf.FileName == name && tf.Type.Expanded() {
				return tf.FileName, tf.Content, nil
			}
		}
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", "", fmt.Errorf("template %s not found in %s: %w", name, cfg.Templates.Manifest, err)
	}
	return name, string(data), nil
}
