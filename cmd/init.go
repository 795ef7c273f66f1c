package cmd

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed skeleton
var skeleton embed.FS

var (
	initDir   string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new tplgen project",
	Long: `Initialize a new tplgen project with a configuration file, an example
schema and a set of sample templates:

- tplgen.yaml                  configuration
- schema.yaml                  two example tables
- templates/templates.yaml     template manifest
- templates/*.php              list, form, print, delete, business object, menu
- templates/static/assets      static files copied as they are

Existing files are kept unless --force is given.

Examples:
  tplgen init                    # Initialize in the current directory
  tplgen init --dir shop         # Initialize in ./shop
  tplgen init --force            # Overwrite existing files`,
	Run: func(cmd *cobra.Command, args []string) {
		written, skipped, err := writeSkeleton(initDir, initForce)
		if err != nil {
			fmt.Println("❌ Initializing project:", err)
			os.Exit(1)
		}

		for _, p := range written {
			fmt.Println("✅ Created", p)
		}
		for _, p := range skipped {
			fmt.Println("⚠️  Kept existing", p)
		}
		fmt.Println("📝 Edit schema.yaml and the templates to fit your project")
		fmt.Println("🚀 Run 'tplgen generate' to expand the templates")
	},
}

func init() {
	initCmd.Flags().StringVarP(&initDir, "dir", "d", ".", "Directory to initialize")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

// writeSkeleton copies the embedded project skeleton below dir.
func writeSkeleton(dir string, force bool) (written, skipped []string, err error) {
	root, err := fs.Sub(skeleton, "skeleton")
	if err != nil {
		return nil, nil, err
	}

	err = fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(dest, 0755)
		}

		if _, err := os.Stat(dest); err == nil && !force {
			skipped = append(skipped, dest)
			return nil
		}
		data, err := fs.ReadFile(root, p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", dest, err)
		}
		written = append(written, dest)
		return nil
	})
	return written, skipped, err
}
