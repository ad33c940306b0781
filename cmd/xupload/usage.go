package main

import (
	"cmp"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload"
	"github.com/sagarc03/xupload/filesystem"
)

var usageCmd = &cobra.Command{
	Use:   "usage [scope]",
	Short: "Show disk usage per collection",
	Long: `List the collections directly below scope with their object count,
accounted size and last modification. Scope defaults to the storage root;
pass a user directory to see the collections a quota would consider.

Examples:
  xupload usage
  xupload usage alice
  xupload usage --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	root, err := openStorage(cfg.Storage.Path, false)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	scope := "."
	if len(args) > 0 {
		if scope, err = scopeOf(cfg.Storage.Path, args[0]); err != nil {
			return err
		}
	}

	usage, err := filesystem.NewQuota(root).Usage(cmd.Context(), scope)
	if err != nil {
		return err
	}
	slices.SortFunc(usage, func(a, b xupload.CollectionUsage) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return getFormatter().FormatUsage(os.Stdout, usage)
}

// scopeOf validates a user supplied scope with the same rules as object paths.
func scopeOf(storagePath, scope string) (string, error) {
	resolver, err := xupload.NewResolver(storagePath)
	if err != nil {
		return "", err
	}
	loc, err := resolver.Resolve(scope)
	if err != nil {
		return "", err
	}
	return loc.Rel, nil
}
