package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload/filesystem"
)

var pruneQuota int64

var pruneCmd = &cobra.Command{
	Use:   "prune [scope]",
	Short: "Evict old collections until a scope fits a quota",
	Long: `Remove whole collections below scope, least recently modified first,
until the accounted size fits the quota. This is the same eviction an upload
with a quota performs, run by hand.

Examples:
  xupload prune --quota 1073741824
  xupload prune --quota 104857600 alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().Int64Var(&pruneQuota, "quota", -1, "budget in bytes")
	_ = pruneCmd.MarkFlagRequired("quota")

	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneQuota < 0 {
		return errors.New("prune: --quota must not be negative")
	}

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

	report, err := filesystem.NewQuota(root).Prune(cmd.Context(), scope, pruneQuota)
	if err != nil {
		return fmt.Errorf("prune %s: %w", scope, err)
	}

	return getFormatter().FormatEviction(os.Stdout, report)
}
