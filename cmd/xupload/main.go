package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload/config"
)

var version = "dev"

var (
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "xupload",
	Short:   "Blind object store for XMPP HTTP File Upload",
	Long: `xupload stores files uploaded through XMPP HTTP File Upload (XEP-0363).

The XMPP server signs upload URLs with a secret shared with xupload; xupload
checks the signature, stores the file under the requested path and serves it
back to anyone who knows the URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable, later files win (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: XUPLOAD_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("secret-file", "", "file holding the shared upload secret (env: XUPLOAD_AUTH_SECRET_FILE)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: XUPLOAD_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}
