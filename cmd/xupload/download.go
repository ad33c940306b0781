package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload/clientcli"
)

var (
	downloadOutput  string
	downloadStdout  bool
	downloadBaseURL string
)

var downloadCmd = &cobra.Command{
	Use:   "download <remote-path> [local-path]",
	Short: "Download a file from the server",
	Long: `Download a file from the server.

Examples:
  xupload download abc/f.txt
  xupload download abc/f.txt ./local-file.txt
  xupload download --stdout abc/data.json | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
	downloadCmd.Flags().StringVar(&downloadBaseURL, "base-url", "", "server URL (default: http://localhost:<port>)")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}

	client, err := newClient(cfg, downloadBaseURL)
	if err != nil {
		return err
	}

	result, body, err := client.Download(cmd.Context(), clientcli.DownloadOptions{
		RemotePath: args[0],
		LocalPath:  localPath,
	})
	if err != nil {
		return err
	}

	if body != nil {
		defer func() { _ = body.Close() }()
		if _, err := io.Copy(os.Stdout, body); err != nil {
			return err
		}
		return nil
	}

	return getFormatter().FormatDownload(os.Stdout, result)
}
