package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload/clientcli"
)

var (
	uploadContentType string
	uploadQuota       int64
	uploadBaseURL     string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [remote-path]",
	Short: "Upload a file to the server",
	Long: `Sign and upload a file, printing its download URL.

Without a remote path the file goes into a fresh random collection.

Examples:
  xupload upload ./cat.jpg
  xupload upload ./notes.txt alice/notes.txt
  xupload upload --quota 104857600 --base-url https://upload.example.org ./video.mp4`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
	uploadCmd.Flags().Int64Var(&uploadQuota, "quota", 0, "evict old collections to keep the user below this many bytes")
	uploadCmd.Flags().StringVar(&uploadBaseURL, "base-url", "", "server URL (default: http://localhost:<port>)")

	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, uploadBaseURL)
	if err != nil {
		return err
	}

	opts := clientcli.UploadOptions{
		LocalPath:   args[0],
		ContentType: uploadContentType,
		Quota:       uploadQuota,
	}
	if len(args) > 1 {
		opts.RemotePath = args[1]
	}

	result, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		return err
	}

	return getFormatter().FormatUpload(os.Stdout, result)
}
