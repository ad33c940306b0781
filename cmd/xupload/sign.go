package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload/clientcli"
)

var (
	signLength  int64
	signQuota   int64
	signBaseURL string
)

var signCmd = &cobra.Command{
	Use:   "sign <path>",
	Short: "Print a signed upload URL",
	Long: `Print an upload URL signed with the shared secret, as an XMPP server
would hand it to a client.

A bare file name is placed into a fresh random collection.

Examples:
  xupload sign --length 5 abc/f.txt
  xupload sign --length 1048576 --quota 104857600 cat.jpg
  xupload sign -q --length 5 --base-url https://upload.example.org abc/f.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().Int64VarP(&signLength, "length", "l", 0, "exact upload size in bytes")
	signCmd.Flags().Int64Var(&signQuota, "quota", 0, "evict old collections to keep the user below this many bytes")
	signCmd.Flags().StringVar(&signBaseURL, "base-url", "", "public server URL (default: http://localhost:<port>)")
	_ = signCmd.MarkFlagRequired("length")

	rootCmd.AddCommand(signCmd)
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, signBaseURL)
	if err != nil {
		return err
	}

	remotePath := args[0]
	if !strings.Contains(strings.Trim(remotePath, "/"), "/") {
		remotePath = clientcli.RandomCollectionPath(strings.Trim(remotePath, "/"))
	}

	result, err := client.Sign(remotePath, signLength, signQuota)
	if err != nil {
		return err
	}

	return getFormatter().FormatSign(os.Stdout, result)
}
