package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload/clientcli"
	"github.com/sagarc03/xupload/config"
	"github.com/sagarc03/xupload/keybackend"
)

// commandConfig returns the configuration loaded by the root command.
func commandConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.FromContext(cmd.Context())
}

// loadSecret reads the shared upload secret from the auth section.
func loadSecret(cfg *config.Config) ([]byte, error) {
	secret, err := keybackend.LoadSecret(cfg.Auth.SecretConfig())
	if err != nil {
		return nil, fmt.Errorf("load secret: %w", err)
	}
	return secret, nil
}

// openStorage opens the storage directory as an os.Root. With create set a
// missing directory is created first.
func openStorage(path string, create bool) (*os.Root, error) {
	if create {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage directory does not exist: %s", path)
	}

	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	return root, nil
}

// newClient builds an upload client for baseURL, defaulting to the local server.
func newClient(cfg *config.Config, baseURL string) (*clientcli.Client, error) {
	secret, err := loadSecret(cfg)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	return clientcli.New(baseURL, secret)
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}
