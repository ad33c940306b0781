package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/xupload/config"
	"github.com/sagarc03/xupload/keybackend"
)

const secretBytes = 32

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Interactively create a configuration file with a freshly generated
upload secret. Paste the same secret into the XMPP server's HTTP upload
module configuration.

The file is written with mode 0600 because it contains the secret.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "config.yaml", "config file to write")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite without asking")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(initOutput); statErr == nil && !initForce {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", initOutput),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	out := *cfg

	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	out.Server.Port, _ = strconv.Atoi(portStr)

	storagePrompt := promptui.Prompt{
		Label:   "Storage directory",
		Default: cfg.Storage.Path,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("storage directory is required")
			}
			return nil
		},
	}
	if out.Storage.Path, err = storagePrompt.Run(); err != nil {
		return handlePromptError(err)
	}

	generated, err := keybackend.GenerateSecret(secretBytes)
	if err != nil {
		return err
	}
	secretPrompt := promptui.Prompt{
		Label:   "Upload secret (shared with the XMPP server)",
		Default: generated,
		Mask:    '*',
	}
	if out.Auth.Secret, err = secretPrompt.Run(); err != nil {
		return handlePromptError(err)
	}
	out.Auth.SecretFile = ""

	envSelect := promptui.Select{
		Label: "Environment",
		Items: []string{"dev", "prod"},
	}
	if _, out.Env, err = envSelect.Run(); err != nil {
		return handlePromptError(err)
	}

	metricsPrompt := promptui.Prompt{
		Label:     "Expose Prometheus metrics on " + cfg.Metrics.Addr,
		IsConfirm: true,
	}
	_, metricsErr := metricsPrompt.Run()
	out.Metrics.Enabled = metricsErr == nil

	if err := writeConfig(initOutput, &out); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s.\n", initOutput)
	if out.Auth.Secret == generated {
		fmt.Printf("Upload secret: %s\n", generated)
	}
	return nil
}

// writeConfig serializes cfg as YAML readable by config.Load.
func writeConfig(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	header := []byte("# xupload configuration, see `xupload --help`\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func validatePort(input string) error {
	port, err := strconv.Atoi(input)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// handlePromptError turns an interrupted prompt into a quiet cancel.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		fmt.Println("Cancelled.")
		return nil
	}
	return fmt.Errorf("prompt: %w", err)
}
