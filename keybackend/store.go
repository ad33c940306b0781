// Package keybackend loads the secret shared between xupload and the XMPP
// server that signs upload URLs.
package keybackend

// SecretConfig holds configuration for loading the shared secret.
type SecretConfig struct {
	Secret string `mapstructure:"secret"`      // Inline secret from config
	File   string `mapstructure:"secret_file"` // Path to a file containing the secret
}

// LoadSecret returns the shared secret described by cfg.
// The file takes precedence over the inline secret if both are set.
func LoadSecret(cfg SecretConfig) ([]byte, error) {
	if cfg.File != "" {
		return LoadSecretFromFile(cfg.File)
	}

	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}

	return []byte(cfg.Secret), nil
}
