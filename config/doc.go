// Package config provides configuration loading and validation for xupload.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (XUPLOAD_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with XUPLOAD_ prefix:
//   - server.port → XUPLOAD_SERVER_PORT
//   - auth.secret → XUPLOAD_AUTH_SECRET
//   - storage.path → XUPLOAD_STORAGE_PATH
//
// # Validation
//
//   - Port must be 1-65535
//   - Only one of auth.secret and auth.secret_file may be set
//   - Env must be dev or prod
//   - Log level must be debug, info, warn, or error
package config
