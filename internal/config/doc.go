// Package config handles configuration loading for fable-vault.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. A missing file is fine; every setting has a default.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FABLE_VAULT_CONFIG environment variable
//  2. ./fable-vault.yaml (current directory)
//  3. $XDG_CONFIG_HOME/fable-vault/config.yaml, falling back to
//     ~/.config/fable-vault/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	storage:
//	  database_path: "${FABLE_VAULT_DB}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Storage locations (leading ~ resolves to the user's home):
//
//	storage:
//	  database_path: "~/.local/share/fable-vault/vault.db"
//	  audio_dir: "~/.local/share/fable-vault/audio"
//
// First-run sample stories:
//
//	seed:
//	  enabled: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Storage paths are non-empty
//   - Logging level and format are from the allowed sets
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
