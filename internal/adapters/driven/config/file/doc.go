// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML configuration with BOLTINDEX_* environment overrides
//   - PromptStore: user-editable oracle prompt templates
package file
