// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.recall.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable answer prompt templates
//   - LoadEnvFile / EnvSecrets: provider API keys from .env and the environment
package file
