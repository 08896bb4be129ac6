// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the QueryNest config directory.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with environment overrides
//   - PromptStore: user-editable LLM prompt templates
package file
