// Package config loads and validates application settings from environment
// variables and an optional YAML file. Server, database, auth, LLM, and
// worker settings are grouped into typed structs so the rest of the code
// never reads the environment directly.
package config
