// Package utils contains small shared helpers used across the capability
// providers and the engine: JSON-based HTTP POST plumbing, JSON string
// rendering with truncation, and repair-tolerant JSON parsing.
package utils
