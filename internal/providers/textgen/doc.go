// Package textgen talks to OpenRouter-compatible chat-completion
// endpoints and turns extracted study material into schema-validated
// structured note content.
package textgen
