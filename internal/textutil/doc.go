// Package textutil provides small text helpers shared across the
// pipeline: filename sanitizing and display truncation.
package textutil
