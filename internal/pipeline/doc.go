// Package pipeline implements the per-stage job processors that move a
// source from raw input through extraction, structuring, visual
// resolution, and final note assembly.
package pipeline
