// Package providers defines the shared contract for external OCR,
// transcription, and text-generation backends, including the
// primary/fallback selection policy and the value objects stages
// exchange with those backends.
package providers
