// Package chunking splits audio files that exceed a provider's
// single-call limit into fixed-length stream-copy segments, fans the
// segments out to transcription within a concurrency bound, and merges
// the per-chunk transcripts back onto one global timeline.
package chunking
