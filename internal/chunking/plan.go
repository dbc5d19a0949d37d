package chunking

import (
	"fmt"
	"math"
)

// Chunk is one planned segment of the source audio file.
type Chunk struct {
	Index int
	// Start and End are approximate boundaries in seconds on the
	// original file's timeline.
	Start float64
	End   float64
}

// Duration returns the planned chunk length in seconds.
func (c Chunk) Duration() float64 {
	return c.End - c.Start
}

// Plan computes fixed-length segment boundaries for a file of the
// given total duration. Boundaries are index*segmentLength to
// min((index+1)*segmentLength, totalDuration); no silence detection is
// involved.
func Plan(totalDurationSeconds float64, segmentSeconds int) ([]Chunk, error) {
	if totalDurationSeconds <= 0 {
		return nil, fmt.Errorf("chunk plan: non-positive duration %.2f", totalDurationSeconds)
	}
	if segmentSeconds <= 0 {
		return nil, fmt.Errorf("chunk plan: non-positive segment length %d", segmentSeconds)
	}

	length := float64(segmentSeconds)
	count := int(math.Ceil(totalDurationSeconds / length))
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * length
		end := math.Min(start+length, totalDurationSeconds)
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end})
	}
	return chunks, nil
}
