// Package ffprobe shells out to ffprobe for media container inspection,
// primarily to learn audio durations before chunk planning.
package ffprobe
