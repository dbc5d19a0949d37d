// Package queue persists pipeline state in SQLite: the source rows the
// stage processors read and advance, and the durable job queue the
// worker dispatcher claims work from. Delivery is at-least-once; jobs
// are immutable once enqueued and retries replay the same payload.
package queue
