// Package services provides the shared error taxonomy and context
// annotations used across pipeline stages and provider clients.
package services
