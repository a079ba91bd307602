// Package archive moves rotated log files into longer-term storage.
package archive

import (
	"context"
	"log"
	"time"
)

// Backend defines the interface for rotated-file archival
type Backend interface {
	// Store uploads one rotated file for the given channel
	Store(ctx context.Context, channel, path string) error

	// Close cleans up resources
	Close() error
}

// Config holds common archival configuration
type Config struct {
	URL        string // bucket URL, virtual-hosted or path style
	AccessKey  string
	SecretKey  string
	Region     string
	PathPrefix string
}

// uploadTimeout bounds a single archival upload.
const uploadTimeout = time.Minute

// Hook adapts a backend to the sink's rotation callback. Archival is
// best-effort: a failed upload is logged and the rotated file stays on disk
// until retention deletes it.
func Hook(b Backend) func(channel, path string) {
	return func(channel, path string) {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()

		if err := b.Store(ctx, channel, path); err != nil {
			log.Printf("Failed to archive %s: %v", path, err)
		}
	}
}
