package session

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/starford/jobpilot/internal/store"
)

// Acquirer obtains a live media stream for a capture source.
type Acquirer interface {
	Acquire(ctx context.Context, sourceID string) (Stream, error)
}

// Stream is an acquired capture stream. Stop ends it and returns what was
// recorded.
type Stream interface {
	Stop(ctx context.Context) ([]byte, error)
}

// VideoStore persists finished recordings.
type VideoStore interface {
	SaveVideo(ctx context.Context, v store.NewVideo) (string, error)
	SaveTranscript(ctx context.Context, t store.NewTranscript) (string, error)
}
