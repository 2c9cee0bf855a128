package authtest

import (
	"context"
	"errors"

	"github.com/iliyamo/cms-backend/internal/auth"
	"github.com/iliyamo/cms-backend/internal/queue"
)

// Identity is an IdentityVerifier backed by a token→assertion map.
type Identity map[string]auth.Assertion

func (m Identity) Verify(_ context.Context, idToken string) (auth.Assertion, error) {
	a, ok := m[idToken]
	if !ok {
		return auth.Assertion{}, errors.New("unknown id token")
	}
	return a, nil
}

// Recorder collects published events on a buffered channel.
type Recorder struct {
	C chan queue.AuthEvent
}

func NewRecorder() *Recorder { return &Recorder{C: make(chan queue.AuthEvent, 64)} }

func (r *Recorder) Publish(_ context.Context, ev queue.AuthEvent) error {
	select {
	case r.C <- ev:
	default:
	}
	return nil
}
