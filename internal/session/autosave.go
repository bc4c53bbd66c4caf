package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-player/internal/model"
)

// SaveStatus is the persistence indicator surfaced to the presentation
// layer. It tracks the autosave channel, not the session status.
type SaveStatus string

const (
	SaveStatusSaved  SaveStatus = "saved"
	SaveStatusSaving SaveStatus = "saving"
	SaveStatusError  SaveStatus = "error"
)

// ProgressWriter is the slice of the backend the saver needs.
type ProgressWriter interface {
	SaveProgress(ctx context.Context, req *model.ProgressRequest) error
}

// Saver pushes full progress snapshots to the backend without blocking
// the session. Sends are not serialized: payloads are idempotent
// snapshots, so last-write-wins is acceptable and a save arriving while
// another is in flight just goes out too.
type Saver struct {
	mu     sync.Mutex
	api    ProgressWriter
	grace  time.Duration
	status SaveStatus
	log    zerolog.Logger
}

// NewSaver creates a Saver. grace is how long a send may run before the
// status flips to "saving" — fast saves complete without any visible
// indicator flicker.
func NewSaver(api ProgressWriter, grace time.Duration, log zerolog.Logger) *Saver {
	return &Saver{
		api:    api,
		grace:  grace,
		status: SaveStatusSaved,
		log:    log.With().Str("component", "saver").Logger(),
	}
}

// Status returns the current save indicator.
func (s *Saver) Status() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Save sends a snapshot asynchronously, fire-and-forget. Failures show
// up only through Status; the next scheduled save is the retry.
func (s *Saver) Save(req *model.ProgressRequest) {
	go func() {
		if err := s.send(context.Background(), req); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", req.AttemptID).Msg("Autosave failed")
		}
	}()
}

// SaveNow sends a snapshot synchronously. Used for the final flush
// before submission.
func (s *Saver) SaveNow(ctx context.Context, req *model.ProgressRequest) error {
	return s.send(ctx, req)
}

func (s *Saver) send(ctx context.Context, req *model.ProgressRequest) error {
	var finMu sync.Mutex
	finished := false

	// Only show "saving" if the request outlives the grace window.
	grace := time.AfterFunc(s.grace, func() {
		finMu.Lock()
		defer finMu.Unlock()
		if !finished {
			s.setStatus(SaveStatusSaving)
		}
	})

	err := s.api.SaveProgress(ctx, req)

	finMu.Lock()
	finished = true
	finMu.Unlock()
	grace.Stop()

	if err != nil {
		s.setStatus(SaveStatusError)
		return err
	}

	// A success always clears a prior error.
	s.setStatus(SaveStatusSaved)
	return nil
}

func (s *Saver) setStatus(st SaveStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}
