package session

import "context"

// Submission protocol: active --(submit)--> submitting --(success)-->
// done, or --(failure)--> active. done is terminal. The submitting
// guard makes double invocation a no-op rather than a queued second
// submission; forced and user-initiated submissions share the same
// path, forced ones just skip the presentation layer's confirmation.

// Submit finalizes the attempt: cancels the pending debounce, flushes a
// final snapshot, sends the submit request, releases the screen and
// fires the completion callback. On failure the session returns to
// active with the error surfaced, and a later Submit retries normally.
func (s *Session) Submit(reason string) error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.beginSubmitLocked()
	s.mu.Unlock()

	return s.finishSubmit(reason)
}

// beginSubmitLocked transitions to submitting and cancels the debounce
// timer so no autosave races the final flush. Caller holds mu and has
// verified status is active.
func (s *Session) beginSubmitLocked() {
	s.status = StatusSubmitting
	s.errMsg = ""
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// finishSubmit runs the protocol body after the submitting transition.
func (s *Session) finishSubmit(reason string) error {
	s.mu.Lock()
	snap := s.progressLocked()
	attemptID := s.attemptID
	s.mu.Unlock()

	ctx := context.Background()

	// Final flush. The submit itself still proceeds on failure — the
	// server has every earlier snapshot and recomputes the result.
	if err := s.saver.SaveNow(ctx, snap); err != nil {
		s.log.Warn().Err(err).Msg("Final snapshot flush failed")
	}

	if err := s.apiC.SubmitAttempt(ctx, attemptID, reason); err != nil {
		s.mu.Lock()
		// Roll back only a still-submitting session: Stop may have
		// finalized it while the request was in flight.
		if s.status == StatusSubmitting {
			s.status = StatusActive
			s.errMsg = "Submission failed. Please check connection."
		}
		s.mu.Unlock()

		s.log.Error().Err(err).Str("attempt_id", attemptID).Msg("Submission failed, session back to active")
		return err
	}

	s.mu.Lock()
	s.status = StatusDone
	cancel := s.cancelRun
	s.cancelRun = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.mon.Disable()
	s.screen.Release()

	s.log.Info().
		Str("attempt_id", attemptID).
		Str("reason", reason).
		Msg("Attempt submitted")

	s.complete()
	return nil
}
