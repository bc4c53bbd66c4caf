package model

import "time"

// Attempt is the server-assigned unit of resumable exam state. The
// server is authoritative for every field here; the player hydrates
// from it on start/resume and never invents values of its own.
type Attempt struct {
	ID        string `json:"id" validate:"required"`
	ExamID    string `json:"exam_id"`
	StudentID string `json:"student_id"`

	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`

	Score       int  `json:"score"`
	TotalPoints int  `json:"total_points"`
	Passed      bool `json:"passed"`

	IsTerminated      bool   `json:"is_terminated"`
	TerminationReason string `json:"termination_reason"`

	TabSwitches int               `json:"tab_switches"`
	Answers     map[string]string `json:"answers"`

	TimeLeftSeconds int `json:"time_left"`
}

// Closed reports whether the attempt can accept no further mutation.
func (a *Attempt) Closed() bool {
	return a.SubmittedAt != nil || a.IsTerminated
}

// StartAttemptRequest is the payload for POST /attempts/start.
type StartAttemptRequest struct {
	ExamID            string `json:"exam_id"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// ProgressRequest is the payload for POST /progress. Answers is always
// a full snapshot, never a delta, which keeps saves idempotent under
// out-of-order delivery.
type ProgressRequest struct {
	AttemptID   string            `json:"attempt_id"`
	TabSwitches int               `json:"tab_switches"`
	Answers     map[string]string `json:"answers"`
	Snapshot    string            `json:"snapshot"`
}

// SubmitRequest is the payload for POST /attempts/submit.
type SubmitRequest struct {
	AttemptID string `json:"attempt_id"`
	Reason    string `json:"reason,omitempty"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	Token string `json:"token" validate:"required"`
}
