package session

import "github.com/stemsi/exstem-player/internal/model"

// State is the read-only view the presentation layer renders. Maps are
// copies; mutating them does not touch the session.
type State struct {
	Status       Status            `json:"status"`
	SaveStatus   SaveStatus        `json:"save_status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	AttemptID    string            `json:"attempt_id"`
	TimeLeft     int               `json:"time_left"`
	Warnings     int               `json:"warnings"`
	Current      int               `json:"current"`
	Answers      map[string]string `json:"answers"`
	Marked       map[string]bool   `json:"marked"`
	Visited      map[string]bool   `json:"visited"`

	QuestionCount   int     `json:"question_count"`
	AnsweredCount   int     `json:"answered_count"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Snapshot returns the current read model.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Status:       s.status,
		SaveStatus:   s.saver.Status(),
		ErrorMessage: s.errMsg,
		AttemptID:    s.attemptID,
		TimeLeft:     s.timeLeft,
		Warnings:     s.warnings,
		Current:      s.current,
		Answers:      make(map[string]string, len(s.answers)),
		Marked:       make(map[string]bool, len(s.marked)),
		Visited:      make(map[string]bool, len(s.visited)),
	}
	for k, v := range s.answers {
		st.Answers[k] = v
	}
	for k := range s.marked {
		st.Marked[k] = true
	}
	for k := range s.visited {
		st.Visited[k] = true
	}

	if s.exam != nil {
		st.QuestionCount = len(s.exam.Questions)
	}
	st.AnsweredCount = len(st.Answers)
	if st.QuestionCount > 0 {
		st.ProgressPercent = float64(st.AnsweredCount) / float64(st.QuestionCount) * 100
	}
	return st
}

// Paper returns the loaded exam, nil before initialization completes.
// The exam is immutable for the session; callers must not modify it.
func (s *Session) Paper() *model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

// Sections returns the distinct palette section labels in paper order.
func (s *Session) Sections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exam == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for i := range s.exam.Questions {
		label := s.exam.Questions[i].Section()
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}
