package model

import "time"

// QuestionType enumerates the question kinds the player can render.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single-choice"
	QuestionMultiSelect  QuestionType = "multi-select"
	QuestionTrueFalse    QuestionType = "true-false"
	QuestionDescriptive  QuestionType = "descriptive"
)

// MultiValued reports whether answers of this type hold a set of option
// codes rather than a single value.
func (t QuestionType) MultiValued() bool {
	return t == QuestionMultiSelect
}

// Exam is the exam paper as served by the backend. Immutable for the
// lifetime of a session; the player never writes it back.
type Exam struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes" validate:"min=0"`
	PassingScore    int        `json:"passing_score"`
	Subject         string     `json:"subject"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`

	EnableNegativeMarking bool `json:"enable_negative_marking"`

	Questions []Question `json:"questions" validate:"dive"`
}

// Question is a single exam question, correct answers stripped server-side.
type Question struct {
	ID           string       `json:"id" validate:"required"`
	Type         QuestionType `json:"type" validate:"required"`
	Complexity   string       `json:"complexity"`
	Subject      string       `json:"subject"`
	QuestionText string       `json:"question_text"`
	OptionA      string       `json:"option_a"`
	OptionB      string       `json:"option_b"`
	OptionC      string       `json:"option_c"`
	OptionD      string       `json:"option_d"`

	Points         int     `json:"points"`
	NegativePoints float64 `json:"negative_points"`

	OrderNumber int `json:"order_number"`
}

// Section returns the palette grouping label for the question. Falls
// back to "General" when the paper carries no subject labels.
func (q *Question) Section() string {
	if q.Subject != "" {
		return q.Subject
	}
	return "General"
}
