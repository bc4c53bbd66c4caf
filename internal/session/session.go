// Package session owns the exam attempt lifecycle: answer capture,
// countdown, autosave scheduling, violation escalation and submission.
// One Session is one attempt; everything else in the player either
// feeds it (monitor, guard signals) or reads it (presentation).
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-player/internal/answerset"
	"github.com/stemsi/exstem-player/internal/api"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/monitor"
)

// Status enumerates session lifecycle states. Transitions are
// one-directional except submitting → active on submission failure.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// ErrNotActive is returned for intents that require an active session.
var ErrNotActive = errors.New("session is not active")

// Backend is the exam server contract the session consumes. Satisfied
// by api.Client.
type Backend interface {
	GetExam(ctx context.Context, examID string) (*model.Exam, error)
	StartAttempt(ctx context.Context, examID, fingerprint string) (*model.Attempt, error)
	SaveProgress(ctx context.Context, req *model.ProgressRequest) error
	SubmitAttempt(ctx context.Context, attemptID, reason string) error
}

// Screen controls the guarded display surface (kiosk browser). Both
// calls are best-effort: acquisition failure never blocks the exam.
type Screen interface {
	Acquire() error
	Release()
}

// NopScreen is a Screen that does nothing. Used when the player runs
// without a kiosk shell.
type NopScreen struct{}

func (NopScreen) Acquire() error { return nil }
func (NopScreen) Release()       {}

// MonitorControl is the violation monitor lifecycle the session drives.
type MonitorControl interface {
	Enable(monitor.Handler)
	Disable()
}

// Config carries session timing policy.
type Config struct {
	MaxWarnings      int
	SnapshotInterval time.Duration
	AutosaveDebounce time.Duration
	SavingGrace      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxWarnings <= 0 {
		c.MaxWarnings = 3
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 30 * time.Second
	}
	if c.AutosaveDebounce <= 0 {
		c.AutosaveDebounce = time.Second
	}
	if c.SavingGrace <= 0 {
		c.SavingGrace = time.Second
	}
	return c
}

// Session is the attempt state machine. All state behind mu; the
// countdown ticker, snapshot ticker, monitor callbacks and intent
// methods may fire on any goroutine, so every transition — including
// the warnings increment-then-threshold check — happens inside one
// critical section.
type Session struct {
	mu sync.Mutex

	cfg    Config
	apiC   Backend
	screen Screen
	mon    MonitorControl
	saver  *Saver
	log    zerolog.Logger

	examID      string
	fingerprint string
	onComplete  func()

	exam     *model.Exam
	byID     map[string]*model.Question
	answers  map[string]string
	visited  map[string]bool
	marked   map[string]bool
	current  int

	attemptID string
	timeLeft  int
	warnings  int
	status    Status
	errMsg    string

	debounce  *time.Timer
	cancelRun context.CancelFunc
}

// New creates a Session in the loading state. onComplete fires once,
// after the attempt reaches a terminal state (fresh submission or a
// resume of an already-closed attempt); it may be nil.
func New(examID string, backend Backend, screen Screen, mon MonitorControl, cfg Config, log zerolog.Logger, onComplete func()) *Session {
	cfg = cfg.withDefaults()
	if screen == nil {
		screen = NopScreen{}
	}

	return &Session{
		cfg:         cfg,
		apiC:        backend,
		screen:      screen,
		mon:         mon,
		saver:       NewSaver(backend, cfg.SavingGrace, log),
		log:         log.With().Str("component", "session").Logger(),
		examID:      examID,
		fingerprint: uuid.New().String(),
		onComplete:  onComplete,
		answers:     make(map[string]string),
		visited:     make(map[string]bool),
		marked:      make(map[string]bool),
		byID:        make(map[string]*model.Question),
		status:      StatusLoading,
	}
}

// Start loads the exam paper, starts or resumes the attempt and, when
// the attempt is still open, enters the active state: countdown and
// periodic snapshots running, violation monitor armed, screen acquired
// best-effort. Initialization failure is fatal to the session.
func (s *Session) Start(ctx context.Context) error {
	exam, err := s.apiC.GetExam(ctx, s.examID)
	if err != nil {
		s.fail(err)
		return err
	}

	attempt, err := s.apiC.StartAttempt(ctx, s.examID, s.fingerprint)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.exam = exam
	for i := range exam.Questions {
		q := &exam.Questions[i]
		s.byID[q.ID] = q
	}

	// Server values always win over client defaults.
	for qid, val := range attempt.Answers {
		q, known := s.byID[qid]
		if !known || val == "" {
			continue
		}
		if q.Type.MultiValued() {
			val = answerset.Canonical(val)
		}
		s.answers[qid] = val
	}
	s.attemptID = attempt.ID
	s.timeLeft = attempt.TimeLeftSeconds
	s.warnings = attempt.TabSwitches

	if len(exam.Questions) > 0 {
		s.visited[exam.Questions[0].ID] = true
	}

	if attempt.Closed() {
		// Resumed attempt is already finished: complete without ever
		// entering active. No timer, no autosave, no monitor.
		s.status = StatusDone
		s.mu.Unlock()
		s.log.Info().Str("attempt_id", attempt.ID).Msg("Attempt already closed, completing")
		s.complete()
		return nil
	}
	s.mu.Unlock()

	if err := s.screen.Acquire(); err != nil {
		// Denied fullscreen/kiosk is not fatal.
		s.log.Warn().Err(err).Msg("Screen acquisition failed, continuing unguarded")
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.status = StatusActive
	s.cancelRun = cancel
	s.mu.Unlock()

	go s.run(runCtx)
	s.mon.Enable(s.ReportViolation)

	s.log.Info().
		Str("attempt_id", attempt.ID).
		Int("time_left", attempt.TimeLeftSeconds).
		Int("warnings", attempt.TabSwitches).
		Msg("Session active")
	return nil
}

// Stop tears the session down without submitting: tickers stopped,
// monitor disabled, screen released. Used on external cancellation
// (player shutdown); a finalized session is unaffected. An unfinished
// session is moved to done in the same critical section, so intents
// still draining out of the guard stream can no longer mutate answers
// or re-arm the debounce against the torn-down session.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.status != StatusDone && s.status != StatusError {
		s.status = StatusDone
	}
	cancel := s.cancelRun
	s.cancelRun = nil
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.mon.Disable()
	s.screen.Release()
}

// run drives the two independent interval processes. Both re-check
// status under lock, so neither acts outside active.
func (s *Session) run(ctx context.Context) {
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()
	snapshots := time.NewTicker(s.cfg.SnapshotInterval)
	defer snapshots.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-countdown.C:
			s.tick()
		case <-snapshots.C:
			s.periodicSave()
		}
	}
}

// tick advances the countdown by one second. Never runs the clock
// outside active; hitting zero begins forced submission.
func (s *Session) tick() {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	if s.timeLeft > 0 {
		s.mu.Unlock()
		return
	}
	s.beginSubmitLocked()
	s.mu.Unlock()

	s.log.Warn().Msg("Time exhausted, forcing submission")
	go func() { _ = s.finishSubmit("Time Limit") }()
}

// SelectOption applies an option click to a question: single-valued
// types replace the stored answer, multi-select toggles membership and
// re-canonicalizes. Schedules a debounced autosave.
func (s *Session) SelectOption(qID, opt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return
	}
	q, ok := s.byID[qID]
	if !ok {
		return
	}

	newVal := answerset.Apply(q.Type, s.answers[qID], opt)
	if newVal == "" {
		delete(s.answers, qID)
	} else {
		s.answers[qID] = newVal
	}
	s.visited[qID] = true
	s.scheduleAutosaveLocked()
}

// SetAnswer stores a free-form answer (descriptive questions). The
// value replaces whatever was stored; empty clears.
func (s *Session) SetAnswer(qID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return
	}
	q, ok := s.byID[qID]
	if !ok {
		return
	}

	if q.Type.MultiValued() {
		value = answerset.Canonical(value)
	}
	if value == "" {
		delete(s.answers, qID)
	} else {
		s.answers[qID] = value
	}
	s.visited[qID] = true
	s.scheduleAutosaveLocked()
}

// ClearAnswer removes the stored answer and saves immediately.
func (s *Session) ClearAnswer(qID string) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	if _, ok := s.byID[qID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.answers, qID)
	snap := s.progressLocked()
	s.mu.Unlock()

	s.saver.Save(snap)
}

// Goto moves the current-question pointer, clamped to the paper, and
// marks the target visited. Visited state feeds the palette only.
func (s *Session) Goto(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exam == nil || len(s.exam.Questions) == 0 {
		return
	}
	if idx < 0 {
		idx = 0
	}
	if max := len(s.exam.Questions) - 1; idx > max {
		idx = max
	}
	s.current = idx
	s.visited[s.exam.Questions[idx].ID] = true
}

// Next advances to the following question.
func (s *Session) Next() {
	s.mu.Lock()
	idx := s.current + 1
	s.mu.Unlock()
	s.Goto(idx)
}

// Prev moves to the preceding question.
func (s *Session) Prev() {
	s.mu.Lock()
	idx := s.current - 1
	s.mu.Unlock()
	s.Goto(idx)
}

// ToggleMark flips the mark-for-review flag, independent of answers.
func (s *Session) ToggleMark(qID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[qID]; !ok {
		return
	}
	if s.marked[qID] {
		delete(s.marked, qID)
	} else {
		s.marked[qID] = true
	}
}

// ReportViolation is the monitor intake. The increment and the
// threshold check share one critical section: two violations in quick
// succession each see the true running count, so the maximum triggers
// exactly one forced submission.
func (s *Session) ReportViolation(kind monitor.Kind) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}

	s.warnings++
	count := s.warnings
	snap := s.progressLocked()

	force := count >= s.cfg.MaxWarnings
	if force {
		s.beginSubmitLocked()
	}
	s.mu.Unlock()

	s.log.Warn().
		Str("kind", string(kind)).
		Int("warnings", count).
		Msg("Violation recorded")

	// Out-of-band save carrying the new warning count.
	s.saver.Save(snap)

	if force {
		reason := "Violation: " + string(kind)
		go func() { _ = s.finishSubmit(reason) }()
	}
}

// fail moves the session into the terminal error state. Only reachable
// from loading; the caller re-creates the session to retry.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.status = StatusError
	s.errMsg = displayMessage(err, "Failed to load exam.")
	s.mu.Unlock()
	s.log.Error().Err(err).Msg("Session initialization failed")
}

// scheduleAutosaveLocked (re)arms the debounce timer. Caller holds mu.
func (s *Session) scheduleAutosaveLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.cfg.AutosaveDebounce, s.debouncedSave)
}

func (s *Session) debouncedSave() {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	snap := s.progressLocked()
	s.mu.Unlock()

	s.saver.Save(snap)
}

func (s *Session) periodicSave() {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	snap := s.progressLocked()
	s.mu.Unlock()

	s.saver.Save(snap)
}

// progressLocked builds a full snapshot payload. Caller holds mu.
func (s *Session) progressLocked() *model.ProgressRequest {
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return &model.ProgressRequest{
		AttemptID:   s.attemptID,
		TabSwitches: s.warnings,
		Answers:     answers,
	}
}

func (s *Session) complete() {
	if s.onComplete != nil {
		s.onComplete()
	}
}

// displayMessage reduces an error to something the presentation layer
// can show. Backend errors carry their own message; anything else gets
// the fallback.
func displayMessage(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return fallback
}
