// Package api is the player's client for the exam backend HTTP contract.
// The server is authoritative for all attempt state; this package only
// moves snapshots across the wire and collapses failures into
// human-readable messages.
package api

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/validator"
)

// Client talks to the exam backend. Safe for concurrent use; the
// session, saver and connectivity probe all share one instance.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// New builds a Client from configuration. The bearer token may be empty
// at construction and supplied later via SetToken (login flow).
func New(cfg *config.Config, log zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(cfg.APITimeout).
		SetHeader("Accept", "application/json")

	if cfg.APIToken != "" {
		http.SetAuthToken(cfg.APIToken)
	}

	return &Client{
		http: http,
		log:  log.With().Str("component", "api_client").Logger(),
	}
}

// SetToken attaches the bearer token to all subsequent requests.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Login exchanges credentials for a bearer token and attaches it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out model.LoginResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(model.LoginRequest{Email: email, Password: password}).
		SetResult(&out).
		Post("/auth/login")
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.IsError() {
		return "", errorFrom(resp)
	}
	if err := validator.Check(&out); err != nil {
		return "", fmt.Errorf("login response: %w", err)
	}

	c.SetToken(out.Token)
	return out.Token, nil
}

// GetExam fetches the full exam paper, questions in display order.
func (c *Client) GetExam(ctx context.Context, examID string) (*model.Exam, error) {
	var exam model.Exam

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&exam).
		Get("/exams/" + examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}
	if err := validator.Check(&exam); err != nil {
		return nil, fmt.Errorf("exam payload: %w", err)
	}

	// The server orders questions, but the player depends on it, so
	// enforce it here rather than trusting the wire.
	sort.SliceStable(exam.Questions, func(i, j int) bool {
		return exam.Questions[i].OrderNumber < exam.Questions[j].OrderNumber
	})

	return &exam, nil
}

// StartAttempt starts or resumes the student's attempt for an exam.
// Resuming returns the existing attempt with answers, warning count and
// server-computed remaining time.
func (c *Client) StartAttempt(ctx context.Context, examID, fingerprint string) (*model.Attempt, error) {
	var attempt model.Attempt

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(model.StartAttemptRequest{ExamID: examID, DeviceFingerprint: fingerprint}).
		SetResult(&attempt).
		Post("/attempts/start")
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}
	if err := validator.Check(&attempt); err != nil {
		return nil, fmt.Errorf("attempt payload: %w", err)
	}

	return &attempt, nil
}

// SaveProgress pushes a full progress snapshot. 2xx is the only success
// signal; the body is not inspected.
func (c *Client) SaveProgress(ctx context.Context, req *model.ProgressRequest) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/progress")
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if resp.IsError() {
		return errorFrom(resp)
	}
	return nil
}

// SubmitAttempt finalizes the attempt. The server recomputes time and
// score; reason is recorded verbatim for forced submissions.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID, reason string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(model.SubmitRequest{AttemptID: attemptID, Reason: reason}).
		Post("/attempts/submit")
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	if resp.IsError() {
		return errorFrom(resp)
	}
	return nil
}

// Ping performs a cheap reachability check against the backend. Used by
// the connectivity probe; any transport error means offline.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.http.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	// Any HTTP response at all proves the network path is up.
	return nil
}
