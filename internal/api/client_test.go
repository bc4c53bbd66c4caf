package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		APIBaseURL: srv.URL,
		APIToken:   "test-token",
		APITimeout: 2 * time.Second,
	}
	return New(cfg, zerolog.Nop()), srv
}

func TestGetExamOrdersQuestions(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exams/ex-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Exam{
			ID:    "ex-1",
			Title: "Midterm",
			Questions: []model.Question{
				{ID: "q2", Type: model.QuestionSingleChoice, OrderNumber: 2},
				{ID: "q1", Type: model.QuestionSingleChoice, OrderNumber: 1},
			},
		})
	}))

	exam, err := c.GetExam(context.Background(), "ex-1")
	require.NoError(t, err)
	require.Len(t, exam.Questions, 2)
	assert.Equal(t, "q1", exam.Questions[0].ID)
	assert.Equal(t, "q2", exam.Questions[1].ID)
}

func TestGetExamServerError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Exam not found"})
	}))

	_, err := c.GetExam(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Exam not found", apiErr.Message)
}

func TestGetExamRejectsInvalidPayload(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing required id/title.
		json.NewEncoder(w).Encode(map[string]any{"questions": []any{}})
	}))

	_, err := c.GetExam(context.Background(), "ex-1")
	assert.Error(t, err)
}

func TestStartAttemptResume(t *testing.T) {
	submitted := time.Now().Add(-time.Hour)

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.StartAttemptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ex-1", req.ExamID)
		assert.NotEmpty(t, req.DeviceFingerprint)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Attempt{
			ID:              "at-1",
			ExamID:          "ex-1",
			SubmittedAt:     &submitted,
			TabSwitches:     2,
			Answers:         map[string]string{"q1": "B"},
			TimeLeftSeconds: 0,
		})
	}))

	attempt, err := c.StartAttempt(context.Background(), "ex-1", "fp-abc")
	require.NoError(t, err)
	assert.True(t, attempt.Closed())
	assert.Equal(t, 2, attempt.TabSwitches)
	assert.Equal(t, "B", attempt.Answers["q1"])
}

func TestSaveProgress(t *testing.T) {
	var got model.ProgressRequest

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))

	err := c.SaveProgress(context.Background(), &model.ProgressRequest{
		AttemptID:   "at-1",
		TabSwitches: 1,
		Answers:     map[string]string{"q1": "A,C"},
	})
	require.NoError(t, err)
	assert.Equal(t, "at-1", got.AttemptID)
	assert.Equal(t, 1, got.TabSwitches)
	assert.Equal(t, "A,C", got.Answers["q1"])
}

func TestSubmitAttemptFailureMessage(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "Exam is closed"})
	}))

	err := c.SubmitAttempt(context.Background(), "at-1", "Time Limit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Exam is closed")
}

func TestLoginAttachesToken(t *testing.T) {
	var sawAuth string

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(model.LoginResponse{Token: "fresh-token"})
		case "/progress":
			sawAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}
	}))

	tok, err := c.Login(context.Background(), "s@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok)

	require.NoError(t, c.SaveProgress(context.Background(), &model.ProgressRequest{AttemptID: "at-1"}))
	assert.Equal(t, "Bearer fresh-token", sawAuth)
}

func TestPing(t *testing.T) {
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	// Any HTTP response counts as reachable.
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()))
}
