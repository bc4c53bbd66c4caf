package guard

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/monitor"
	"github.com/stemsi/exstem-player/internal/session"
)

// fakeSession records the intents the control channel forwards.
type fakeSession struct {
	mu sync.Mutex

	calls     []string
	submitErr error
	paper     *model.Exam
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeSession) SelectOption(qID, opt string) { f.record("select:" + qID + ":" + opt) }
func (f *fakeSession) SetAnswer(qID, value string)  { f.record("set:" + qID + ":" + value) }
func (f *fakeSession) ClearAnswer(qID string)       { f.record("clear:" + qID) }
func (f *fakeSession) Goto(idx int)                 { f.record("goto") }
func (f *fakeSession) Next()                        { f.record("next") }
func (f *fakeSession) Prev()                        { f.record("prev") }
func (f *fakeSession) ToggleMark(qID string)        { f.record("mark:" + qID) }
func (f *fakeSession) Submit(reason string) error   { f.record("submit"); return f.submitErr }
func (f *fakeSession) Snapshot() session.State {
	return session.State{Status: session.StatusActive, TimeLeft: 42}
}
func (f *fakeSession) Paper() *model.Exam { return f.paper }

func newTestServer(t *testing.T, sess *fakeSession, origins []string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{AllowedOrigins: origins}
	srv := NewServer(cfg, sess, monitor.NewShellFeed(), nil, zerolog.Nop(), nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one matches the wanted event.
func readUntil(t *testing.T, conn *websocket.Conn, want Event) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var frame map[string]interface{}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame["event"] == string(want) {
			return frame
		}
	}
	t.Fatalf("no %s frame received", want)
	return nil
}

func TestCheckEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, nil)

	resp, err := http.Get(ts.URL + "/check")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScanWithoutLockdown(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, nil)

	resp, err := http.Post(ts.URL+"/scan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPaperEndpoint(t *testing.T) {
	sess := &fakeSession{}
	ts := newTestServer(t, sess, nil)

	// Before load: unavailable.
	resp, err := http.Get(ts.URL + "/paper")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	sess.paper = &model.Exam{ID: "ex-1", Title: "Midterm"}
	resp, err = http.Get(ts.URL + "/paper")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamSendsInitialState(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, nil)
	conn := dial(t, ts)

	frame := readUntil(t, conn, EventState)
	state := frame["state"].(map[string]interface{})
	assert.Equal(t, float64(42), state["time_left"])
}

func TestStreamDispatchesIntents(t *testing.T) {
	sess := &fakeSession{}
	ts := newTestServer(t, sess, nil)
	conn := dial(t, ts)
	readUntil(t, conn, EventState)

	intents := []RequestEnvelope{
		{Action: ActionSelectOption, QID: "q1", Option: "B"},
		{Action: ActionSetAnswer, QID: "q3", Value: "essay text"},
		{Action: ActionClearAnswer, QID: "q1"},
		{Action: ActionNext},
		{Action: ActionToggleMark, QID: "q2"},
		{Action: ActionSubmit},
	}
	for _, in := range intents {
		require.NoError(t, conn.WriteJSON(in))
	}
	// The read loop is sequential, so a pong means every intent above
	// has been dispatched.
	require.NoError(t, conn.WriteJSON(RequestEnvelope{Action: ActionPing}))
	readUntil(t, conn, EventPong)

	assert.Equal(t, []string{
		"select:q1:B", "set:q3:essay text", "clear:q1",
		"next", "mark:q2", "submit",
	}, sess.recorded())
}

func TestStreamSubmitErrorSurfaced(t *testing.T) {
	sess := &fakeSession{submitErr: errors.New("session is not active")}
	ts := newTestServer(t, sess, nil)
	conn := dial(t, ts)
	readUntil(t, conn, EventState)

	require.NoError(t, conn.WriteJSON(RequestEnvelope{Action: ActionSubmit}))
	frame := readUntil(t, conn, EventError)
	assert.Equal(t, "session is not active", frame["error"])
}

func TestStreamPingPong(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, nil)
	conn := dial(t, ts)
	readUntil(t, conn, EventState)

	require.NoError(t, conn.WriteJSON(RequestEnvelope{Action: ActionPing}))
	readUntil(t, conn, EventPong)
}

func TestStreamUnknownAction(t *testing.T) {
	ts := newTestServer(t, &fakeSession{}, nil)
	conn := dial(t, ts)
	readUntil(t, conn, EventState)

	require.NoError(t, conn.WriteJSON(RequestEnvelope{Action: "reboot"}))
	frame := readUntil(t, conn, EventError)
	assert.Equal(t, "unknown action", frame["error"])
}

func TestUpgraderOriginValidation(t *testing.T) {
	up := buildUpgrader([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, up.CheckOrigin(req))

	// Empty allowlist permits everything.
	open := buildUpgrader(nil)
	assert.True(t, open.CheckOrigin(req))
}
