// Package guard runs the local control channel between the kiosk page
// and the player: a localhost HTTP server for environment checks plus
// a WebSocket stream carrying presentation intents and proctoring
// signals one way and session state the other.
package guard

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/model"
	"github.com/stemsi/exstem-player/internal/monitor"
	"github.com/stemsi/exstem-player/internal/session"
)

// statePushInterval is how often the open stream re-sends the session
// state unprompted, so the page countdown tracks the player clock.
const statePushInterval = time.Second

// SessionControl is the slice of the session the control channel
// drives. Satisfied by *session.Session.
type SessionControl interface {
	SelectOption(qID, opt string)
	SetAnswer(qID, value string)
	ClearAnswer(qID string)
	Goto(idx int)
	Next()
	Prev()
	ToggleMark(qID string)
	Submit(reason string) error
	Snapshot() session.State
	Paper() *model.Exam
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Server is the guard control server. It owns no session state; every
// intent is forwarded to the SessionControl and every raw signal to
// the shell feed.
type Server struct {
	cfg      *config.Config
	sess     SessionControl
	feed     *monitor.ShellFeed
	lockdown *Lockdown
	log      zerolog.Logger
	upgrader websocket.Upgrader

	// onExit is invoked when the page requests player shutdown.
	onExit func()
}

// NewServer creates a guard Server. lockdown may be nil when the
// process allowlist sweep is disabled; onExit may be nil.
func NewServer(cfg *config.Config, sess SessionControl, feed *monitor.ShellFeed, lockdown *Lockdown, log zerolog.Logger, onExit func()) *Server {
	return &Server{
		cfg:      cfg,
		sess:     sess,
		feed:     feed,
		lockdown: lockdown,
		log:      log.With().Str("component", "guard").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
		onExit:   onExit,
	}
}

// Router builds the Gin engine with all guard routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.GET("/check", s.handleCheck)
	router.POST("/scan", s.handleScan)
	router.POST("/exit", s.handleExit)
	router.GET("/paper", s.handlePaper)
	router.GET("/session", s.handleStream)

	return router
}

// Run serves the control channel until ctx is canceled, then shuts
// down gracefully. Call in a goroutine.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.GuardListenAddr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.cfg.GuardListenAddr).Msg("Guard control server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleCheck lets the page verify the player is present before it
// allows the exam to start.
func (s *Server) handleCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active": true})
}

// handleScan triggers one lockdown sweep on demand.
func (s *Server) handleScan(c *gin.Context) {
	if s.lockdown == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lockdown disabled"})
		return
	}
	c.JSON(http.StatusOK, s.lockdown.Sweep())
}

// handleExit acknowledges, then asks the player to shut down.
func (s *Server) handleExit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"closing": true})
	if s.onExit != nil {
		go s.onExit()
	}
}

// handlePaper serves the loaded exam so the page never needs backend
// credentials of its own.
func (s *Server) handlePaper(c *gin.Context) {
	paper := s.sess.Paper()
	if paper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "exam not loaded"})
		return
	}
	c.JSON(http.StatusOK, paper)
}

// connWriter serializes writes to one WebSocket connection; the read
// loop and the periodic state pusher both send on it.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) send(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriteTyped(w.conn, v)
}

func (w *connWriter) sendError(msg string) error {
	return w.send(ErrorResponse{Event: EventError, Error: msg})
}

// handleStream upgrades to WebSocket and runs the session stream:
// intents and signals in, state out.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	w := &connWriter{conn: conn}
	streamLog := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	streamLog.Info().Msg("Page connected")

	// Initial state so the page can render without a round trip.
	if err := w.send(StateResponse{Event: EventState, State: s.sess.Snapshot()}); err != nil {
		return
	}

	pushCtx, stopPush := context.WithCancel(c.Request.Context())
	defer stopPush()
	go s.pushStates(pushCtx, w)

	for {
		var msg RequestEnvelope
		if err := ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				streamLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				streamLog.Debug().Msg("Connection closed")
			}
			return
		}
		s.dispatch(w, &msg, streamLog)
	}
}

// pushStates re-sends the session state every interval until the
// stream closes.
func (s *Server) pushStates(ctx context.Context, w *connWriter) {
	t := time.NewTicker(statePushInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.send(StateResponse{Event: EventState, State: s.sess.Snapshot()}); err != nil {
				return
			}
		}
	}
}

// dispatch applies one page message. Every applied intent is answered
// with a fresh state push so the page renders the outcome immediately.
func (s *Server) dispatch(w *connWriter, msg *RequestEnvelope, log zerolog.Logger) {
	switch msg.Action {
	case ActionPing:
		_ = w.send(PongResponse{Event: EventPong})
		return

	case ActionSignal:
		s.feed.Signal(monitor.ShellEvent(msg.Signal))

	case ActionSelectOption:
		s.sess.SelectOption(msg.QID, msg.Option)
	case ActionSetAnswer:
		s.sess.SetAnswer(msg.QID, msg.Value)
	case ActionClearAnswer:
		s.sess.ClearAnswer(msg.QID)
	case ActionGoto:
		s.sess.Goto(msg.Index)
	case ActionNext:
		s.sess.Next()
	case ActionPrev:
		s.sess.Prev()
	case ActionToggleMark:
		s.sess.ToggleMark(msg.QID)

	case ActionSubmit:
		if err := s.sess.Submit(""); err != nil {
			log.Warn().Err(err).Msg("Submit intent failed")
			_ = w.sendError(err.Error())
		}

	default:
		_ = w.sendError("unknown action")
		return
	}

	_ = w.send(StateResponse{Event: EventState, State: s.sess.Snapshot()})
}
