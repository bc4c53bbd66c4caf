package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/stemsi/exstem-player/internal/api"
	"github.com/stemsi/exstem-player/internal/auth"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/guard"
	"github.com/stemsi/exstem-player/internal/logger"
	"github.com/stemsi/exstem-player/internal/monitor"
	"github.com/stemsi/exstem-player/internal/session"
	"github.com/stemsi/exstem-player/internal/validator"
)

func main() {
	examID := flag.String("exam", os.Getenv("EXAM_ID"), "ID of the exam to run")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("api", cfg.APIBaseURL).
		Str("guard_addr", cfg.GuardListenAddr).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Player")

	if *examID == "" {
		log.Fatal().Msg("No exam ID given (use -exam or EXAM_ID)")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Backend Client & Credentials ──────────────────────────────────
	apiClient := api.New(cfg, log)

	token := cfg.APIToken
	if token == "" {
		var err error
		token, err = promptLogin(apiClient)
		if err != nil {
			log.Fatal().Err(err).Msg("Login failed")
		}
	}

	info, err := auth.Inspect(token)
	if err != nil {
		log.Fatal().Err(err).Msg("Token rejected")
	}
	apiClient.SetToken(token)
	authEvent := log.Info().Str("subject", info.Subject)
	if info.ExpiresAt != nil {
		authEvent = authEvent.Time("expires_at", *info.ExpiresAt)
	}
	authEvent.Msg("Authenticated")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Violation Monitor ─────────────────────────────────────────────
	feed := monitor.NewShellFeed()
	sources := []monitor.Source{feed}
	if cfg.StallProbeEnabled {
		sources = append(sources, monitor.NewStallProbe(cfg.StallProbeInterval, cfg.StallThreshold))
	}
	if cfg.ConnectivityInterval > 0 {
		sources = append(sources, monitor.NewConnectivityProbe(apiClient, cfg.ConnectivityInterval))
	}
	mon := monitor.New(log, sources...)

	// ─── Kiosk Screen ──────────────────────────────────────────────────
	var screen session.Screen = session.NopScreen{}
	if cfg.KioskEnabled {
		screen = guard.NewKiosk(cfg.BrowserPath, cfg.ExamPageURL, log)
	}

	// ─── Session ───────────────────────────────────────────────────────
	done := make(chan struct{})
	sess := session.New(*examID, apiClient, screen, mon, session.Config{
		MaxWarnings:      cfg.MaxWarnings,
		SnapshotInterval: cfg.SnapshotInterval,
		AutosaveDebounce: cfg.AutosaveDebounce,
		SavingGrace:      cfg.SavingGrace,
	}, log, func() { close(done) })

	// ─── Lockdown Sweeps ───────────────────────────────────────────────
	var lockdown *guard.Lockdown
	if cfg.LockdownEnabled {
		lockdown = guard.NewLockdown(cfg.AllowedApps, cfg.LockdownInterval, log)
		go lockdown.Start(ctx)
	}

	// ─── Guard Control Server ──────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := guard.NewServer(cfg, sess, feed, lockdown, log, func() {
		quit <- syscall.SIGTERM
	})
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("Guard server error")
		}
	}()

	// ─── Start the Attempt ─────────────────────────────────────────────
	if err := sess.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start exam session")
	}

	if paper := sess.Paper(); paper != nil && paper.EndTime != nil && info.ExpiresBefore(*paper.EndTime) {
		log.Warn().
			Time("token_expires", *info.ExpiresAt).
			Time("exam_ends", *paper.EndTime).
			Msg("Token expires before the exam window closes")
	}

	// ─── Wait for Completion or Signal ─────────────────────────────────
	select {
	case <-done:
		log.Info().Msg("Attempt finished")
		// Leave the guard server up briefly so the page can render the
		// final state before the player goes away.
		time.Sleep(2 * time.Second)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	}

	sess.Stop()
	cancel()
	log.Info().Msg("Player exited")
}

// promptLogin asks for credentials on the terminal and exchanges them
// for a token.
func promptLogin(apiClient *api.Client) (string, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== ExStem Player Login ===")

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Println() // Newline after password input

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return apiClient.Login(ctx, email, string(bytePassword))
}
