package guard

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// browserCandidates per platform, probed in order when no explicit
// path is configured.
var browserCandidates = map[string][]string{
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	"linux": {
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
	},
}

// kioskArgs strips every escape hatch the browser offers: no session
// restore, no first-run UI, no fullscreen-exit affordance.
func kioskArgs(url string) []string {
	return []string{
		"--app=" + url, // must be first
		"--kiosk",
		"--incognito",
		"--no-first-run",
		"--disable-infobars",
		"--disable-session-crashed-bubble",
		"--disable-features=FullscreenToolbar,FullscreenExitUI,ExclusiveAccessBubbleUseShorterDelay",
		"--hide-scrollbars",
		"--overscroll-history-navigation=0",
		"--disable-background-networking",
		"--disable-translate",
		"--disable-sync",
		"--disable-popup-blocking",
	}
}

// Kiosk launches the exam page in a locked-down browser window and
// implements session.Screen: Acquire starts the browser, Release
// closes it. Both are best-effort; a machine without a known browser
// still runs the exam through whatever shell the operator provides.
type Kiosk struct {
	mu sync.Mutex

	browserPath string
	pageURL     string
	log         zerolog.Logger

	cmd *exec.Cmd
}

// NewKiosk creates a Kiosk. browserPath may be empty, in which case
// well-known install locations are probed at Acquire time.
func NewKiosk(browserPath, pageURL string, log zerolog.Logger) *Kiosk {
	return &Kiosk{
		browserPath: browserPath,
		pageURL:     pageURL,
		log:         log.With().Str("component", "kiosk").Logger(),
	}
}

// Acquire starts the kiosk browser on the exam page. Idempotent while
// the browser is running.
func (k *Kiosk) Acquire() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cmd != nil {
		return nil
	}

	path := k.browserPath
	if path == "" {
		path = findBrowser()
	}
	if path == "" {
		return fmt.Errorf("no kiosk-capable browser found for %s", runtime.GOOS)
	}

	cmd := exec.Command(path, kioskArgs(k.pageURL)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start kiosk browser: %w", err)
	}
	k.cmd = cmd

	k.log.Info().
		Str("browser", path).
		Int("pid", cmd.Process.Pid).
		Msg("Kiosk browser started")

	// Reap the process so Release after a crash doesn't signal a zombie.
	go func() {
		_ = cmd.Wait()
		k.mu.Lock()
		if k.cmd == cmd {
			k.cmd = nil
		}
		k.mu.Unlock()
	}()

	return nil
}

// Release closes the kiosk browser if it is still running.
func (k *Kiosk) Release() {
	k.mu.Lock()
	cmd := k.cmd
	k.cmd = nil
	k.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		k.log.Warn().Err(err).Msg("Failed to close kiosk browser")
		return
	}
	k.log.Info().Msg("Kiosk browser closed")
}

func findBrowser() string {
	for _, p := range browserCandidates[runtime.GOOS] {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// Last resort: whatever the PATH calls chrome.
	for _, name := range []string{"google-chrome", "chromium", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
