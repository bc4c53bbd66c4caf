package guard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// baseAllowed are process names that survive every sweep regardless of
// configuration: the player itself, the kiosk browsers it launches and
// the OS shell the machine cannot run without.
var baseAllowed = map[string]bool{
	// Browsers the kiosk may run in.
	"chrome.exe": true, "msedge.exe": true, "firefox.exe": true,
	"brave.exe": true, "opera.exe": true,
	"chrome": true, "chromium": true, "firefox": true,

	// Windows core.
	"system": true, "system idle process": true, "registry": true,
	"smss.exe": true, "csrss.exe": true, "wininit.exe": true,
	"services.exe": true, "lsass.exe": true, "svchost.exe": true,
	"fontdrvhost.exe": true, "winlogon.exe": true, "dwm.exe": true,
	"taskhostw.exe": true, "explorer.exe": true, "sihost.exe": true,
	"ctfmon.exe": true, "runtimebroker.exe": true, "conhost.exe": true,
	"dllhost.exe": true, "audiodg.exe": true,
}

// SweepResult reports the outcome of one allowlist sweep.
type SweepResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	Killed       []string `json:"killed"`
	FailedToKill []string `json:"failed_to_kill"`
}

// Lockdown periodically terminates processes outside the allowlist so
// no messenger or screen-share tool runs beside the exam. Processes
// owned by system accounts and binaries under the OS directory are
// always spared.
type Lockdown struct {
	allowed  map[string]bool
	interval time.Duration
	selfPID  int32
	log      zerolog.Logger
}

// NewLockdown creates a Lockdown. extra is the operator-configured
// allowlist, merged with the built-in one; names match case-insensitively.
func NewLockdown(extra []string, interval time.Duration, log zerolog.Logger) *Lockdown {
	allowed := make(map[string]bool, len(baseAllowed)+len(extra))
	for name := range baseAllowed {
		allowed[name] = true
	}
	for _, name := range extra {
		allowed[strings.ToLower(strings.TrimSpace(name))] = true
	}

	return &Lockdown{
		allowed:  allowed,
		interval: interval,
		selfPID:  int32(os.Getpid()),
		log:      log.With().Str("component", "lockdown").Logger(),
	}
}

// Start begins the periodic sweep loop. Call in a goroutine.
func (l *Lockdown) Start(ctx context.Context) {
	l.log.Info().Dur("interval", l.interval).Msg("Lockdown sweeps started")

	t := time.NewTicker(l.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("Lockdown sweeps stopped")
			return
		case <-t.C:
			res := l.Sweep()
			if len(res.Killed) > 0 {
				l.log.Warn().Strs("killed", res.Killed).Msg("Terminated disallowed processes")
			}
		}
	}
}

// Sweep walks the process table once and kills everything outside the
// allowlist. Kill failures are reported, not fatal: some services
// refuse termination even when targeted.
func (l *Lockdown) Sweep() SweepResult {
	procs, err := process.Processes()
	if err != nil {
		l.log.Error().Err(err).Msg("Process enumeration failed")
		return SweepResult{Message: "error reading processes"}
	}

	res := SweepResult{Success: true}
	for _, p := range procs {
		if p.Pid == l.selfPID {
			continue
		}
		if l.spared(p) {
			continue
		}

		name, _ := p.Name()
		if err := p.Kill(); err != nil {
			res.FailedToKill = append(res.FailedToKill, name)
			continue
		}
		res.Killed = append(res.Killed, name)
	}

	if len(res.Killed) > 0 {
		res.Message = "environment locked"
	} else {
		res.Message = "system clean"
	}
	return res
}

// spared reports whether the process must not be killed. Any process
// whose identity cannot be read is spared: killing blind risks taking
// the machine down.
func (l *Lockdown) spared(p *process.Process) bool {
	name, err := p.Name()
	if err != nil {
		return true
	}
	if l.allowed[strings.ToLower(name)] {
		return true
	}

	exe, err := p.Exe()
	if err != nil || systemPath(exe) {
		return true
	}

	user, err := p.Username()
	if err != nil || systemAccount(user) {
		return true
	}

	return false
}

func systemPath(exePath string) bool {
	if exePath == "" {
		return true
	}
	p := strings.ToLower(filepath.Clean(exePath))
	return strings.HasPrefix(p, `c:\windows`) ||
		strings.HasPrefix(p, "/usr/lib/systemd") ||
		strings.HasPrefix(p, "/usr/libexec")
}

func systemAccount(user string) bool {
	u := strings.ToLower(user)
	return u == "root" ||
		strings.Contains(u, "system") ||
		strings.Contains(u, "local service") ||
		strings.Contains(u, "network service") ||
		strings.Contains(u, "nt authority")
}
