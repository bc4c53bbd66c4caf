package monitor

import "context"

// ShellEvent is a raw browser-level signal reported by the kiosk page
// over the guard control channel.
type ShellEvent string

const (
	ShellVisibilityHidden ShellEvent = "visibility_hidden"
	ShellWindowBlur       ShellEvent = "window_blur"
	ShellFullscreenExit   ShellEvent = "fullscreen_exit"
	ShellDevtoolsOpen     ShellEvent = "devtools_open"
	ShellOffline          ShellEvent = "offline"
)

// ShellFeed adapts externally-pushed shell events into a Source. The
// guard server calls Signal from its websocket read loop; events that
// arrive while the monitor is disabled are dropped, matching the
// contract that an inactive monitor emits nothing.
type ShellFeed struct {
	events chan ShellEvent
}

// NewShellFeed creates a ShellFeed with a small buffer so a burst of
// signals from the page does not block the guard's read loop.
func NewShellFeed() *ShellFeed {
	return &ShellFeed{events: make(chan ShellEvent, 16)}
}

func (f *ShellFeed) Name() string { return "shell_feed" }

// Signal injects one raw shell event. Never blocks; if the buffer is
// full the event is dropped (the session would have escalated on the
// earlier ones already).
func (f *ShellFeed) Signal(ev ShellEvent) {
	select {
	case f.events <- ev:
	default:
	}
}

// Run translates shell events to violation kinds until ctx is canceled.
func (f *ShellFeed) Run(ctx context.Context, emit func(Kind)) {
	// Drain anything queued before activation: stale signals from a
	// previous enable window must not count against this one.
	for {
		select {
		case <-f.events:
			continue
		default:
		}
		break
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.events:
			if k, ok := translate(ev); ok {
				emit(k)
			}
		}
	}
}

func translate(ev ShellEvent) (Kind, bool) {
	switch ev {
	case ShellVisibilityHidden, ShellWindowBlur:
		return KindTabSwitch, true
	case ShellFullscreenExit:
		return KindFullscreenExit, true
	case ShellDevtoolsOpen:
		return KindDevtools, true
	case ShellOffline:
		return KindDisconnect, true
	}
	return "", false
}
