package guard

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLockdownAllowlistMerging(t *testing.T) {
	l := NewLockdown([]string{" Calculator.EXE ", "geogebra"}, time.Second, zerolog.Nop())

	// Operator entries are trimmed and lowercased.
	assert.True(t, l.allowed["calculator.exe"])
	assert.True(t, l.allowed["geogebra"])

	// Built-ins survive the merge.
	assert.True(t, l.allowed["chrome.exe"])
	assert.True(t, l.allowed["explorer.exe"])

	assert.False(t, l.allowed["discord.exe"])
}

func TestSystemPath(t *testing.T) {
	assert.True(t, systemPath(`C:\Windows\System32\svchost.exe`))
	assert.True(t, systemPath("/usr/lib/systemd/systemd-journald"))
	assert.True(t, systemPath(""), "unreadable path is spared")

	assert.False(t, systemPath(`C:\Users\student\discord.exe`))
	assert.False(t, systemPath("/home/student/.local/bin/obs"))
}

func TestSystemAccount(t *testing.T) {
	assert.True(t, systemAccount("root"))
	assert.True(t, systemAccount("NT AUTHORITY\\SYSTEM"))
	assert.True(t, systemAccount("LOCAL SERVICE"))

	assert.False(t, systemAccount("student"))
}
