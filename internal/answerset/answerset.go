// Package answerset owns the canonical wire form of answer values.
//
// Single-valued question types store one option code. Multi-select
// types store the selected option codes as a sorted, de-duplicated,
// comma-joined string ("A,C"), which is the form the scoring side
// compares against. Canonicalizing on every mutation keeps snapshots
// idempotent and avoids spurious diffs between saves.
package answerset

import (
	"sort"
	"strings"

	"github.com/stemsi/exstem-player/internal/model"
)

// Canonical normalizes a raw multi-select value: trims each code,
// drops empties and duplicates, sorts, and re-joins with commas.
// An empty or all-blank input canonicalizes to "".
func Canonical(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		code := strings.TrimSpace(p)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return strings.Join(codes, ",")
}

// Toggle flips membership of opt in the canonical set value and
// returns the new canonical form. Toggling the last selected option
// off returns "".
func Toggle(current, opt string) string {
	opt = strings.TrimSpace(opt)
	if opt == "" {
		return Canonical(current)
	}

	codes := split(Canonical(current))
	for i, code := range codes {
		if code == opt {
			return strings.Join(append(codes[:i], codes[i+1:]...), ",")
		}
	}
	codes = append(codes, opt)
	sort.Strings(codes)
	return strings.Join(codes, ",")
}

// Contains reports whether opt is selected in the given value.
func Contains(current, opt string) bool {
	for _, code := range split(Canonical(current)) {
		if code == opt {
			return true
		}
	}
	return false
}

// Apply computes the stored value after an option click: multi-select
// toggles set membership, every other type replaces the value.
func Apply(t model.QuestionType, current, opt string) string {
	if t.MultiValued() {
		return Toggle(current, opt)
	}
	return opt
}

func split(canonical string) []string {
	if canonical == "" {
		return nil
	}
	return strings.Split(canonical, ",")
}
