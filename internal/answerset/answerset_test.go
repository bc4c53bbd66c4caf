package answerset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-player/internal/model"
)

func TestCanonical(t *testing.T) {
	assert.Equal(t, "", Canonical(""))
	assert.Equal(t, "A", Canonical("A"))
	assert.Equal(t, "A,B,C", Canonical("C,A,B"))
	assert.Equal(t, "A,C", Canonical(" C , A "))
	assert.Equal(t, "A,B", Canonical("B,A,B,A"))
	assert.Equal(t, "", Canonical(" , ,"))
}

func TestToggle(t *testing.T) {
	v := Toggle("", "A")
	assert.Equal(t, "A", v)

	v = Toggle(v, "C")
	assert.Equal(t, "A,C", v)

	// Toggling an already-selected option removes it.
	v = Toggle(v, "A")
	assert.Equal(t, "C", v)

	// Removing the last option leaves the empty value.
	v = Toggle(v, "C")
	assert.Equal(t, "", v)
}

func TestToggleOrderIndependence(t *testing.T) {
	// Any click order over the same final set yields the same value.
	a := Toggle(Toggle(Toggle("", "B"), "D"), "A")
	b := Toggle(Toggle(Toggle("", "A"), "B"), "D")
	assert.Equal(t, "A,B,D", a)
	assert.Equal(t, a, b)
}

func TestToggleNormalizesDirtyInput(t *testing.T) {
	// A resumed attempt may carry unsorted server values.
	assert.Equal(t, "A,B,C", Toggle("C,A", "B"))
	assert.Equal(t, "A", Toggle("C, A ,C", "C"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("A,C", "C"))
	assert.False(t, Contains("A,C", "B"))
	assert.False(t, Contains("", "A"))
}

func TestApply(t *testing.T) {
	// Single-valued types replace.
	assert.Equal(t, "B", Apply(model.QuestionSingleChoice, "A", "B"))
	assert.Equal(t, "true", Apply(model.QuestionTrueFalse, "false", "true"))

	// Multi-select toggles.
	assert.Equal(t, "A,B", Apply(model.QuestionMultiSelect, "A", "B"))
	assert.Equal(t, "", Apply(model.QuestionMultiSelect, "A", "A"))
}
