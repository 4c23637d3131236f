package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	base := Fingerprint("Once there was a fox.", "adventure", "fox")
	assert.Len(t, base, 64)

	// Deterministic
	assert.Equal(t, base, Fingerprint("Once there was a fox.", "adventure", "fox"))

	// Leading and trailing whitespace on the text does not change it
	assert.Equal(t, base, Fingerprint("  Once there was a fox.\n", "adventure", "fox"))

	// Every component participates
	assert.NotEqual(t, base, Fingerprint("Once there was an owl.", "adventure", "fox"))
	assert.NotEqual(t, base, Fingerprint("Once there was a fox.", "bedtime", "fox"))
	assert.NotEqual(t, base, Fingerprint("Once there was a fox.", "adventure", "owl"))

	// Field boundaries are unambiguous
	assert.NotEqual(t, Fingerprint("a", "bc", ""), Fingerprint("ab", "c", ""))
}
