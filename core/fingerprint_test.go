package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Normalization(t *testing.T) {
	base := Fingerprint("What is X?")

	assert.Equal(t, base, Fingerprint("what is x?"), "case folding")
	assert.Equal(t, base, Fingerprint("  What   is\tX? "), "whitespace collapse")
	assert.Equal(t, base, Fingerprint("WHAT IS X?"))
}

func TestFingerprint_Distinct(t *testing.T) {
	assert.NotEqual(t, Fingerprint("What is X?"), Fingerprint("What is Y?"))
	assert.NotEqual(t, Fingerprint("What is X?"), Fingerprint("What is X"))
}

func TestFingerprint_Stable(t *testing.T) {
	// The fingerprint is a persisted cache key; it must not drift between runs.
	assert.Equal(t, Fingerprint("question about D"), Fingerprint("question about D"))
	assert.Len(t, Fingerprint("anything"), 64)
}
