package reindex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_ReportsAtInterval(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 10, 5)
	tracker.Start()

	tracker.Increment(3)
	assert.Empty(t, out.String(), "below the interval, nothing is reported")

	tracker.Increment(2)
	assert.Contains(t, out.String(), "5/10")
	assert.Contains(t, out.String(), "50.0%")

	tracker.Increment(5)
	assert.Contains(t, out.String(), "10/10")
}

func TestProgressTracker_FinishPrintsFinalLine(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 4, 100)
	tracker.Start()
	tracker.Increment(2)
	tracker.Finish()

	assert.Contains(t, out.String(), "4/4")
	assert.Contains(t, out.String(), "100.0%")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestProgressTracker_ClampsToTotal(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 3, 1)
	tracker.Start()
	tracker.Increment(10)

	assert.Contains(t, out.String(), "3/3")
}

func TestProgressTracker_IgnoredBeforeStart(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 3, 1)

	tracker.Increment(1)
	tracker.Finish()

	assert.Empty(t, out.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 0, 1)
	tracker.Start()
	tracker.Finish()

	assert.Contains(t, out.String(), "0/0")
	assert.Contains(t, out.String(), "0.0%")
}
