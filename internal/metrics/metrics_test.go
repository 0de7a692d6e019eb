package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerSummary(t *testing.T) {
	tr := NewTracker()

	done := tr.Stage("parse")
	done()
	tr.Count("files", 2)
	tr.Count("files", 1)
	tr.TrackStep(2 * time.Millisecond)
	tr.TrackStep(4 * time.Millisecond)

	s := tr.Summary()
	assert.Len(t, s.Stages, 1)
	assert.Equal(t, "parse", s.Stages[0].Name)
	assert.Equal(t, int64(3), s.Counters["files"])
	assert.Equal(t, int64(2000), s.StepMinUS)
	assert.Equal(t, int64(4000), s.StepMaxUS)
	assert.Equal(t, int64(3000), s.StepAvgUS)

	assert.NotPanics(t, tr.Log)
}

func TestTrackerWithoutSteps(t *testing.T) {
	s := NewTracker().Summary()
	assert.Zero(t, s.StepMinUS)
	assert.Zero(t, s.StepAvgUS)
}
