package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerWalksAllParts(t *testing.T) {
	var s Sequencer
	parts := []string{"## A", "## B", "## C"}
	s.Begin(parts)
	require.True(t, s.Active())

	for i, want := range parts {
		part, full, ok := s.Next()
		require.True(t, ok)
		assert.Equal(t, want, part)
		assert.Equal(t, "## A\n## B\n## C", full)
		assert.Equal(t, i, s.Cursor())
		s.Advance()
	}

	assert.False(t, s.Active())
	assert.Equal(t, 3, s.Cursor())

	// one more step is a no-op
	_, _, ok := s.Next()
	assert.False(t, ok)
	assert.False(t, s.Active())
	assert.Equal(t, 3, s.Cursor())
}

func TestSequencerStopKeepsProgress(t *testing.T) {
	var s Sequencer
	s.Begin([]string{"a", "b"})
	s.Advance()
	s.Stop()

	assert.False(t, s.Active())
	assert.Equal(t, 1, s.Cursor())
	assert.Equal(t, 2, s.Total())
	_, _, ok := s.Next()
	assert.False(t, ok)
}

func TestSequencerAbandonClearsEverything(t *testing.T) {
	var s Sequencer
	s.Begin([]string{"a", "b"})
	s.Advance()
	s.Abandon()

	assert.False(t, s.Active())
	assert.Zero(t, s.Cursor())
	assert.Zero(t, s.Total())
	assert.Empty(t, s.Parts())
}

func TestSequencerBeginEmptyIsInactive(t *testing.T) {
	var s Sequencer
	s.Begin(nil)
	assert.False(t, s.Active())
}

func TestSequencerPartsIsCopy(t *testing.T) {
	var s Sequencer
	src := []string{"a"}
	s.Begin(src)
	src[0] = "changed"
	got := s.Parts()
	got[0] = "mutated"
	assert.Equal(t, []string{"a"}, s.Parts())
}
