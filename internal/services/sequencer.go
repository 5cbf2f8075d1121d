// internal/services/sequencer.go
package services

import "strings"

// Sequencer tracks progress through the parts of an outline. It holds no
// script text; the owning session appends each generated part.
type Sequencer struct {
	parts  []string
	cursor int
	active bool
}

// Begin starts a new run over parts
func (s *Sequencer) Begin(parts []string) {
	s.parts = append([]string(nil), parts...)
	s.cursor = 0
	s.active = len(s.parts) > 0
}

// Next returns the part at the cursor together with the full outline.
// ok is false when the run is inactive or exhausted; in that case the run is
// marked inactive.
func (s *Sequencer) Next() (part, fullOutline string, ok bool) {
	if !s.active || s.cursor >= len(s.parts) {
		s.active = false
		return "", "", false
	}
	return s.parts[s.cursor], strings.Join(s.parts, "\n"), true
}

// Advance moves past a successfully generated part
func (s *Sequencer) Advance() {
	s.cursor++
	if s.cursor >= len(s.parts) {
		s.active = false
	}
}

// Stop prevents further parts from being scheduled
func (s *Sequencer) Stop() {
	s.active = false
}

// Abandon discards the outline entirely
func (s *Sequencer) Abandon() {
	s.parts = nil
	s.cursor = 0
	s.active = false
}

func (s *Sequencer) Active() bool { return s.active }
func (s *Sequencer) Cursor() int  { return s.cursor }
func (s *Sequencer) Total() int   { return len(s.parts) }

// Parts returns a copy of the outline parts
func (s *Sequencer) Parts() []string {
	return append([]string(nil), s.parts...)
}
