package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Anchor selects what a touch delay is measured from.
type Anchor string

const (
	// AnchorPreviousTouch measures each delay from the previous dispatch.
	AnchorPreviousTouch Anchor = "previous_touch"
	// AnchorSequenceStart measures each delay from the moment the sequence started.
	AnchorSequenceStart Anchor = "sequence_start"
)

// Touch is one scheduled message within a sequence.
type Touch struct {
	DelayHours int    `yaml:"delay_hours" json:"delayHours"`
	TemplateID string `yaml:"template" json:"templateId"`
}

// Delay returns the touch delay as a duration.
func (t Touch) Delay() time.Duration {
	return time.Duration(t.DelayHours) * time.Hour
}

// Sequence is an operator-defined, ordered list of touches. The engine never mutates it.
type Sequence struct {
	ID      string  `yaml:"id" json:"id"`
	Name    string  `yaml:"name" json:"name"`
	Anchor  Anchor  `yaml:"anchor" json:"anchor"`
	Touches []Touch `yaml:"touches" json:"touches"`
}

// ErrEmptySequence is returned for a sequence with no touches.
var ErrEmptySequence = errors.New("sequence has no touches")

// EffectiveAnchor returns the anchor, defaulting to previous_touch.
func (s Sequence) EffectiveAnchor() Anchor {
	if s.Anchor == "" {
		return AnchorPreviousTouch
	}
	return s.Anchor
}

// Validate checks the static shape of a sequence.
func (s Sequence) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("sequence id is required")
	}
	if len(s.Touches) == 0 {
		return fmt.Errorf("sequence %s: %w", s.ID, ErrEmptySequence)
	}
	switch s.Anchor {
	case "", AnchorPreviousTouch, AnchorSequenceStart:
	default:
		return fmt.Errorf("sequence %s: unknown anchor %q", s.ID, s.Anchor)
	}
	for i, touch := range s.Touches {
		if touch.DelayHours < 0 {
			return fmt.Errorf("sequence %s: touch %d has negative delay", s.ID, i)
		}
		if strings.TrimSpace(touch.TemplateID) == "" {
			return fmt.Errorf("sequence %s: touch %d has no template", s.ID, i)
		}
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (s Sequence) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.ID
}
