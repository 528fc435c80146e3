package models

import "time"

// Step is a position in the check-in dialogue.
type Step int

const (
	StepNone Step = iota
	StepMood
	StepStress
	StepEnergy
	StepEmotions
	StepSleep
	StepNotes
	StepDone
)

var stepFields = map[Step]string{
	StepMood:     "mood",
	StepStress:   "stress",
	StepEnergy:   "energy",
	StepEmotions: "emotions",
	StepSleep:    "sleep",
	StepNotes:    "notes",
}

// Field returns the answer key stored for the step, or "" for non-answer steps.
func (s Step) Field() string { return stepFields[s] }

// IsScale reports whether the step is answered on the 1–10 keyboard.
func (s Step) IsScale() bool {
	return s == StepMood || s == StepStress || s == StepEnergy
}

func (s Step) String() string {
	if f, ok := stepFields[s]; ok {
		return f
	}
	switch s {
	case StepDone:
		return "done"
	default:
		return "none"
	}
}

// StepForField is the inverse of Step.Field.
func StepForField(field string) Step {
	for s, f := range stepFields {
		if f == field {
			return s
		}
	}
	return StepNone
}

// Flow names the dialogue a conversation is currently in.
type Flow string

const (
	FlowIdle      Flow = ""
	FlowConsent   Flow = "consent"
	FlowReminders Flow = "reminders"
	FlowCheckin   Flow = "checkin"
	FlowCoach     Flow = "coach"
)

// ChatTurn is one message of a coach conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the transient per-chat dialogue state. It never reaches durable storage.
type Conversation struct {
	Flow      Flow               `json:"flow"`
	Step      Step               `json:"step"`
	Answers   map[string]*string `json:"answers,omitempty"` // nil value = skipped
	History   []ChatTurn         `json:"history,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}
