// Package checkin implements the daily check-in dialogue and its commit protocol.
package checkin

import (
	"errors"

	"mindcheck-bot/internal/models"
)

var (
	// ErrNoCheckin means the conversation is not inside a check-in.
	ErrNoCheckin = errors.New("no check-in in progress")
	// ErrOutOfOrder means the answer targets a step other than the current one.
	ErrOutOfOrder = errors.New("answer does not match current step")
)

// Steps is the fixed question order.
var Steps = []models.Step{
	models.StepMood,
	models.StepStress,
	models.StepEnergy,
	models.StepEmotions,
	models.StepSleep,
	models.StepNotes,
}

// Start returns a fresh conversation positioned at the first question.
func Start() *models.Conversation {
	return &models.Conversation{
		Flow:    models.FlowCheckin,
		Step:    models.StepMood,
		Answers: make(map[string]*string, len(Steps)),
	}
}

// Next returns the step following s; after NOTES it is DONE.
func Next(s models.Step) models.Step {
	if s >= models.StepNotes || s < models.StepMood {
		return models.StepDone
	}
	return s + 1
}

// Apply records value (nil = skipped) for field and advances conv.
// field must name the current step. done reports that NOTES was answered
// and conv now holds the complete answer set.
func Apply(conv *models.Conversation, field string, value *string) (done bool, err error) {
	if conv == nil || conv.Flow != models.FlowCheckin {
		return false, ErrNoCheckin
	}
	if conv.Step < models.StepMood || conv.Step > models.StepNotes {
		return false, ErrNoCheckin
	}
	if models.StepForField(field) != conv.Step {
		return false, ErrOutOfOrder
	}
	if conv.Answers == nil {
		conv.Answers = make(map[string]*string, len(Steps))
	}
	if value != nil {
		v := *value
		conv.Answers[field] = &v
	} else {
		conv.Answers[field] = nil
	}
	conv.Step = Next(conv.Step)
	return conv.Step == models.StepDone, nil
}

// ApplyText records free text for whatever step is current.
func ApplyText(conv *models.Conversation, text string) (done bool, err error) {
	if conv == nil || conv.Flow != models.FlowCheckin {
		return false, ErrNoCheckin
	}
	return Apply(conv, conv.Step.Field(), &text)
}
