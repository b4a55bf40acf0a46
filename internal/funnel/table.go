package funnel

import (
	"strings"

	"leadfunnel/internal/models"
)

// Action is what the engine does for a matched transition.
type Action int

const (
	ActNone Action = iota
	ActSend
	ActOfferSlots
	ActSelectSlot
	ActConfirmBooking
	ActSetFlag
	ActMarkShow
	ActOptOut
)

// Decision is the outcome of one transition.
type Decision struct {
	Action    Action
	Next      Step   // step to send, for send actions
	Flag      string // lead column, for ActSetFlag
	SlotIndex int    // 1-based, for ActSelectSlot
}

const (
	PayloadStop = "Stop promotions"
)

type rule struct {
	from     Step // StepUnknown matches any step
	payload  string
	decision Decision
}

// transitions is evaluated in order; the first match wins.
var transitions = []rule{
	{StepIntro, "Yes", Decision{Action: ActSend, Next: StepPitch}},
	{StepPitch, "Interested", Decision{Action: ActSend, Next: StepBookInvite}},
	{StepBookInvite, "Yes", Decision{Action: ActOfferSlots, Next: StepSlotOffer}},
	{StepSlotOffer, "Slot 1", Decision{Action: ActSelectSlot, Next: StepSlotConfirm, SlotIndex: 1}},
	{StepSlotOffer, "Slot 2", Decision{Action: ActSelectSlot, Next: StepSlotConfirm, SlotIndex: 2}},
	{StepSlotConfirm, "Yes", Decision{Action: ActConfirmBooking, Next: StepBooked}},
	{StepFirstReminder, "Confirm", Decision{Action: ActSetFlag, Flag: models.ColFuBomConfirmed}},
	{StepSecondReminder, "YES", Decision{Action: ActSetFlag, Flag: models.ColFu2BomConfirmed}},
	{StepPreMeeting, "Yes", Decision{Action: ActSetFlag, Flag: models.ColPreBomAcked}},
	{StepMeetingLink, "I'm in", Decision{Action: ActMarkShow}},
	{StepUnknown, PayloadStop, Decision{Action: ActOptOut}},
}

// Decide maps the answered step and the pressed button to a decision.
// ok is false when no transition applies; the reply is then inert.
func Decide(from Step, payload string) (Decision, bool) {
	p := normalizePayload(payload)
	for _, r := range transitions {
		if r.from != StepUnknown && r.from != from {
			continue
		}
		if strings.EqualFold(p, r.payload) {
			return r.decision, true
		}
	}
	return Decision{}, false
}

func normalizePayload(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}
