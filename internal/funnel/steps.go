package funnel

import "strings"

// Step is a position in the scripted conversation, identified by the
// outbound template that opens it.
type Step int

const (
	StepUnknown Step = iota
	StepIntro
	StepPitch
	StepBookInvite
	StepSlotOffer
	StepSlotConfirm
	StepBooked
	StepFirstReminder
	StepSecondReminder
	StepPreMeeting
	StepMeetingLink
	StepAfterBITCode
	StepAfterWGCode
)

var stepNames = map[Step]string{
	StepUnknown:        "unknown",
	StepIntro:          "intro",
	StepPitch:          "pitch",
	StepBookInvite:     "book_invite",
	StepSlotOffer:      "slot_offer",
	StepSlotConfirm:    "slot_confirm",
	StepBooked:         "booked",
	StepFirstReminder:  "first_reminder",
	StepSecondReminder: "second_reminder",
	StepPreMeeting:     "pre_meeting",
	StepMeetingLink:    "meeting_link",
	StepAfterBITCode:   "bit_booked",
	StepAfterWGCode:    "wg_booked",
}

// String is the value stored in the lead's funnel_stage column.
func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return stepNames[StepUnknown]
}

// StageNew is the funnel_stage of a lead nothing has been sent to.
const StageNew = "new"

// Templates maps each step to the template name that carries it.
type Templates struct {
	Intro          string
	Pitch          string
	BookInvite     string
	SlotOffer      string
	SlotConfirm    string
	Booked         string
	FirstReminder  string
	SecondReminder string
	PreMeeting     string
	MeetingLink    string
	AfterBITCode   string
	AfterWGCode    string
}

func DefaultTemplates() Templates {
	return Templates{
		Intro:          "lb_1",
		Pitch:          "lb_2",
		BookInvite:     "lb_3",
		SlotOffer:      "lb_4",
		SlotConfirm:    "lb_5",
		Booked:         "lb_6",
		FirstReminder:  "fu_1",
		SecondReminder: "fu_2",
		PreMeeting:     "15_mins_before_bom",
		MeetingLink:    "book_bom",
		AfterBITCode:   "after_code_bom",
		AfterWGCode:    "after_code_bit",
	}
}

func (t Templates) byStep() map[Step]string {
	return map[Step]string{
		StepIntro:          t.Intro,
		StepPitch:          t.Pitch,
		StepBookInvite:     t.BookInvite,
		StepSlotOffer:      t.SlotOffer,
		StepSlotConfirm:    t.SlotConfirm,
		StepBooked:         t.Booked,
		StepFirstReminder:  t.FirstReminder,
		StepSecondReminder: t.SecondReminder,
		StepPreMeeting:     t.PreMeeting,
		StepMeetingLink:    t.MeetingLink,
		StepAfterBITCode:   t.AfterBITCode,
		StepAfterWGCode:    t.AfterWGCode,
	}
}

// NameOf returns the template carrying step.
func (t Templates) NameOf(s Step) string {
	return t.byStep()[s]
}

// StepOf resolves an answered template name to its step.
func (t Templates) StepOf(name string) Step {
	name = strings.TrimSpace(name)
	if name == "" {
		return StepUnknown
	}
	for s, n := range t.byStep() {
		if n == name {
			return s
		}
	}
	return StepUnknown
}
