package followup

import (
	"strings"
	"time"

	"leadfunnel/internal/leads"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"
	"leadfunnel/internal/schedule"
)

// ParamFunc builds a sweep's template parameters for one lead. link is the
// day's published URL for link sweeps and empty otherwise.
type ParamFunc func(l *models.Lead, link string, loc *time.Location) []messaging.Param

// Sweep is one idempotent follow-up: a predicate over the lead population,
// a template, and the flag that marks the step done.
type Sweep struct {
	Name    string
	Aliases []string
	// Meeting and Day select leads whose meeting of that type falls on the
	// business-local day Day days from now.
	Meeting  models.MeetingType
	Day      int
	Statuses []models.MeetingStatus
	Scopes   []leads.Scope
	Template string
	// Flag is excluded by the predicate and set after each successful send.
	Flag     string
	Params   ParamFunc
	NeedLink bool
	// Extra fields written together with Flag.
	Extra func(l *models.Lead) map[string]interface{}
}

// Stage configures one step of a meeting plan. An empty Template disables it.
type Stage struct {
	Template string
	Flag     string
	Gate     []leads.Scope
	Params   ParamFunc
	Aliases  []string
}

// Plan is the reminder, pre-meeting and link cadence of one meeting type.
type Plan struct {
	Meeting        models.MeetingType
	FirstReminder  Stage
	SecondReminder Stage
	PreMeeting     Stage
	Link           Stage
	// MarkShow sets the meeting status to Show once the link is sent.
	MarkShow bool
}

// Sweeps expands the plan into its named sweeps.
func (p Plan) Sweeps() []Sweep {
	prefix := strings.ToLower(string(p.Meeting))
	confirmed := []models.MeetingStatus{models.StatusConfirmed}
	var out []Sweep
	add := func(suffix string, st Stage, day int) *Sweep {
		if st.Template == "" {
			return nil
		}
		out = append(out, Sweep{
			Name:     prefix + "-" + suffix,
			Aliases:  st.Aliases,
			Meeting:  p.Meeting,
			Day:      day,
			Statuses: confirmed,
			Scopes:   st.Gate,
			Template: st.Template,
			Flag:     st.Flag,
			Params:   st.Params,
		})
		return &out[len(out)-1]
	}
	add("first-reminder", p.FirstReminder, 1)
	add("second-reminder", p.SecondReminder, 0)
	add("pre-meeting", p.PreMeeting, 0)
	if s := add("meeting-link", p.Link, 0); s != nil {
		s.NeedLink = true
		meeting, markShow := p.Meeting, p.MarkShow
		s.Extra = func(l *models.Lead) map[string]interface{} {
			fields := map[string]interface{}{models.ColNeedsAttention: false}
			if _, date := l.Meeting(meeting); markShow && date != nil {
				fields[models.ColumnsFor(meeting).Status] = models.StatusShow
			}
			return fields
		}
	}
	return out
}

// SlotParam renders the lead's meeting time as the "slot" parameter.
func SlotParam(t models.MeetingType) ParamFunc {
	return func(l *models.Lead, _ string, loc *time.Location) []messaging.Param {
		_, date := l.Meeting(t)
		if date == nil {
			return nil
		}
		return []messaging.Param{{Name: "slot", Value: schedule.FormatLocal(*date, loc)}}
	}
}

// TodaySlotParams renders "today at 17:30 IST" and the link time fifteen
// minutes earlier.
func TodaySlotParams(t models.MeetingType) ParamFunc {
	return func(l *models.Lead, _ string, loc *time.Location) []messaging.Param {
		_, date := l.Meeting(t)
		if date == nil {
			return nil
		}
		return []messaging.Param{
			{Name: "slot", Value: "today at " + schedule.ClockLabel(*date, loc)},
			{Name: "link_time", Value: schedule.ClockLabel(date.Add(-15*time.Minute), loc)},
		}
	}
}

// LinkParam passes the day's link under name.
func LinkParam(name string) ParamFunc {
	return func(_ *models.Lead, link string, _ *time.Location) []messaging.Param {
		return []messaging.Param{{Name: name, Value: link}}
	}
}

// Options tune the default sweep set.
type Options struct {
	// SecondReminderRequiresConfirm gates the BOM second reminder on the
	// first reminder having been confirmed.
	SecondReminderRequiresConfirm bool
}

// DefaultPlans returns the BOM, BIT and WG cadences.
func DefaultPlans(opts Options) []Plan {
	var secondGate []leads.Scope
	if opts.SecondReminderRequiresConfirm {
		secondGate = append(secondGate, leads.FlagSet(models.ColFuBomConfirmed))
	}
	return []Plan{
		{
			Meeting: models.MeetingBOM,
			FirstReminder: Stage{
				Template: "fu_1", Flag: models.ColFuBomSent,
				Params: SlotParam(models.MeetingBOM), Aliases: []string{"send-fu1"},
			},
			SecondReminder: Stage{
				Template: "fu_2", Flag: models.ColFu2BomSent, Gate: secondGate,
				Params: SlotParam(models.MeetingBOM), Aliases: []string{"send-fu2"},
			},
			PreMeeting: Stage{
				Template: "15_mins_before_bom", Flag: models.ColPreBomSent,
				Gate:    []leads.Scope{leads.FlagUnset(models.ColFu2BomConfirmed)},
				Aliases: []string{"send-15min-reminder"},
			},
			Link: Stage{
				Template: "book_bom", Flag: models.ColLinkBomSent,
				Gate:    []leads.Scope{leads.AnyFlagSet(models.ColPreBomAcked, models.ColFu2BomConfirmed)},
				Params:  LinkParam("zoom_link"),
				Aliases: []string{"send-zoom-link"},
			},
			MarkShow: true,
		},
		{
			Meeting: models.MeetingBIT,
			FirstReminder: Stage{
				Template: "bit_mingling", Flag: models.ColFuBitSent,
				Params: SlotParam(models.MeetingBIT), Aliases: []string{"send-fu-bit1"},
			},
			SecondReminder: Stage{
				Template: "fu_bit_2", Flag: models.ColFu2BitSent,
				Gate:    []leads.Scope{leads.FlagSet(models.ColFuBitSent)},
				Params:  TodaySlotParams(models.MeetingBIT),
				Aliases: []string{"send-fu-bit2"},
			},
			Link: Stage{
				Template: "bit", Flag: models.ColLinkBitSent,
				Gate:    []leads.Scope{leads.FlagSet(models.ColFu2BitSent)},
				Params:  LinkParam("link"),
				Aliases: []string{"send-bit-zoom-link"},
			},
			MarkShow: true,
		},
		{
			Meeting: models.MeetingWG,
			Link: Stage{
				Template: "wg", Flag: models.ColLinkWgSent,
				Params: LinkParam("link"), Aliases: []string{"send-wg-zoom-link"},
			},
		},
	}
}

// Escalations flag leads for a human and send them a nudge. Their flag is
// needs_attention itself.
func Escalations() []Sweep {
	acked := []string{models.ColPreBomAcked, models.ColFu2BomConfirmed}
	return []Sweep{
		{
			Name:     "bom-not-ready",
			Aliases:  []string{"send-not-ready-bom"},
			Meeting:  models.MeetingBOM,
			Statuses: []models.MeetingStatus{models.StatusConfirmed},
			Scopes:   []leads.Scope{leads.FlagUnset(acked[0]), leads.FlagUnset(acked[1])},
			Template: "not_ready_bom",
			Flag:     models.ColNeedsAttention,
		},
		{
			Name:     "bom-no-code",
			Aliases:  []string{"send-no-code-bom"},
			Meeting:  models.MeetingBOM,
			Statuses: []models.MeetingStatus{models.StatusConfirmed, models.StatusShow},
			Scopes: []leads.Scope{
				leads.AnyFlagSet(acked...),
				leads.StatusIn(models.MeetingBIT, models.StatusUnset),
			},
			Template: "no_code_bom",
			Flag:     models.ColNeedsAttention,
			Params: func(l *models.Lead, _ string, _ *time.Location) []messaging.Param {
				return []messaging.Param{{Name: "name", Value: firstName(l.Name)}}
			},
		},
	}
}

// DefaultSweeps is every plan sweep followed by the escalations.
func DefaultSweeps(opts Options) []Sweep {
	var out []Sweep
	for _, p := range DefaultPlans(opts) {
		out = append(out, p.Sweeps()...)
	}
	return append(out, Escalations()...)
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}
