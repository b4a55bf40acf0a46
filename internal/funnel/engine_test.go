package funnel_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leadfunnel/internal/catalog"
	"leadfunnel/internal/config"
	"leadfunnel/internal/database"
	"leadfunnel/internal/funnel"
	"leadfunnel/internal/leads"
	"leadfunnel/internal/ledger"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/messaging/messagingtest"
	"leadfunnel/internal/models"
	"leadfunnel/internal/offers"
)

type harness struct {
	engine *funnel.Engine
	leads  *leads.Repository
	ledger *ledger.Ledger
	offers *offers.MemoryStore
	sender *messagingtest.Sender
	now    time.Time
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	db, err := database.Open(&config.Config{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(t.TempDir(), "test.db"),
		DBLogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		leads:  leads.NewRepository(db),
		ledger: ledger.New(db),
		offers: offers.NewMemoryStore(time.Hour),
		sender: messagingtest.NewSender("wamid."),
		now:    now,
	}
	m := messaging.NewMessenger(catalog.New(db), h.ledger, "en_US")
	m.Register(models.ChannelWhatsApp, h.sender)
	h.engine = funnel.NewEngine(h.leads, h.ledger, m, h.offers, funnel.Options{
		Location:        loc,
		CampaignName:    "global dropshipping project",
		InterestKeyword: "interested",
		BitCode:         "bit2025",
		WgCode:          "mike",
		Now:             func() time.Time { return h.now },
	})
	return h
}

var contact = messaging.Contact{Channel: models.ChannelWhatsApp, Ref: "919800000001"}

func (h *harness) text(t *testing.T, id, text string) {
	t.Helper()
	ev := funnel.Event{Contact: contact, Kind: funnel.KindText, ProviderID: id, Text: text, Name: "Asha Rao"}
	if err := h.engine.OnInboundEvent(context.Background(), ev); err != nil {
		t.Fatalf("OnInboundEvent(%q): %v", text, err)
	}
}

func (h *harness) press(t *testing.T, id, contextID, payload string) {
	t.Helper()
	ev := funnel.Event{Contact: contact, Kind: funnel.KindButton, ProviderID: id, ContextID: contextID, Payload: payload}
	if err := h.engine.OnInboundEvent(context.Background(), ev); err != nil {
		t.Fatalf("OnInboundEvent(%q): %v", payload, err)
	}
}

func (h *harness) lastSent(t *testing.T, template string) messagingtest.Sent {
	t.Helper()
	sent, ok := h.sender.Last()
	if !ok {
		t.Fatalf("nothing sent, want %s", template)
	}
	if sent.Template != template {
		t.Fatalf("last template = %q, want %q", sent.Template, template)
	}
	return sent
}

func (h *harness) lead(t *testing.T) *models.Lead {
	t.Helper()
	l, err := h.leads.FindByContact(context.Background(), contact.Channel, contact.Ref)
	if err != nil {
		t.Fatalf("find lead: %v", err)
	}
	return l
}

// Monday 2025-03-03 09:00 IST, before the first cutoff.
func mondayMorning(t *testing.T) time.Time {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	return time.Date(2025, 3, 3, 9, 0, 0, 0, loc)
}

func TestEndToEndBooking(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	ctx := context.Background()

	h.text(t, "in.1", "I'm Interested in the Global Dropshipping Project, sign me up")
	pitch := h.lastSent(t, "lb_2")

	hist, err := h.ledger.History(ctx, contact.Channel, contact.Ref, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Direction != models.DirectionIncoming || hist[1].Direction != models.DirectionOutgoing {
		t.Fatalf("ledger = %+v", hist)
	}
	if l := h.lead(t); l.Name != "Asha Rao" || l.FunnelStage != "pitch" {
		t.Fatalf("lead = %+v", l)
	}

	h.press(t, "in.2", pitch.ProviderID, "Interested")
	invite := h.lastSent(t, "lb_3")

	h.press(t, "in.3", invite.ProviderID, "Yes")
	offer := h.lastSent(t, "lb_4")
	if offer.Param("slot_1") != "Today, 03.03.25, 16:30 IST" || offer.Param("slot_2") != "Tomorrow, 04.03.25, 16:30 IST" {
		t.Fatalf("offered = %+v", offer.Params)
	}
	if got, err := h.offers.Offer(ctx, contact.Key(), 2); err != nil || got != "Tomorrow, 04.03.25, 16:30 IST" {
		t.Fatalf("cached offer 2 = %q, %v", got, err)
	}

	h.press(t, "in.4", offer.ProviderID, "Slot 1")
	confirm := h.lastSent(t, "lb_5")
	if confirm.Param("slot") != "Today, 03.03.25, 16:30 IST" {
		t.Fatalf("confirm slot = %q", confirm.Param("slot"))
	}
	if sel, err := h.offers.Selected(ctx, contact.Key()); err != nil || sel != "Today, 03.03.25, 16:30 IST" {
		t.Fatalf("selected = %q, %v", sel, err)
	}
	if l := h.lead(t); l.BomStatus != models.StatusOffered {
		t.Fatalf("status after selection = %q", l.BomStatus)
	}

	h.press(t, "in.5", confirm.ProviderID, "Yes")
	h.lastSent(t, "lb_6")

	l := h.lead(t)
	want := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)
	if l.BomStatus != models.StatusConfirmed || l.BomDate == nil || !l.BomDate.Equal(want) {
		t.Fatalf("booking = %q %v, want confirmed %v", l.BomStatus, l.BomDate, want)
	}
	if !l.FuBomSent || !l.Fu2BomSent {
		t.Fatalf("same-day booking should mark both reminders sent: %+v", l)
	}
	if l.FunnelStage != "booked" {
		t.Fatalf("stage = %q", l.FunnelStage)
	}
	if _, err := h.offers.Selected(ctx, contact.Key()); !errors.Is(err, offers.ErrNoOffer) {
		t.Fatalf("offers should be cleared, got %v", err)
	}
}

func TestNextDayBookingLeavesRemindersPending(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "interested in the global dropshipping project")
	h.press(t, "in.2", h.lastSent(t, "lb_2").ProviderID, "Interested")
	h.press(t, "in.3", h.lastSent(t, "lb_3").ProviderID, "Yes")
	h.press(t, "in.4", h.lastSent(t, "lb_4").ProviderID, "Slot 2")
	h.press(t, "in.5", h.lastSent(t, "lb_5").ProviderID, "Yes")

	l := h.lead(t)
	if l.FuBomSent || l.Fu2BomSent {
		t.Fatalf("next-day booking should leave reminders pending: %+v", l)
	}
	if want := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC); !l.BomDate.Equal(want) {
		t.Fatalf("bom_date = %v, want %v", l.BomDate, want)
	}
}

func TestUnresolvableContextIsInert(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	before := len(h.sender.Sent())

	h.press(t, "in.2", "wamid.unknown", "Interested")

	if len(h.sender.Sent()) != before {
		t.Fatal("reply with unknown context must not send")
	}
	if l := h.lead(t); l.FunnelStage != "pitch" || l.NeedsAttention {
		t.Fatalf("lead mutated: %+v", l)
	}
	// The reply itself is still in the ledger.
	if _, err := h.ledger.FindByProviderID(context.Background(), "in.2"); err != nil {
		t.Fatalf("inbound reply not recorded: %v", err)
	}
}

func TestPayloadNotInTableIsInert(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	pitch := h.lastSent(t, "lb_2")
	before := h.lead(t)

	h.press(t, "in.2", pitch.ProviderID, "Maybe later")

	if len(h.sender.Sent()) != 1 {
		t.Fatal("unexpected send")
	}
	after := h.lead(t)
	if after.FunnelStage != before.FunnelStage || after.OptedOut || after.NeedsAttention {
		t.Fatalf("lead mutated: %+v", after)
	}
}

func TestOptOutStopsAutomation(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	pitch := h.lastSent(t, "lb_2")

	h.press(t, "in.2", pitch.ProviderID, "Stop promotions")
	if !h.lead(t).OptedOut {
		t.Fatal("lead should be opted out")
	}

	h.press(t, "in.3", pitch.ProviderID, "Interested")
	h.text(t, "in.4", "bit2025")
	if len(h.sender.Sent()) != 1 {
		t.Fatalf("opted-out lead received %d sends", len(h.sender.Sent()))
	}
}

func TestRegistrationCodes(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")

	h.text(t, "in.2", "  BIT2025 ")
	sent := h.lastSent(t, "after_code_bom")
	if sent.Param("slot") != "Sunday, 09.03.25, 17:30 IST" {
		t.Fatalf("bit slot = %q", sent.Param("slot"))
	}
	l := h.lead(t)
	if l.BitStatus != models.StatusConfirmed || !l.BitDate.Equal(time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("bit booking = %q %v", l.BitStatus, l.BitDate)
	}

	h.text(t, "in.3", "code: mike")
	sent = h.lastSent(t, "after_code_bit")
	if sent.Param("slot") != "Monday, 03.03.25, 17:30 IST" {
		t.Fatalf("wg slot = %q", sent.Param("slot"))
	}
	if l := h.lead(t); l.WgStatus != models.StatusConfirmed || l.NeedsAttention {
		t.Fatalf("wg booking = %+v", l)
	}
}

func TestUnrecognizedTextNeedsAttention(t *testing.T) {
	h := newHarness(t, mondayMorning(t))

	// Unknown contacts without the interest phrase are ignored.
	h.text(t, "in.0", "hello?")
	if _, err := h.leads.FindByContact(context.Background(), contact.Channel, contact.Ref); !errors.Is(err, leads.ErrNotFound) {
		t.Fatalf("lead created from plain text: %v", err)
	}

	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	h.text(t, "in.2", "what time is it again?")
	if !h.lead(t).NeedsAttention {
		t.Fatal("unrecognized text should flag the lead")
	}
	if len(h.sender.Sent()) != 1 {
		t.Fatal("unrecognized text must not trigger a send")
	}
}

func TestFailedSendDoesNotMutate(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	pitch := h.lastSent(t, "lb_2")

	h.sender.FailFor(contact.Ref)
	ev := funnel.Event{Contact: contact, Kind: funnel.KindButton, ProviderID: "in.2", ContextID: pitch.ProviderID, Payload: "Interested"}
	if err := h.engine.OnInboundEvent(context.Background(), ev); err == nil {
		t.Fatal("expected send error to be returned")
	}
	if l := h.lead(t); l.FunnelStage != "pitch" {
		t.Fatalf("stage advanced despite failed send: %q", l.FunnelStage)
	}
}

func TestReminderAcknowledgements(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	ctx := context.Background()
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	l := h.lead(t)

	// Reminders come from the sweeps; record them straight into the ledger.
	for i, tc := range []struct {
		template, payload string
		check             func(*models.Lead) bool
	}{
		{"fu_1", "Confirm", func(l *models.Lead) bool { return l.FuBomConfirmed }},
		{"fu_2", "YES", func(l *models.Lead) bool { return l.Fu2BomConfirmed }},
		{"15_mins_before_bom", "Yes", func(l *models.Lead) bool { return l.PreBomAcked }},
	} {
		name := tc.template
		out := &models.Message{
			Channel: contact.Channel, ContactRef: contact.Ref, Direction: models.DirectionOutgoing,
			ProviderID: "sweep." + name, TemplateName: &name, Type: models.TypeText,
		}
		if err := h.ledger.Append(ctx, out); err != nil {
			t.Fatal(err)
		}
		h.press(t, "ack."+name, out.ProviderID, tc.payload)
		if !tc.check(h.lead(t)) {
			t.Fatalf("case %d (%s): flag not set", i, name)
		}
	}

	at := time.Date(2025, 3, 3, 11, 0, 0, 0, time.UTC)
	if err := h.leads.SetMeeting(ctx, l.ID, models.MeetingBOM, models.StatusConfirmed, &at, nil); err != nil {
		t.Fatal(err)
	}
	name := "book_bom"
	link := &models.Message{
		Channel: contact.Channel, ContactRef: contact.Ref, Direction: models.DirectionOutgoing,
		ProviderID: "sweep.link", TemplateName: &name, Type: models.TypeText,
	}
	if err := h.ledger.Append(ctx, link); err != nil {
		t.Fatal(err)
	}
	h.press(t, "ack.link", link.ProviderID, "I'm in")
	if got := h.lead(t).BomStatus; got != models.StatusShow {
		t.Fatalf("bom_text = %q, want Show", got)
	}
}

func TestEventsForOneContactAreSerialized(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := funnel.Event{Contact: contact, Kind: funnel.KindText, ProviderID: "c." + string(rune('a'+i)), Text: "question"}
			_ = h.engine.OnInboundEvent(context.Background(), ev)
		}(i)
	}
	wg.Wait()

	hist, err := h.ledger.History(context.Background(), contact.Channel, contact.Ref, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 7 {
		t.Fatalf("ledger rows = %d, want 7", len(hist))
	}
}

func TestRedeliveredEventIsHandledOnce(t *testing.T) {
	h := newHarness(t, mondayMorning(t))
	ctx := context.Background()
	h.text(t, "in.1", "Interested in the Global Dropshipping Project")
	pitch := h.lastSent(t, "lb_2")

	h.press(t, "in.2", pitch.ProviderID, "Interested")
	h.press(t, "in.2", pitch.ProviderID, "Interested")

	invites := 0
	for _, s := range h.sender.Sent() {
		if s.Template == "lb_3" {
			invites++
		}
	}
	if invites != 1 {
		t.Fatalf("lb_3 sent %d times, want 1", invites)
	}
	hist, err := h.ledger.History(ctx, contact.Channel, contact.Ref, 0)
	if err != nil {
		t.Fatal(err)
	}
	rows := 0
	for _, m := range hist {
		if m.ProviderID == "in.2" {
			rows++
		}
	}
	if rows != 1 {
		t.Fatalf("ledger rows for in.2 = %d, want 1", rows)
	}
}
