package models

import (
	"fmt"
	"strings"
	"time"
)

// MeetingType is one of the recurring meeting kinds a lead can be booked for.
type MeetingType string

const (
	MeetingBOM MeetingType = "BOM"
	MeetingBIT MeetingType = "BIT"
	MeetingWG  MeetingType = "WG"
	MeetingPT  MeetingType = "PT"
)

// ParseMeetingType accepts any casing.
func ParseMeetingType(s string) (MeetingType, error) {
	switch t := MeetingType(strings.ToUpper(strings.TrimSpace(s))); t {
	case MeetingBOM, MeetingBIT, MeetingWG, MeetingPT:
		return t, nil
	}
	return "", fmt.Errorf("unknown meeting type %q", s)
}

// MeetingStatus is the {type}_text column.
type MeetingStatus string

const (
	StatusUnset         MeetingStatus = ""
	StatusOffered       MeetingStatus = "offered"
	StatusConfirmed     MeetingStatus = "confirmed"
	StatusShow          MeetingStatus = "Show"
	StatusNotInterested MeetingStatus = "Not Interested"
)

func (s MeetingStatus) Valid() bool {
	switch s {
	case StatusUnset, StatusOffered, StatusConfirmed, StatusShow, StatusNotInterested:
		return true
	}
	return false
}

// Columns holding the per-meeting status and date.
type MeetingColumns struct {
	Status string
	Date   string
}

var meetingColumns = map[MeetingType]MeetingColumns{
	MeetingBOM: {Status: "bom_text", Date: "bom_date"},
	MeetingBIT: {Status: "bit_text", Date: "bit_date"},
	MeetingWG:  {Status: "wg_text", Date: "wg_date"},
	MeetingPT:  {Status: "pt_text", Date: "pt_date"},
}

func ColumnsFor(t MeetingType) MeetingColumns {
	return meetingColumns[t]
}

// Idempotency flag columns.
const (
	ColOptedOut        = "opted_out"
	ColNeedsAttention  = "needs_attention"
	ColFunnelStage     = "funnel_stage"
	ColFuBomSent       = "fu_bom_sent"
	ColFuBomConfirmed  = "fu_bom_confirmed"
	ColFu2BomSent      = "fu2_bom_sent"
	ColFu2BomConfirmed = "fu2_bom_confirmed"
	ColPreBomSent      = "yes_bom_sent"
	ColPreBomAcked     = "yes_bom_pressed"
	ColLinkBomSent     = "link_bom_sent"
	ColFuBitSent       = "fu_bit_sent"
	ColFu2BitSent      = "fu2_bit_sent"
	ColLinkBitSent     = "link_bit_sent"
	ColLinkWgSent      = "link_wg_sent"
)

var flagColumns = map[string]bool{
	ColOptedOut: true, ColNeedsAttention: true,
	ColFuBomSent: true, ColFuBomConfirmed: true, ColFu2BomSent: true, ColFu2BomConfirmed: true,
	ColPreBomSent: true, ColPreBomAcked: true, ColLinkBomSent: true,
	ColFuBitSent: true, ColFu2BitSent: true, ColLinkBitSent: true, ColLinkWgSent: true,
}

// IsFlagColumn reports whether col is one of the lead's boolean flags.
func IsFlagColumn(col string) bool {
	return flagColumns[col]
}

// MeetingUpdate builds the partial update that books or clears a meeting,
// keeping the date-iff-status invariant.
func MeetingUpdate(t MeetingType, status MeetingStatus, date *time.Time) (map[string]interface{}, error) {
	cols, ok := meetingColumns[t]
	if !ok {
		return nil, fmt.Errorf("unknown meeting type %q", t)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid %s status %q", t, status)
	}
	if status == StatusUnset {
		return map[string]interface{}{cols.Status: StatusUnset, cols.Date: nil}, nil
	}
	if date == nil {
		return nil, fmt.Errorf("%s status %q requires a date", t, status)
	}
	utc := date.UTC()
	return map[string]interface{}{cols.Status: status, cols.Date: &utc}, nil
}
